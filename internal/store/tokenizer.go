package store

import (
	"regexp"
	"strings"
)

// identifierRegex matches identifier-shaped runs: letters, digits, and
// underscores. Identifiers are kept whole, never split on case or
// underscore boundaries, so that a query token like "getUserById" or
// "MAX_RETRIES" matches the exact same token the indexer produced.
var identifierRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// TokenizeCode splits enriched content into a code-aware token stream.
// Tokens split on whitespace and punctuation outside identifier
// characters; identifiers with underscores and camelCase identifiers are
// preserved as single tokens so identifier-style queries have token
// parity with the index (planner classification depends on this).
// All tokens are lowercased.
func TokenizeCode(text string) []string {
	words := identifierRegex.FindAllString(text, -1)

	tokens := make([]string, 0, len(words))
	for _, word := range words {
		lower := strings.ToLower(word)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}

	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, isStop := stopWords[lower]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
