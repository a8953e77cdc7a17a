package search

import (
	"regexp"
	"strings"
)

// Strategy is the routing decision a Plan produces: which sub-indexes a
// query should be dispatched to.
type Strategy string

const (
	StrategyGraphOnly  Strategy = "graph_only"
	StrategyAstOnly    Strategy = "ast_only"
	StrategyHybrid     Strategy = "hybrid"
	StrategyVectorOnly Strategy = "vector_only"
)

// PlannerResult is what Plan returns: the chosen strategy and, for Hybrid,
// the fusion weights to hand to RRFFusion.
type PlannerResult struct {
	Strategy Strategy
	WVector  float64
	WBM25    float64
}

var (
	graphIntentKeywords = []string{
		"depend", "caller", "callee", "depend on", "use by", "uses",
		"call chain", "call path",
	}
	astIntentKeywords = []string{"fn ", "func", "class ", "impl ", "trait "}

	questionWords = map[string]bool{
		"how": true, "what": true, "where": true, "find": true, "show": true,
		"list": true, "which": true, "why": true, "when": true,
		"explain": true, "describe": true,
	}
	nlFillerWords = map[string]bool{
		"does": true, "the": true, "is": true, "are": true, "for": true,
		"with": true, "that": true, "this": true, "implement": true,
		"handle": true, "manage": true, "work": true,
	}

	// snakeIdentifierRegex matches a single token with an underscore not at
	// either end, e.g. "get_user" but not "_private" or "trailing_".
	snakeIdentifierRegex = regexp.MustCompile(`^[A-Za-z0-9]+(_[A-Za-z0-9]+)+$`)
	// camelIdentifierRegex matches a lowercase-to-uppercase transition
	// within a single token, e.g. "getUserById".
	camelIdentifierRegex = regexp.MustCompile(`[a-z][A-Z]`)
	// plainIdentifierRegex matches a single alphanumeric/underscore token.
	plainIdentifierRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Plan classifies query and returns the strategy and weights to use,
// following a first-match-wins cascade: graph-intent keywords, then
// AST-intent keywords, then (if hybridEnabled) adaptive hybrid
// sub-classification, falling back to vector-only when hybrid is disabled.
// Deterministic: the same query string always yields the same result.
func Plan(query string, hybridEnabled bool) PlannerResult {
	lower := strings.ToLower(query)

	for _, kw := range graphIntentKeywords {
		if strings.Contains(lower, kw) {
			return PlannerResult{Strategy: StrategyGraphOnly}
		}
	}

	for _, kw := range astIntentKeywords {
		if strings.Contains(lower, kw) {
			return PlannerResult{Strategy: StrategyAstOnly}
		}
	}

	if !hybridEnabled {
		return PlannerResult{Strategy: StrategyVectorOnly, WVector: 1.0, WBM25: 0.0}
	}

	wVector, wBM25 := hybridWeights(query)
	return PlannerResult{Strategy: StrategyHybrid, WVector: wVector, WBM25: wBM25}
}

// hybridWeights sub-classifies a hybrid-routed query as identifier-like,
// natural-language, or mixed/default, per the adaptive weight table.
func hybridWeights(query string) (wVector, wBM25 float64) {
	if isIdentifierLike(query) {
		return 0.3, 0.7
	}
	if isNaturalLanguage(query) {
		return 0.8, 0.2
	}
	return 0.7, 0.3
}

func isIdentifierLike(query string) bool {
	trimmed := strings.TrimSpace(query)
	if strings.Contains(trimmed, "::") {
		return true
	}

	tokens := strings.Fields(trimmed)
	if len(tokens) != 1 {
		return false
	}
	token := tokens[0]

	return snakeIdentifierRegex.MatchString(token) ||
		camelIdentifierRegex.MatchString(token) ||
		plainIdentifierRegex.MatchString(token)
}

func isNaturalLanguage(query string) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return false
	}

	if len(tokens) >= 3 && questionWords[strings.Trim(tokens[0], "?,.!")] {
		return true
	}

	fillerCount := 0
	for _, t := range tokens {
		if nlFillerWords[strings.Trim(t, "?,.!")] {
			fillerCount++
		}
	}
	return len(tokens) >= 2 && fillerCount >= 2
}
