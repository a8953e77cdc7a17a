package store

import (
	"context"
	"strings"
)

// SearchFilter narrows vector search results by file path prefix, chunk
// type, and/or language. All set conditions combine conjunctively (a
// result must satisfy every condition that was set); chunk types within
// ChunkTypes combine disjunctively (a result matches if its type is any
// one of them).
type SearchFilter struct {
	PathPrefix string
	ChunkTypes []string
	Language   string
}

// NewSearchFilter creates an empty filter that matches everything.
func NewSearchFilter() SearchFilter {
	return SearchFilter{}
}

// WithPathPrefix restricts results to chunks whose file path starts with prefix.
func (f SearchFilter) WithPathPrefix(prefix string) SearchFilter {
	f.PathPrefix = prefix
	return f
}

// WithChunkTypes restricts results to chunks whose type is one of types.
func (f SearchFilter) WithChunkTypes(types []string) SearchFilter {
	f.ChunkTypes = types
	return f
}

// WithLanguage restricts results to chunks in the given language.
func (f SearchFilter) WithLanguage(language string) SearchFilter {
	f.Language = language
	return f
}

// IsEmpty reports whether the filter has no conditions set.
func (f SearchFilter) IsEmpty() bool {
	return f.PathPrefix == "" && len(f.ChunkTypes) == 0 && f.Language == ""
}

// FilterableChunk is the subset of chunk metadata a filter matches against.
type FilterableChunk struct {
	FilePath  string
	ChunkType string
	Language  string
}

// Matches reports whether a chunk satisfies every condition set on f.
func (f SearchFilter) Matches(c FilterableChunk) bool {
	if f.PathPrefix != "" && !strings.HasPrefix(c.FilePath, f.PathPrefix) {
		return false
	}

	if len(f.ChunkTypes) > 0 {
		matched := false
		for _, t := range f.ChunkTypes {
			if t == c.ChunkType {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.Language != "" && f.Language != c.Language {
		return false
	}

	return true
}

// ChunkLookup resolves a vector result ID to the metadata a filter matches
// against. Callers typically back this with a MetadataStore chunk fetch.
type ChunkLookup func(id string) (FilterableChunk, bool)

// oversampleFactor widens the underlying HNSW search so that filtering out
// non-matching candidates still leaves enough results to satisfy k.
const oversampleFactor = 4

// FilteredSearch runs a vector search oversampled by oversampleFactor, then
// applies f as a post-filter over the HNSW candidates, trimming back to k
// results. An empty filter skips the lookup and oversampling entirely.
func FilteredSearch(ctx context.Context, store VectorStore, query []float32, k int, f SearchFilter, lookup ChunkLookup) ([]*VectorResult, error) {
	if f.IsEmpty() {
		return store.Search(ctx, query, k)
	}

	candidates, err := store.Search(ctx, query, k*oversampleFactor)
	if err != nil {
		return nil, err
	}

	results := make([]*VectorResult, 0, k)
	for _, cand := range candidates {
		meta, ok := lookup(cand.ID)
		if !ok || !f.Matches(meta) {
			continue
		}
		results = append(results, cand)
		if len(results) >= k {
			break
		}
	}

	return results, nil
}
