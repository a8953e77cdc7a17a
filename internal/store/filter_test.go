package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchFilter_Builder(t *testing.T) {
	filter := NewSearchFilter().
		WithPathPrefix("src/").
		WithChunkTypes([]string{"function", "struct"}).
		WithLanguage("rust")

	assert.Equal(t, "src/", filter.PathPrefix)
	assert.Equal(t, []string{"function", "struct"}, filter.ChunkTypes)
	assert.Equal(t, "rust", filter.Language)
	assert.False(t, filter.IsEmpty())
}

func TestSearchFilter_EmptyMatchesEverything(t *testing.T) {
	filter := NewSearchFilter()
	assert.True(t, filter.IsEmpty())
	assert.True(t, filter.Matches(FilterableChunk{FilePath: "anything.go", ChunkType: "function", Language: "go"}))
}

func TestSearchFilter_Matches_Conjunctive(t *testing.T) {
	filter := NewSearchFilter().
		WithPathPrefix("src/").
		WithChunkTypes([]string{"function", "struct"}).
		WithLanguage("rust")

	tests := []struct {
		name  string
		chunk FilterableChunk
		want  bool
	}{
		{
			name:  "matches all conditions",
			chunk: FilterableChunk{FilePath: "src/lib.rs", ChunkType: "function", Language: "rust"},
			want:  true,
		},
		{
			name:  "chunk type is disjunctive within the set",
			chunk: FilterableChunk{FilePath: "src/lib.rs", ChunkType: "struct", Language: "rust"},
			want:  true,
		},
		{
			name:  "wrong path prefix fails",
			chunk: FilterableChunk{FilePath: "tests/lib.rs", ChunkType: "function", Language: "rust"},
			want:  false,
		},
		{
			name:  "wrong chunk type fails",
			chunk: FilterableChunk{FilePath: "src/lib.rs", ChunkType: "enum", Language: "rust"},
			want:  false,
		},
		{
			name:  "wrong language fails",
			chunk: FilterableChunk{FilePath: "src/lib.rs", ChunkType: "function", Language: "python"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.Matches(tt.chunk))
		})
	}
}

func TestFilteredSearch_OversamplesAndTrims(t *testing.T) {
	cfg := DefaultVectorStoreConfig(4)
	vs, err := NewHNSWStore(cfg)
	require.NoError(t, err)
	defer func() { _ = vs.Close() }()

	ids := []string{"go-fn", "rust-fn", "rust-struct", "py-fn"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0.99, 0.01, 0, 0},
		{0.98, 0.02, 0, 0},
		{0.97, 0.03, 0, 0},
	}
	require.NoError(t, vs.Add(context.Background(), ids, vectors))

	meta := map[string]FilterableChunk{
		"go-fn":      {FilePath: "main.go", ChunkType: "function", Language: "go"},
		"rust-fn":    {FilePath: "src/lib.rs", ChunkType: "function", Language: "rust"},
		"rust-struct": {FilePath: "src/lib.rs", ChunkType: "struct", Language: "rust"},
		"py-fn":      {FilePath: "main.py", ChunkType: "function", Language: "python"},
	}
	lookup := func(id string) (FilterableChunk, bool) {
		c, ok := meta[id]
		return c, ok
	}

	filter := NewSearchFilter().WithLanguage("rust")

	results, err := FilteredSearch(context.Background(), vs, []float32{1, 0, 0, 0}, 2, filter, lookup)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "rust", meta[r.ID].Language)
	}
}

func TestFilteredSearch_EmptyFilterSkipsLookup(t *testing.T) {
	cfg := DefaultVectorStoreConfig(2)
	vs, err := NewHNSWStore(cfg)
	require.NoError(t, err)
	defer func() { _ = vs.Close() }()

	require.NoError(t, vs.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}}))

	called := false
	lookup := func(id string) (FilterableChunk, bool) {
		called = true
		return FilterableChunk{}, false
	}

	results, err := FilteredSearch(context.Background(), vs, []float32{1, 0}, 1, NewSearchFilter(), lookup)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, called, "empty filter should skip the lookup entirely")
}
