package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/siteassist/gateway/knowledge/vectorstore"
	"github.com/siteassist/gateway/provider"
)

const (
	defaultRetrievalLimit    = 5
	defaultRetrievalMinScore = 0.5
)

// VectorSource is a Source that retrieves site content semantically: the
// user's message is embedded through the provider's embeddings endpoint and
// matched against indexed content in a vector store.
type VectorSource struct {
	embedder   provider.Embedder
	store      vectorstore.VectorStore
	embedModel string
	limit      int
	minScore   float32
}

// NewVectorSource creates a retrieval Source over the given embedder and
// vector store.
func NewVectorSource(embedder provider.Embedder, store vectorstore.VectorStore, embedModel string) *VectorSource {
	return &VectorSource{
		embedder:   embedder,
		store:      store,
		embedModel: embedModel,
		limit:      defaultRetrievalLimit,
		minScore:   defaultRetrievalMinScore,
	}
}

// Name implements Source.
func (s *VectorSource) Name() string { return "vector-retrieval" }

// Context implements Source. An empty query yields no block.
func (s *VectorSource) Context(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", nil
	}

	vec, err := s.embedder.Embed(ctx, query, s.embedModel)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}

	results, err := s.store.Search(ctx, vec, vectorstore.SearchFilter{MinScore: s.minScore}, s.limit)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("## Relevant Site Content\n")
	for _, r := range results {
		b.WriteString("\n### " + titleOrFallback(r) + "\n")
		if r.URL != "" {
			b.WriteString("URL: " + r.URL + "\n")
		}
		b.WriteString("Content: " + r.Content + "\n")
	}
	return b.String(), nil
}

func titleOrFallback(r vectorstore.SearchResult) string {
	if r.Title != "" {
		return r.Title
	}
	return "Result"
}
