// Package vectorstore defines a technology-agnostic interface for vector
// similarity search over indexed site content, with a Qdrant implementation.
package vectorstore

import "context"

// VectorStore performs vector similarity search.
type VectorStore interface {
	// Search returns the closest matches for the query vector, best first.
	Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error)

	// Close releases any resources held by the store.
	Close() error
}

// SearchFilter narrows a search.
type SearchFilter struct {
	// SourceID restricts results to one source/collection partition.
	SourceID string

	// MinScore drops results below this similarity threshold (0.0-1.0).
	MinScore float32
}

// SearchResult is one match from a similarity search.
type SearchResult struct {
	// ID is the unique identifier of the matched point.
	ID string

	// Score is the similarity score (0.0-1.0, higher is more similar).
	Score float32

	// Content is the indexed text chunk.
	Content string

	// URL is the page or product the chunk came from, when indexed.
	URL string

	// Title is the document title, when indexed.
	Title string
}
