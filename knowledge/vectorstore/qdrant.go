package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds Qdrant connection parameters.
type QdrantConfig struct {
	// URL is the Qdrant server address (e.g. "https://example.qdrant.io:6334").
	URL string `json:"url"`

	// Collection is the collection holding the indexed site content.
	Collection string `json:"collection"`

	// APIKey is an optional authentication key.
	APIKey string `json:"api_key,omitempty"`
}

// QdrantStore implements VectorStore for Qdrant.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// NewQdrant creates a VectorStore backed by a Qdrant server.
func NewQdrant(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

// Search implements VectorStore.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, filter SearchFilter, limit int) ([]SearchResult, error) {
	limitUint := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint,
		Filter:         buildFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		if filter.MinScore > 0 && point.Score < filter.MinScore {
			continue
		}

		result := SearchResult{Score: point.Score}

		if point.Id != nil {
			if id := point.Id.GetUuid(); id != "" {
				result.ID = id
			} else if num := point.Id.GetNum(); num != 0 {
				result.ID = strconv.FormatUint(num, 10)
			}
		}

		for key, val := range point.Payload {
			switch key {
			case "content":
				result.Content = val.GetStringValue()
			case "url":
				result.URL = val.GetStringValue()
			case "title":
				result.Title = val.GetStringValue()
			}
		}

		results = append(results, result)
	}

	return results, nil
}

// Close implements VectorStore.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func buildFilter(filter SearchFilter) *qdrant.Filter {
	if filter.SourceID == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key:   "source_id",
						Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: filter.SourceID}},
					},
				},
			},
		},
	}
}

var _ VectorStore = (*QdrantStore)(nil)
