// Package index adapts the OpenSearch store into the pipeline's retrieval
// contract, tagging every hit with the exact call path that produced it.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/db/opensearch"
	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/domain/hit"
	"github.com/harborview/mmrag/internal/metrics"
)

// searcher is the consumer interface for the index store (ISP).
type searcher interface {
	Search(ctx context.Context, body []byte) (*opensearch.SearchResponse, error)
}

// Repo implements keyword and vector retrieval over the multimodal index.
type Repo struct {
	store  searcher
	logger *zap.Logger
}

// New creates a retrieval repository.
func New(store searcher, logger *zap.Logger) *Repo {
	return &Repo{store: store, logger: logger}
}

// SearchByText runs a keyword match over record content. Hits are tagged
// with the text_match method.
func (r *Repo) SearchByText(
	ctx context.Context, query string, k int, f domain.RecordFilter,
) ([]hit.Hit, error) {
	body, err := opensearch.MatchQuery(query, k, f)
	if err != nil {
		return nil, fmt.Errorf("build match query: %w", err)
	}
	return r.execute(ctx, body, hit.MethodTextMatch)
}

// SearchByVector runs a KNN search over the named vector field. A
// zero-length vector yields an empty result without touching the backend:
// this is how an embedding failure degrades instead of propagating.
func (r *Repo) SearchByVector(
	ctx context.Context, vector []float32, field string, k int, f domain.RecordFilter,
) ([]hit.Hit, error) {
	if len(vector) == 0 {
		r.logger.Debug("Skipping vector search with empty vector", zap.String("field", field))
		return nil, nil
	}

	body, err := opensearch.KNNQuery(field, vector, k, f)
	if err != nil {
		return nil, fmt.Errorf("build knn query: %w", err)
	}
	return r.execute(ctx, body, methodForField(field))
}

func (r *Repo) execute(ctx context.Context, body []byte, method string) ([]hit.Hit, error) {
	start := time.Now()

	resp, err := r.store.Search(ctx, body)

	duration := time.Since(start)
	if err != nil {
		metrics.RetrievalCallsTotal.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("search %s: %w", method, err)
	}
	metrics.RetrievalCallsTotal.WithLabelValues(method, "success").Inc()
	metrics.RetrievalCallDuration.WithLabelValues(method).Observe(duration.Seconds())

	return parseHits(resp, method), nil
}

// recordSource is the indexed shape of one record.
type recordSource struct {
	Content      string         `json:"content"`
	DocumentID   string         `json:"document_id"`
	Source       string         `json:"source"`
	DocumentType string         `json:"document_type"`
	Metadata     map[string]any `json:"metadata"`
}

// parseHits converts raw records into domain hits, tagged with the method
// that produced them.
func parseHits(resp *opensearch.SearchResponse, method string) []hit.Hit {
	if resp == nil || len(resp.Hits.Hits) == 0 {
		return nil
	}

	hits := make([]hit.Hit, 0, len(resp.Hits.Hits))
	for _, raw := range resp.Hits.Hits {
		var src recordSource
		if err := json.Unmarshal(raw.Source, &src); err != nil {
			continue
		}

		docID := src.DocumentID
		if docID == "" {
			docID = raw.ID
		}

		typ := hit.TypeText
		if src.DocumentType == "image" {
			typ = hit.TypeImage
		}

		hits = append(hits, hit.New(
			raw.Score, src.Content, docID, src.Source, src.Metadata, typ, method,
		))
	}
	return hits
}

// methodForField maps a vector field to its provenance tag.
func methodForField(field string) string {
	switch field {
	case domain.VectorFieldText:
		return hit.MethodVectorTextField
	case domain.VectorFieldMultimodal:
		return hit.MethodVectorMultiField
	default:
		return "vector_search_" + field
	}
}
