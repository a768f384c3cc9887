package query

import (
	"context"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/domain/answer"
	"github.com/harborview/mmrag/internal/domain/hit"
)

// Retriever defines the index store contract for retrieval calls.
type Retriever interface {
	// SearchByText runs a keyword match over record content.
	SearchByText(
		ctx context.Context, query string, k int, f domain.RecordFilter,
	) ([]hit.Hit, error)

	// SearchByVector runs a KNN search over the named vector field. A
	// zero-length vector must yield an empty result, not an error.
	SearchByVector(
		ctx context.Context, vector []float32, field string, k int, f domain.RecordFilter,
	) ([]hit.Hit, error)
}

// Reranker scores candidate documents against the query text.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RankedDoc, error)
}

// Synthesizer turns the final evidence into a cited answer.
type Synthesizer interface {
	Synthesize(
		ctx context.Context, query string, textHits, imageHits []hit.Hit,
	) (answer.Result, error)
}
