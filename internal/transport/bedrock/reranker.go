package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/metrics"
)

// Reranker scores documents against a query (Cohere rerank contract).
type Reranker struct {
	invoker Invoker
	modelID string
	logger  *zap.Logger
}

// NewReranker creates a rerank provider.
func NewReranker(invoker Invoker, modelID string, logger *zap.Logger) *Reranker {
	return &Reranker{invoker: invoker, modelID: modelID, logger: logger}
}

// Rerank returns up to topN document indices with relevance scores, most
// relevant first. Indices refer to positions in documents.
func (r *Reranker) Rerank(
	ctx context.Context, query string, documents []string, topN int,
) ([]domain.RankedDoc, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	req := struct {
		Query      string   `json:"query"`
		Documents  []string `json:"documents"`
		TopN       int      `json:"top_n"`
		APIVersion int      `json:"api_version"`
	}{
		Query:      query,
		Documents:  documents,
		TopN:       topN,
		APIVersion: 2,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	respBody, err := r.invoker.Invoke(ctx, r.modelID, body)
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues(r.modelID, "error").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrRerank, err)
	}

	var resp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		metrics.RerankRequestsTotal.WithLabelValues(r.modelID, "error").Inc()
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrRerank, err)
	}

	ranked := make([]domain.RankedDoc, 0, len(resp.Results))
	for _, res := range resp.Results {
		ranked = append(ranked, domain.RankedDoc{
			Index:          res.Index,
			RelevanceScore: res.RelevanceScore,
		})
	}

	metrics.RerankRequestsTotal.WithLabelValues(r.modelID, "success").Inc()
	return ranked, nil
}
