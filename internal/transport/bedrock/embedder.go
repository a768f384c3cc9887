package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/metrics"
)

const providerName = "bedrock"

// TextEmbedder embeds query text in the text-only space (Cohere embed contract).
type TextEmbedder struct {
	invoker Invoker
	modelID string
	logger  *zap.Logger
}

// NewTextEmbedder creates a text embedding provider.
func NewTextEmbedder(invoker Invoker, modelID string, logger *zap.Logger) *TextEmbedder {
	return &TextEmbedder{invoker: invoker, modelID: modelID, logger: logger}
}

// EmbedText implements domain.TextEmbedder.
func (e *TextEmbedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	req := struct {
		Texts     []string `json:"texts"`
		InputType string   `json:"input_type"`
	}{
		Texts:     []string{text},
		InputType: "search_query",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal embed request: %w", err)
	}

	start := time.Now()
	respBody, err := e.invoker.Invoke(ctx, e.modelID, body)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
	}

	var resp struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: decode response: %w", domain.ErrEmbeddingProvider, err)
	}
	if len(resp.Embeddings) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.modelID).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: toFloat32(resp.Embeddings[0])}, nil
}

// MultimodalEmbedder embeds text and/or image bytes in the shared space
// (Titan multimodal contract).
type MultimodalEmbedder struct {
	invoker Invoker
	modelID string
	logger  *zap.Logger
}

// NewMultimodalEmbedder creates a multimodal embedding provider.
func NewMultimodalEmbedder(invoker Invoker, modelID string, logger *zap.Logger) *MultimodalEmbedder {
	return &MultimodalEmbedder{invoker: invoker, modelID: modelID, logger: logger}
}

// EmbedMultimodal implements domain.MultimodalEmbedder. At least one of
// text and image must be non-empty.
func (e *MultimodalEmbedder) EmbedMultimodal(
	ctx context.Context, text string, image []byte,
) (domain.EmbeddingResult, error) {
	if text == "" && len(image) == 0 {
		return domain.EmbeddingResult{}, domain.ErrInvalidInput
	}

	req := struct {
		InputText  string `json:"inputText,omitempty"`
		InputImage string `json:"inputImage,omitempty"`
	}{InputText: text}
	if len(image) > 0 {
		req.InputImage = base64.StdEncoding.EncodeToString(image)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal embed request: %w", err)
	}

	start := time.Now()
	respBody, err := e.invoker.Invoke(ctx, e.modelID, body)
	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
	}

	var resp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: decode response: %w", domain.ErrEmbeddingProvider, err)
	}
	if len(resp.Embedding) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "error").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("%w: empty embedding response", domain.ErrEmbeddingProvider)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.modelID, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.modelID).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: toFloat32(resp.Embedding)}, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
