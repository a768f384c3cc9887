package domain

import "context"

// Vector field names of the two embedding spaces stored per index record.
const (
	VectorFieldText       = "text_embedding"
	VectorFieldMultimodal = "multimodal_embedding"
)

// EmbeddingResult is the outcome of one embedding call.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// IsEmpty reports whether the call produced no usable vector.
func (r EmbeddingResult) IsEmpty() bool { return len(r.Embedding) == 0 }

// TextEmbedder vectorizes query text in the text-only embedding space.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (EmbeddingResult, error)
}

// MultimodalEmbedder vectorizes text and/or image bytes in the shared
// text+image embedding space. At least one input must be non-empty.
type MultimodalEmbedder interface {
	EmbedMultimodal(ctx context.Context, text string, image []byte) (EmbeddingResult, error)
}

// HealthChecker is an optional capability of external providers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
