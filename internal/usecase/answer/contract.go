package answer

import "context"

// Generator produces a model completion from a prompt and an optional image
// attachment.
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte, mediaType string) (string, error)
}

// AssetFetcher loads raw object bytes from the asset store.
type AssetFetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}
