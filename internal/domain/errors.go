package domain

import "errors"

var (
	// ErrInvalidQuery signals a query with neither text nor image. This is the
	// only error that aborts a pipeline invocation.
	ErrInvalidQuery = errors.New("query must contain text or an image")
	// ErrInvalidInput signals an embedding request with no inputs.
	ErrInvalidInput = errors.New("embedding input must contain text or an image")
	// ErrEmptyVector signals a vector search attempted with a zero-length vector.
	ErrEmptyVector = errors.New("empty query vector")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrBackendSearch signals an index store failure.
	ErrBackendSearch = errors.New("backend search error")
	// ErrRerank signals a rerank model failure.
	ErrRerank = errors.New("rerank error")
	// ErrAnswerGeneration signals an answer model failure.
	ErrAnswerGeneration = errors.New("answer generation error")
	// ErrAssetFetch signals a failure fetching image bytes for prompt attachment.
	ErrAssetFetch = errors.New("asset fetch error")
	// ErrIndexNotFound signals a missing search index.
	ErrIndexNotFound = errors.New("index not found")
)
