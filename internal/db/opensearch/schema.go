package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/harborview/mmrag/internal/domain"
)

// Embedding dimensions of the two vector spaces stored per record.
const (
	TextEmbeddingDim       = 1536
	MultimodalEmbeddingDim = 1024
)

// indexMapping is the knn-enabled mapping for the multimodal index. Text
// chunks populate text_embedding; image and table description records
// populate multimodal_embedding. metadata.image_info.s3_path locates the
// original asset in the object store.
var indexMapping = map[string]any{
	"settings": map[string]any{
		"index": map[string]any{
			"knn": true,
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"content": map[string]any{
				"type":     "text",
				"analyzer": "standard",
			},
			"title": map[string]any{
				"type":     "text",
				"analyzer": "standard",
			},
			"source":      map[string]any{"type": "keyword"},
			typeField:     map[string]any{"type": "keyword"},
			"document_id": map[string]any{"type": "keyword"},
			"chunk_id":    map[string]any{"type": "keyword"},
			domain.VectorFieldText: map[string]any{
				"type":      "knn_vector",
				"dimension": TextEmbeddingDim,
			},
			domain.VectorFieldMultimodal: map[string]any{
				"type":      "knn_vector",
				"dimension": MultimodalEmbeddingDim,
			},
			"metadata": map[string]any{
				"type":    "object",
				"enabled": true,
			},
		},
	},
}

// EnsureIndex creates the configured index with the multimodal mapping if it
// does not already exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	existsReq := opensearchapi.IndicesExistsRequest{Index: []string{s.index}}
	res, err := existsReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}

	createReq := opensearchapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(string(body)),
	}
	res, err = createReq.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("create index %s: status %d: %s", s.index, res.StatusCode, detail)
	}
	return nil
}

// DeleteIndex removes the configured index. Missing index is not an error.
func (s *Store) DeleteIndex(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.IndicesDeleteRequest{Index: []string{s.index}}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("delete index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete index %s: status %d", s.index, res.StatusCode)
	}
	return nil
}

// IndexStats is a summary of the configured index.
type IndexStats struct {
	DocCount  int64 `json:"doc_count"`
	StoreSize int64 `json:"store_size"`
}

// Stats returns document count and store size of the configured index.
func (s *Store) Stats(ctx context.Context) (IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.IndicesStatsRequest{Index: []string{s.index}}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return IndexStats{}, fmt.Errorf("index stats %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return IndexStats{}, fmt.Errorf("index stats %s: status %d", s.index, res.StatusCode)
	}

	var parsed struct {
		All struct {
			Primaries struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"primaries"`
		} `json:"_all"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return IndexStats{}, fmt.Errorf("index stats %s: decode: %w", s.index, err)
	}

	return IndexStats{
		DocCount:  parsed.All.Primaries.Docs.Count,
		StoreSize: parsed.All.Primaries.Store.SizeInBytes,
	}, nil
}
