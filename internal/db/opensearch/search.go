package opensearch

import (
	"encoding/json"
	"fmt"

	"github.com/harborview/mmrag/internal/domain"
)

const typeField = "document_type"

// MatchQuery builds a keyword match body over the content field, optionally
// restricted to one record type.
func MatchQuery(text string, k int, f domain.RecordFilter) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("match query text is empty")
	}

	match := map[string]any{"match": map[string]any{"content": text}}

	body := map[string]any{
		"size":  k,
		"query": applyFilter(match, f),
	}
	return json.Marshal(body)
}

// KNNQuery builds a k-nearest-neighbor body over the named vector field,
// optionally restricted to one record type. Zero-length vectors are the
// caller's responsibility; this builder rejects them outright.
func KNNQuery(field string, vector []float32, k int, f domain.RecordFilter) ([]byte, error) {
	if len(vector) == 0 {
		return nil, domain.ErrEmptyVector
	}

	knn := map[string]any{
		"knn": map[string]any{
			field: map[string]any{
				"vector": vector,
				"k":      k,
			},
		},
	}

	body := map[string]any{
		"size":  k,
		"query": applyFilter(knn, f),
	}
	return json.Marshal(body)
}

// applyFilter wraps a query clause in a bool query restricting the record
// type. Image records are selected by inclusion (term document_type=image),
// text records by exclusion: legacy text chunks carry no document_type
// field, so a positive term match would drop them.
func applyFilter(clause map[string]any, f domain.RecordFilter) map[string]any {
	switch f {
	case domain.FilterImageOnly:
		return map[string]any{
			"bool": map[string]any{
				"must":   []any{clause},
				"filter": []any{termImage()},
			},
		}
	case domain.FilterTextOnly:
		return map[string]any{
			"bool": map[string]any{
				"must":     []any{clause},
				"must_not": []any{termImage()},
			},
		}
	default:
		return clause
	}
}

func termImage() map[string]any {
	return map[string]any{"term": map[string]any{typeField: "image"}}
}
