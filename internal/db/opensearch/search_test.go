package opensearch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/harborview/mmrag/internal/domain"
)

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return m
}

func TestMatchQuery_NoFilter(t *testing.T) {
	body, err := MatchQuery("resistor codes", 5, domain.FilterAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := decodeBody(t, body)
	if m["size"].(float64) != 5 {
		t.Errorf("expected size 5, got %v", m["size"])
	}
	match := m["query"].(map[string]any)["match"].(map[string]any)
	if match["content"] != "resistor codes" {
		t.Errorf("unexpected match clause %v", match)
	}
}

func TestMatchQuery_EmptyText(t *testing.T) {
	if _, err := MatchQuery("", 5, domain.FilterAll); err == nil {
		t.Fatal("expected an error for empty text")
	}
}

func TestKNNQuery_Body(t *testing.T) {
	body, err := KNNQuery(domain.VectorFieldText, []float32{0.1, 0.2}, 3, domain.FilterAll)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := decodeBody(t, body)
	knn := m["query"].(map[string]any)["knn"].(map[string]any)
	field := knn[domain.VectorFieldText].(map[string]any)
	if field["k"].(float64) != 3 {
		t.Errorf("expected k=3, got %v", field["k"])
	}
	if len(field["vector"].([]any)) != 2 {
		t.Errorf("unexpected vector %v", field["vector"])
	}
}

func TestKNNQuery_EmptyVector(t *testing.T) {
	_, err := KNNQuery(domain.VectorFieldText, nil, 3, domain.FilterAll)
	if !errors.Is(err, domain.ErrEmptyVector) {
		t.Fatalf("expected ErrEmptyVector, got %v", err)
	}
}

func TestKNNQuery_ImageFilterUsesTerm(t *testing.T) {
	body, err := KNNQuery(domain.VectorFieldMultimodal, []float32{0.1}, 2, domain.FilterImageOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := decodeBody(t, body)
	boolq := m["query"].(map[string]any)["bool"].(map[string]any)
	if _, ok := boolq["must"]; !ok {
		t.Fatal("expected the knn clause under must")
	}
	filters := boolq["filter"].([]any)
	term := filters[0].(map[string]any)["term"].(map[string]any)
	if term["document_type"] != "image" {
		t.Errorf("expected term document_type=image, got %v", term)
	}
	if _, ok := boolq["must_not"]; ok {
		t.Error("image filtering is inclusion, not exclusion")
	}
}

func TestKNNQuery_TextFilterUsesExclusion(t *testing.T) {
	// Legacy text chunks carry no document_type field, so text-only
	// restriction must exclude image records rather than match a type.
	body, err := KNNQuery(domain.VectorFieldText, []float32{0.1}, 2, domain.FilterTextOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := decodeBody(t, body)
	boolq := m["query"].(map[string]any)["bool"].(map[string]any)
	mustNot := boolq["must_not"].([]any)
	term := mustNot[0].(map[string]any)["term"].(map[string]any)
	if term["document_type"] != "image" {
		t.Errorf("expected must_not term document_type=image, got %v", term)
	}
	if _, ok := boolq["filter"]; ok {
		t.Error("text filtering must not use a positive term filter")
	}
}
