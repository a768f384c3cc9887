package hit

import "testing"

func TestRescored(t *testing.T) {
	h := New(0.4, "content", "doc-1", "manual.pdf", nil, TypeText, MethodVectorTextField)

	r := h.Rescored(0.95)
	if r.Score() != 0.95 || !r.Reranked() {
		t.Errorf("unexpected rescored hit score=%v reranked=%v", r.Score(), r.Reranked())
	}
	// The original is untouched.
	if h.Score() != 0.4 || h.Reranked() {
		t.Errorf("original mutated: score=%v reranked=%v", h.Score(), h.Reranked())
	}
}

func TestImageLocator(t *testing.T) {
	withPath := New(0.8, "figure", "doc-1", "", map[string]any{
		"image_info": map[string]any{"s3_path": "figures/a.png"},
	}, TypeImage, MethodVectorMultiField)
	if withPath.ImageLocator() != "figures/a.png" {
		t.Errorf("expected locator, got %q", withPath.ImageLocator())
	}

	noMeta := New(0.8, "figure", "doc-1", "", nil, TypeImage, MethodVectorMultiField)
	if noMeta.ImageLocator() != "" {
		t.Errorf("expected empty locator, got %q", noMeta.ImageLocator())
	}

	wrongShape := New(0.8, "figure", "doc-1", "", map[string]any{
		"image_info": "not a map",
	}, TypeImage, MethodVectorMultiField)
	if wrongShape.ImageLocator() != "" {
		t.Errorf("expected empty locator, got %q", wrongShape.ImageLocator())
	}
}
