// Package hit defines the retrieved-record type flowing through the pipeline.
package hit

// Type classifies a retrieved record.
type Type string

const (
	// TypeText marks a text chunk.
	TypeText Type = "text"
	// TypeImage marks an image (or table) description record.
	TypeImage Type = "image"
)

// Search method provenance tags. A hit's SearchMethod names the exact call
// that produced it, never an inference.
const (
	MethodTextMatch        = "text_match"
	MethodVectorTextField  = "vector_search_text_embedding"
	MethodVectorMultiField = "vector_search_multimodal_embedding"
)

// Hit is one retrieved record. Hits are created fresh per query and are
// never persisted by the pipeline. Scores are only comparable between hits
// of the same SearchMethod until Reranked is set, after which all scores in
// a set share the rerank model's scale.
type Hit struct {
	score        float64
	content      string
	documentID   string
	source       string
	metadata     map[string]any
	typ          Type
	searchMethod string
	reranked     bool
}

// New creates a hit. The type and search method are fixed at creation.
func New(
	score float64, content, documentID, source string,
	metadata map[string]any, typ Type, searchMethod string,
) Hit {
	return Hit{
		score:        score,
		content:      content,
		documentID:   documentID,
		source:       source,
		metadata:     metadata,
		typ:          typ,
		searchMethod: searchMethod,
	}
}

// Rescored returns a copy of h carrying the rerank model's relevance score.
func (h Hit) Rescored(score float64) Hit {
	h.score = score
	h.reranked = true
	return h
}

// Score returns the similarity, keyword, or rerank relevance score.
func (h *Hit) Score() float64 { return h.score }

// Content returns the chunk text or image/table description.
func (h *Hit) Content() string { return h.content }

// DocumentID returns the source document identifier.
func (h *Hit) DocumentID() string { return h.documentID }

// Source returns the provenance of the record.
func (h *Hit) Source() string { return h.source }

// Metadata returns the free-form record metadata.
func (h *Hit) Metadata() map[string]any { return h.metadata }

// RecordType returns whether the hit is a text chunk or an image record.
func (h *Hit) RecordType() Type { return h.typ }

// SearchMethod returns the provenance tag of the call that produced the hit.
func (h *Hit) SearchMethod() string { return h.searchMethod }

// Reranked reports whether the hit passed through the reranker.
func (h *Hit) Reranked() bool { return h.reranked }

// ImageLocator digs the object-store path out of the metadata
// (metadata.image_info.s3_path). Empty when absent.
func (h *Hit) ImageLocator() string {
	info, ok := h.metadata["image_info"].(map[string]any)
	if !ok {
		return ""
	}
	path, _ := info["s3_path"].(string)
	return path
}
