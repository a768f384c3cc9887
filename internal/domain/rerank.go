package domain

// RankedDoc is one rerank result: the position of a document in the request
// order plus its relevance score on the rerank model's scale.
type RankedDoc struct {
	Index          int
	RelevanceScore float64
}
