package query

import (
	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/domain/query"
)

// Kind names a strategy plan.
type Kind string

// Plan kinds, fully determined by which query inputs are non-empty.
const (
	KindTextImage Kind = "text+image"
	KindTextOnly  Kind = "text-only"
	KindImageOnly Kind = "image-only"
)

// VectorCall is one retrieval call of a plan: a KNN search over one vector
// field restricted to one record type. KFactor multiplies the configured
// candidate count; plans use it to weight a record type.
type VectorCall struct {
	Field   string
	Filter  domain.RecordFilter
	KFactor int
}

// Plan lists the retrieval calls to issue for a query. The embedding calls
// the plan needs follow from its vector fields; the multimodal embedding
// inputs follow the plan kind (both, text only, or image only).
type Plan struct {
	Kind  Kind
	Calls []VectorCall
}

// NeedsTextEmbedding reports whether any call targets the text-only space.
func (p *Plan) NeedsTextEmbedding() bool {
	for _, c := range p.Calls {
		if c.Field == domain.VectorFieldText {
			return true
		}
	}
	return false
}

// NeedsMultimodalEmbedding reports whether any call targets the shared space.
func (p *Plan) NeedsMultimodalEmbedding() bool {
	for _, c := range p.Calls {
		if c.Field == domain.VectorFieldMultimodal {
			return true
		}
	}
	return false
}

// SelectPlan chooses the retrieval calls for a request. The choice is
// structural: it depends only on which inputs are present, never on their
// content, so identical requests always produce identical plans.
func SelectPlan(req *query.Request) (Plan, error) {
	switch {
	case req.HasText() && req.HasImage():
		// The text space ranks prose best; the shared space covers both
		// record types for the combined query.
		return Plan{
			Kind: KindTextImage,
			Calls: []VectorCall{
				{Field: domain.VectorFieldText, Filter: domain.FilterTextOnly, KFactor: 1},
				{Field: domain.VectorFieldMultimodal, Filter: domain.FilterTextOnly, KFactor: 1},
				{Field: domain.VectorFieldMultimodal, Filter: domain.FilterImageOnly, KFactor: 1},
			},
		}, nil

	case req.HasText():
		// Each space favors different content, so a text query searches
		// both spaces against both record types.
		return Plan{
			Kind: KindTextOnly,
			Calls: []VectorCall{
				{Field: domain.VectorFieldText, Filter: domain.FilterTextOnly, KFactor: 1},
				{Field: domain.VectorFieldText, Filter: domain.FilterImageOnly, KFactor: 1},
				{Field: domain.VectorFieldMultimodal, Filter: domain.FilterTextOnly, KFactor: 1},
				{Field: domain.VectorFieldMultimodal, Filter: domain.FilterImageOnly, KFactor: 1},
			},
		}, nil

	case req.HasImage():
		// Image queries lean on the shared space, weighted toward image
		// records.
		return Plan{
			Kind: KindImageOnly,
			Calls: []VectorCall{
				{Field: domain.VectorFieldMultimodal, Filter: domain.FilterTextOnly, KFactor: 1},
				{Field: domain.VectorFieldMultimodal, Filter: domain.FilterImageOnly, KFactor: 2},
			},
		}, nil

	default:
		return Plan{}, domain.ErrInvalidQuery
	}
}
