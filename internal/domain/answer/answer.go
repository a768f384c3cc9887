// Package answer defines the synthesized-answer record.
package answer

// Citation points at one piece of evidence injected into the answer prompt.
// Indices are 1-based and dense, in prompt-concatenation order.
type Citation struct {
	index      int
	documentID string
	source     string
	locator    string
}

// NewCitation creates a citation reference. locator may be empty for text
// evidence; for images it is the object-store path of the original asset.
func NewCitation(index int, documentID, source, locator string) Citation {
	return Citation{index: index, documentID: documentID, source: source, locator: locator}
}

// Index returns the 1-based citation number used in the answer text.
func (c *Citation) Index() int { return c.index }

// DocumentID returns the cited document identifier.
func (c *Citation) DocumentID() string { return c.documentID }

// Source returns the cited document's provenance.
func (c *Citation) Source() string { return c.source }

// Locator returns the object-store path of the cited asset, if any.
func (c *Citation) Locator() string { return c.locator }

// Result pairs the generated answer text with the citations whose numbering
// matches the evidence actually injected into the prompt.
type Result struct {
	text      string
	citations []Citation
}

// NewResult creates an answer result.
func NewResult(text string, citations []Citation) Result {
	return Result{text: text, citations: citations}
}

// Text returns the citation-annotated markdown answer.
func (r *Result) Text() string { return r.text }

// Citations returns the ordered citation list.
func (r *Result) Citations() []Citation { return r.citations }
