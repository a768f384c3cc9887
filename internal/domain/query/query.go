// Package query defines the pipeline's input record.
package query

import "github.com/harborview/mmrag/internal/domain"

// Request is one user query. At least one of Text and Image must be present.
type Request struct {
	text  string
	image []byte
}

// New creates a query request. Returns domain.ErrInvalidQuery when both the
// text and the image are empty.
func New(text string, image []byte) (Request, error) {
	if text == "" && len(image) == 0 {
		return Request{}, domain.ErrInvalidQuery
	}
	return Request{text: text, image: image}, nil
}

// Text returns the query text ("" when absent).
func (r *Request) Text() string { return r.text }

// Image returns the raw query image bytes (nil when absent).
func (r *Request) Image() []byte { return r.image }

// HasText reports whether query text is present.
func (r *Request) HasText() bool { return r.text != "" }

// HasImage reports whether a query image is present.
func (r *Request) HasImage() bool { return len(r.image) > 0 }
