package query

import (
	"errors"
	"testing"

	"github.com/harborview/mmrag/internal/domain"
)

func TestNew(t *testing.T) {
	if _, err := New("", nil); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}

	r, err := New("text", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.HasText() || r.HasImage() {
		t.Errorf("unexpected presence flags: text=%v image=%v", r.HasText(), r.HasImage())
	}

	r, err = New("", []byte{0x01})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.HasText() || !r.HasImage() {
		t.Errorf("unexpected presence flags: text=%v image=%v", r.HasText(), r.HasImage())
	}
}
