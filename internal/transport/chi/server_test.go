package chi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chirouter "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/domain/answer"
	"github.com/harborview/mmrag/internal/domain/hit"
	"github.com/harborview/mmrag/internal/domain/query"
	healthuc "github.com/harborview/mmrag/internal/usecase/health"
	queryuc "github.com/harborview/mmrag/internal/usecase/query"
)

// --- Mocks ---

type mockPipeline struct {
	outcome   *queryuc.Outcome
	textHits  []hit.Hit
	imageHits []hit.Hit
	err       error
	answerRan bool
	searchRan bool
	lastText  string
	lastImage []byte
}

func (m *mockPipeline) Search(_ context.Context, req *query.Request) ([]hit.Hit, []hit.Hit, error) {
	m.searchRan = true
	m.lastText = req.Text()
	m.lastImage = req.Image()
	return m.textHits, m.imageHits, m.err
}

func (m *mockPipeline) Answer(_ context.Context, req *query.Request) (*queryuc.Outcome, error) {
	m.answerRan = true
	m.lastText = req.Text()
	m.lastImage = req.Image()
	return m.outcome, m.err
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(_ context.Context) error { return s.err }

func newTestRouter(p Pipeline, pingErr error) http.Handler {
	health := healthuc.New(&stubPinger{err: pingErr}, nil, nil)
	server := NewServer(p, health, zap.NewNop())
	r := chirouter.NewRouter()
	server.Routes(r)
	return r
}

func postQuery(t *testing.T, handler http.Handler, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest("POST", "/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestQuery_GeneratesAnswerByDefault(t *testing.T) {
	pipeline := &mockPipeline{
		outcome: &queryuc.Outcome{
			TextHits: []hit.Hit{
				hit.New(0.9, "chunk", "doc-1", "manual.pdf", nil, hit.TypeText, hit.MethodVectorTextField),
			},
			Answer: answer.NewResult("the answer [1]", []answer.Citation{
				answer.NewCitation(1, "doc-1", "manual.pdf", ""),
			}),
		},
	}
	rr := postQuery(t, newTestRouter(pipeline, nil), map[string]any{"text": "question"})

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !pipeline.answerRan {
		t.Error("expected the answer pipeline")
	}

	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "the answer [1]" {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].Index != 1 {
		t.Errorf("unexpected citations %+v", resp.Citations)
	}
	if len(resp.TextResults) != 1 {
		t.Errorf("expected the evidence in the response, got %d results", len(resp.TextResults))
	}
	if resp.TextResults[0].SearchMethod != hit.MethodVectorTextField {
		t.Errorf("unexpected search method %q", resp.TextResults[0].SearchMethod)
	}
}

func TestQuery_SearchOnlyWhenOptedOut(t *testing.T) {
	pipeline := &mockPipeline{
		textHits: []hit.Hit{
			hit.New(0.9, "chunk", "doc-1", "", nil, hit.TypeText, hit.MethodTextMatch),
		},
	}
	rr := postQuery(t, newTestRouter(pipeline, nil), map[string]any{
		"text":            "question",
		"generate_answer": false,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
	if pipeline.answerRan || !pipeline.searchRan {
		t.Error("expected retrieval without answer generation")
	}

	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "" {
		t.Errorf("expected no answer, got %q", resp.Answer)
	}
}

func TestQuery_DecodesImage(t *testing.T) {
	pipeline := &mockPipeline{outcome: &queryuc.Outcome{}}
	image := []byte{0x89, 0x50, 0x4e, 0x47}
	rr := postQuery(t, newTestRouter(pipeline, nil), map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !bytes.Equal(pipeline.lastImage, image) {
		t.Error("the pipeline must receive the decoded image bytes")
	}
}

func TestQuery_BadBase64(t *testing.T) {
	rr := postQuery(t, newTestRouter(&mockPipeline{}, nil), map[string]any{"image": "!!!"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestQuery_EmptyRequest_400(t *testing.T) {
	rr := postQuery(t, newTestRouter(&mockPipeline{}, nil), map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != codeInvalidQuery {
		t.Errorf("got code %q, want %q", errResp.Code, codeInvalidQuery)
	}
}

func TestQuery_MalformedBody_400(t *testing.T) {
	handler := newTestRouter(&mockPipeline{}, nil)
	req := httptest.NewRequest("POST", "/v1/query", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestQuery_OversizedBody_413(t *testing.T) {
	handler := newTestRouter(&mockPipeline{}, nil)

	var body bytes.Buffer
	body.WriteString(`{"image":"`)
	body.Write(bytes.Repeat([]byte("A"), maxBodyBytes+1))
	body.WriteString(`"}`)

	req := httptest.NewRequest("POST", "/v1/query", &body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestQuery_PipelineError_500(t *testing.T) {
	pipeline := &mockPipeline{err: errors.New("backend down")}
	rr := postQuery(t, newTestRouter(pipeline, nil), map[string]any{"text": "q"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestQuery_InvalidQuerySentinel_400(t *testing.T) {
	pipeline := &mockPipeline{err: domain.ErrInvalidQuery}
	rr := postQuery(t, newTestRouter(pipeline, nil), map[string]any{"text": "q"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestHealth_OK(t *testing.T) {
	handler := newTestRouter(&mockPipeline{}, nil)
	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("got status %q, want ok", resp.Status)
	}
}

func TestHealth_Degraded_503(t *testing.T) {
	handler := newTestRouter(&mockPipeline{}, errors.New("refused"))
	req := httptest.NewRequest("GET", "/health", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestMetrics_Exposed(t *testing.T) {
	handler := newTestRouter(&mockPipeline{}, nil)
	req := httptest.NewRequest("GET", "/metrics", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want %d", rr.Code, http.StatusOK)
	}
}
