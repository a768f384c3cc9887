// Package chi exposes the query pipeline over HTTP.
package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/domain/answer"
	"github.com/harborview/mmrag/internal/domain/hit"
	"github.com/harborview/mmrag/internal/domain/query"
	healthuc "github.com/harborview/mmrag/internal/usecase/health"
	queryuc "github.com/harborview/mmrag/internal/usecase/query"
)

// maxImageBytes caps decoded query images.
const maxImageBytes = 10 << 20

// maxBodyBytes caps the request body before decoding: the base64 image
// expands the decoded cap by 4/3, plus slack for the JSON envelope.
const maxBodyBytes = maxImageBytes/3*4 + 64<<10

// Error codes returned to clients.
const (
	codeBadRequest    = "bad_request"
	codeInvalidQuery  = "invalid_query"
	codeInternalError = "internal_error"
)

// Pipeline is the query service contract the server needs.
type Pipeline interface {
	Search(ctx context.Context, req *query.Request) ([]hit.Hit, []hit.Hit, error)
	Answer(ctx context.Context, req *query.Request) (*queryuc.Outcome, error)
}

// Server handles the HTTP API.
type Server struct {
	pipeline Pipeline
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{pipeline: pipeline, health: health, logger: logger}
}

// Routes registers the API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/query", s.Query)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type queryRequest struct {
	Text           string `json:"text,omitempty"`
	Image          string `json:"image,omitempty"` // base64-encoded
	GenerateAnswer *bool  `json:"generate_answer,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type citationItem struct {
	Index      int    `json:"index"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source,omitempty"`
	Locator    string `json:"locator,omitempty"`
}

type resultItem struct {
	Score        float64        `json:"score"`
	Content      string         `json:"content"`
	DocumentID   string         `json:"document_id"`
	Source       string         `json:"source,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Type         string         `json:"type"`
	SearchMethod string         `json:"search_method"`
	Reranked     bool           `json:"reranked"`
}

type queryResponse struct {
	Answer       string         `json:"answer,omitempty"`
	Citations    []citationItem `json:"citations,omitempty"`
	TextResults  []resultItem   `json:"text_results"`
	ImageResults []resultItem   `json:"image_results"`
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeBadRequest, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	var image []byte
	if req.Image != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "image must be base64-encoded")
			return
		}
		if len(decoded) > maxImageBytes {
			writeError(w, http.StatusBadRequest, codeBadRequest, "image too large")
			return
		}
		image = decoded
	}

	q, err := query.New(req.Text, image)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// Answer generation is on unless the client opts out.
	generate := req.GenerateAnswer == nil || *req.GenerateAnswer

	resp := queryResponse{}
	if generate {
		out, err := s.pipeline.Answer(r.Context(), &q)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Answer = out.Answer.Text()
		resp.Citations = citationsToAPI(out.Answer.Citations())
		resp.TextResults = hitsToAPI(out.TextHits)
		resp.ImageResults = hitsToAPI(out.ImageHits)
	} else {
		textHits, imageHits, err := s.pipeline.Search(r.Context(), &q)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.TextResults = hitsToAPI(textHits)
		resp.ImageResults = hitsToAPI(imageHits)
	}

	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Index  *indexInfo        `json:"index,omitempty"`
}

type indexInfo struct {
	DocCount  int64 `json:"doc_count"`
	StoreSize int64 `json:"store_size_bytes"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	resp := healthResponse{Status: string(report.Status), Checks: checks}
	if report.Index != nil {
		resp.Index = &indexInfo{
			DocCount:  report.Index.DocCount,
			StoreSize: report.Index.StoreSize,
		}
	}
	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, codeInvalidQuery, domain.ErrInvalidQuery.Error())
		return
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func hitsToAPI(hits []hit.Hit) []resultItem {
	items := make([]resultItem, len(hits))
	for i := range hits {
		items[i] = resultItem{
			Score:        hits[i].Score(),
			Content:      hits[i].Content(),
			DocumentID:   hits[i].DocumentID(),
			Source:       hits[i].Source(),
			Metadata:     hits[i].Metadata(),
			Type:         string(hits[i].RecordType()),
			SearchMethod: hits[i].SearchMethod(),
			Reranked:     hits[i].Reranked(),
		}
	}
	return items
}

func citationsToAPI(citations []answer.Citation) []citationItem {
	items := make([]citationItem, len(citations))
	for i := range citations {
		items[i] = citationItem{
			Index:      citations[i].Index(),
			DocumentID: citations[i].DocumentID(),
			Source:     citations[i].Source(),
			Locator:    citations[i].Locator(),
		}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
