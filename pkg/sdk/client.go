// Package sdk is a small HTTP client for the mmrag query API.
package sdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidQuery mirrors the server's invalid-query rejection.
// Use errors.Is() to check.
var ErrInvalidQuery = errors.New("mmrag: query requires text or an image")

// ErrUnauthorized indicates a missing or invalid API key.
var ErrUnauthorized = errors.New("mmrag: unauthorized")

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	httpClient *http.Client
	apiKey     string
	timeout    time.Duration
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(c *clientConfig) { c.httpClient = hc })
}

// WithAPIKey sets the Bearer token sent on every request.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) { c.apiKey = key })
}

// WithTimeout sets the per-request timeout. Answer generation can take
// tens of seconds; the default is 120s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) { c.timeout = d })
}

// Client calls the mmrag HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
}

// New creates a client for the API at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("mmrag: base URL required")
	}

	cfg := &clientConfig{timeout: 120 * time.Second}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: cfg.httpClient,
		apiKey:     cfg.apiKey,
	}, nil
}

// Query is one request to the pipeline. At least one of Text and Image must
// be set. GenerateAnswer defaults to true when nil.
type Query struct {
	Text           string
	Image          []byte
	GenerateAnswer *bool
}

// Citation points at one piece of evidence used in the answer.
type Citation struct {
	Index      int    `json:"index"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source,omitempty"`
	Locator    string `json:"locator,omitempty"`
}

// Result is one retrieved record.
type Result struct {
	Score        float64        `json:"score"`
	Content      string         `json:"content"`
	DocumentID   string         `json:"document_id"`
	Source       string         `json:"source,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Type         string         `json:"type"`
	SearchMethod string         `json:"search_method"`
	Reranked     bool           `json:"reranked"`
}

// Response is the full pipeline output.
type Response struct {
	Answer       string     `json:"answer,omitempty"`
	Citations    []Citation `json:"citations,omitempty"`
	TextResults  []Result   `json:"text_results"`
	ImageResults []Result   `json:"image_results"`
}

type queryRequest struct {
	Text           string `json:"text,omitempty"`
	Image          string `json:"image,omitempty"`
	GenerateAnswer *bool  `json:"generate_answer,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Do runs a query against the API.
func (c *Client) Do(ctx context.Context, q Query) (*Response, error) {
	if q.Text == "" && len(q.Image) == 0 {
		return nil, ErrInvalidQuery
	}

	body := queryRequest{
		Text:           q.Text,
		GenerateAnswer: q.GenerateAnswer,
	}
	if len(q.Image) > 0 {
		body.Image = base64.StdEncoding.EncodeToString(q.Image)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("mmrag: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("mmrag: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mmrag: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("mmrag: decode response: %w", err)
	}
	return &out, nil
}

func apiError(resp *http.Response) error {
	var er errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&er)

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if er.Code == "invalid_query" {
			return ErrInvalidQuery
		}
		return fmt.Errorf("mmrag: bad request: %s", er.Message)
	case http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("mmrag: status %d: %s", resp.StatusCode, er.Message)
	}
}
