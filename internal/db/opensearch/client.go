// Package opensearch wraps the OpenSearch client with the query bodies and
// index schema this service needs.
package opensearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/signer/awsv2"

	"github.com/harborview/mmrag/internal/domain"
)

// Config holds connection parameters for the index store.
type Config struct {
	Endpoint   string
	Index      string
	Username   string
	Password   string
	AWSService string // "es" or "aoss"; empty disables request signing
	Region     string
	Timeout    time.Duration
}

// Store is the index store client bound to one configured index.
// Index selection is configuration, never runtime discovery.
type Store struct {
	client  *opensearchgo.Client
	index   string
	timeout time.Duration
}

// NewStore creates an index store client. When cfg.AWSService is set,
// requests are signed with SigV4 credentials from the default AWS chain.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("index is required")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "https://" + endpoint
	}

	osCfg := opensearchgo.Config{
		Addresses: []string{endpoint},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	if cfg.AWSService != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		signer, err := awsv2.NewSignerWithService(awsCfg, cfg.AWSService)
		if err != nil {
			return nil, fmt.Errorf("create request signer: %w", err)
		}
		osCfg.Signer = signer
	}

	client, err := opensearchgo.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Store{client: client, index: cfg.Index, timeout: timeout}, nil
}

// Index returns the configured index name.
func (s *Store) Index() string { return s.index }

// RawHit is one raw record from a search response.
type RawHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// SearchResponse is the parsed body of a search call.
type SearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []RawHit `json:"hits"`
	} `json:"hits"`
}

// Search executes a query body against the configured index.
func (s *Store) Search(ctx context.Context, body []byte) (*SearchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendSearch, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, s.index)
		}
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrBackendSearch, res.StatusCode, detail)
	}

	var parsed SearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrBackendSearch, err)
	}
	return &parsed, nil
}

// Ping checks index store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req := opensearchapi.PingRequest{}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: status %d", res.StatusCode)
	}
	return nil
}
