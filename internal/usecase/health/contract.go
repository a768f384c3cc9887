package health

import "context"

// BackendPinger checks search backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsProvider reports a summary of the search index.
type StatsProvider interface {
	Stats(ctx context.Context) (IndexInfo, error)
}
