// Package health aggregates component health checks and index stats.
package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// IndexInfo summarizes the search index.
type IndexInfo struct {
	DocCount  int64
	StoreSize int64
}

// Report aggregates health check results and, when the backend answers,
// the index summary.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	Index  *IndexInfo
}

// Service coordinates health checks.
type Service struct {
	backend   BackendPinger
	embedding EmbeddingChecker
	stats     StatsProvider
}

// New creates a Service. embedding and stats can be nil.
func New(backend BackendPinger, embedding EmbeddingChecker, stats StatsProvider) *Service {
	return &Service{backend: backend, embedding: embedding, stats: stats}
}

// Check runs health checks against all components. A stats failure only
// omits the index summary; the component checks decide the status.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.backend.Ping(ctx); err != nil {
		checks["search_backend"] = CheckError
	} else {
		checks["search_backend"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	report := Report{Status: status, Checks: checks}
	if s.stats != nil {
		if info, err := s.stats.Stats(ctx); err == nil {
			report.Index = &info
		}
	}
	return report
}
