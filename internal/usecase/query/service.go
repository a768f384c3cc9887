// Package query implements the retrieval-fusion pipeline: strategy
// selection, parallel retrieval, keyword fallback, rerank, and the split
// that feeds the answer synthesizer.
package query

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/domain/answer"
	"github.com/harborview/mmrag/internal/domain/hit"
	"github.com/harborview/mmrag/internal/domain/query"
	"github.com/harborview/mmrag/internal/metrics"
)

// Options tunes the pipeline.
type Options struct {
	TextK      int // text hits fed to the synthesizer
	ImageK     int // image hits fed to the synthesizer
	CandidateK int // hits requested per retrieval call
}

func (o *Options) applyDefaults() {
	if o.TextK <= 0 {
		o.TextK = 3
	}
	if o.ImageK <= 0 {
		o.ImageK = 2
	}
	if o.CandidateK <= 0 {
		o.CandidateK = 5
	}
}

// Service executes the multimodal retrieval pipeline.
type Service struct {
	retriever Retriever
	textEmb   domain.TextEmbedder
	mmEmb     domain.MultimodalEmbedder
	reranker  Reranker // nil disables reranking
	synth     Synthesizer
	opts      Options
	logger    *zap.Logger
}

// New creates a pipeline service. Pass a nil reranker to disable the
// second-pass scoring.
func New(
	retriever Retriever,
	textEmb domain.TextEmbedder,
	mmEmb domain.MultimodalEmbedder,
	reranker Reranker,
	synth Synthesizer,
	opts Options,
	logger *zap.Logger,
) *Service {
	opts.applyDefaults()
	return &Service{
		retriever: retriever,
		textEmb:   textEmb,
		mmEmb:     mmEmb,
		reranker:  reranker,
		synth:     synth,
		opts:      opts,
		logger:    logger,
	}
}

// Outcome is the full result of one pipeline invocation.
type Outcome struct {
	TextHits  []hit.Hit
	ImageHits []hit.Hit
	Answer    answer.Result
}

// Search runs retrieval, fusion, and rerank, returning the final text and
// image evidence. Only an invalid query aborts; every external failure
// degrades its own path.
func (s *Service) Search(ctx context.Context, req *query.Request) ([]hit.Hit, []hit.Hit, error) {
	if !req.HasText() && !req.HasImage() {
		return nil, nil, domain.ErrInvalidQuery
	}

	plan, err := SelectPlan(req)
	if err != nil {
		return nil, nil, err
	}

	pool := s.fuse(ctx, req, plan)
	ranked := s.rerank(ctx, req, pool)
	textHits, imageHits := splitByType(ranked, s.opts.TextK, s.opts.ImageK)

	s.logger.Info("query pipeline complete",
		zap.String("plan", string(plan.Kind)),
		zap.Int("pool", len(pool)),
		zap.Int("text_hits", len(textHits)),
		zap.Int("image_hits", len(imageHits)),
	)
	return textHits, imageHits, nil
}

// Answer runs the full pipeline through answer synthesis.
func (s *Service) Answer(ctx context.Context, req *query.Request) (*Outcome, error) {
	textHits, imageHits, err := s.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	ans, err := s.synth.Synthesize(ctx, req.Text(), textHits, imageHits)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	return &Outcome{TextHits: textHits, ImageHits: imageHits, Answer: ans}, nil
}

// fuse embeds the query, issues the plan's retrieval calls in parallel, and
// concatenates the hits in plan order. Duplicates across methods survive:
// provenance is diagnostic value, collapsing belongs to consumers. When the
// whole vector pool comes back empty and query text exists, keyword search
// is the last resort.
func (s *Service) fuse(ctx context.Context, req *query.Request, plan Plan) []hit.Hit {
	textVec := s.embedTextQuery(ctx, req, plan)
	mmVec := s.embedMultimodalQuery(ctx, req, plan)

	// One result slot per call keeps pool order deterministic regardless
	// of goroutine scheduling.
	results := make([][]hit.Hit, len(plan.Calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range plan.Calls {
		vec := textVec
		if call.Field == domain.VectorFieldMultimodal {
			vec = mmVec
		}

		g.Go(func() error {
			hits, err := s.retriever.SearchByVector(
				gctx, vec, call.Field, s.opts.CandidateK*call.KFactor, call.Filter,
			)
			if err != nil {
				// Degraded: this call contributes zero hits.
				s.logger.Warn("retrieval call failed",
					zap.String("field", call.Field),
					zap.String("filter", string(call.Filter)),
					zap.Error(err),
				)
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	var pool []hit.Hit
	for _, hits := range results {
		pool = append(pool, hits...)
	}

	if len(pool) == 0 && req.HasText() {
		pool = s.keywordFallback(ctx, req.Text())
	}
	return pool
}

// keywordFallback degrades to keyword match over both record types so an
// unavailable embedding subsystem still yields results.
func (s *Service) keywordFallback(ctx context.Context, text string) []hit.Hit {
	metrics.RetrievalFallbackTotal.Inc()
	s.logger.Warn("vector pool empty, falling back to keyword search")

	var pool []hit.Hit
	for _, f := range []domain.RecordFilter{domain.FilterTextOnly, domain.FilterImageOnly} {
		k := s.opts.CandidateK
		hits, err := s.retriever.SearchByText(ctx, text, k, f)
		if err != nil {
			s.logger.Warn("keyword fallback call failed",
				zap.String("filter", string(f)), zap.Error(err))
			continue
		}
		pool = append(pool, hits...)
	}
	return pool
}

// embedTextQuery produces the text-space query vector. Provider failures
// yield an empty vector, which downstream treats as "this path has no
// results" rather than an abort.
func (s *Service) embedTextQuery(ctx context.Context, req *query.Request, plan Plan) []float32 {
	if !plan.NeedsTextEmbedding() || !req.HasText() {
		return nil
	}
	res, err := s.textEmb.EmbedText(ctx, req.Text())
	if err != nil {
		s.logger.Warn("text embedding failed", zap.Error(err))
		return nil
	}
	return res.Embedding
}

// embedMultimodalQuery produces the shared-space query vector. The inputs
// follow the plan kind: both for text+image, text alone, or image alone.
func (s *Service) embedMultimodalQuery(ctx context.Context, req *query.Request, plan Plan) []float32 {
	if !plan.NeedsMultimodalEmbedding() {
		return nil
	}
	res, err := s.mmEmb.EmbedMultimodal(ctx, req.Text(), req.Image())
	if err != nil {
		s.logger.Warn("multimodal embedding failed", zap.Error(err))
		return nil
	}
	return res.Embedding
}

// rerank runs the second-pass relevance scoring over the whole pool. It
// applies only when query text exists; any failure falls back to the
// original pool order. Indices outside the pool are discarded.
func (s *Service) rerank(ctx context.Context, req *query.Request, pool []hit.Hit) []hit.Hit {
	if s.reranker == nil || !req.HasText() || len(pool) == 0 {
		return pool
	}

	docs := make([]string, len(pool))
	for i := range pool {
		docs[i] = pool[i].Content()
	}

	ranked, err := s.reranker.Rerank(ctx, req.Text(), docs, len(pool))
	if err != nil {
		s.logger.Warn("rerank failed, keeping original order", zap.Error(err))
		return pool
	}

	rescored := make([]hit.Hit, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(pool) {
			s.logger.Warn("discarding out-of-range rerank index", zap.Int("index", r.Index))
			continue
		}
		rescored = append(rescored, pool[r.Index].Rescored(r.RelevanceScore))
	}
	if len(rescored) == 0 {
		return pool
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Score() > rescored[j].Score()
	})
	return rescored
}

// splitByType separates the ranked pool into the top text and image hits.
func splitByType(pool []hit.Hit, textK, imageK int) (textHits, imageHits []hit.Hit) {
	for i := range pool {
		switch pool[i].RecordType() {
		case hit.TypeImage:
			if len(imageHits) < imageK {
				imageHits = append(imageHits, pool[i])
			}
		default:
			if len(textHits) < textK {
				textHits = append(textHits, pool[i])
			}
		}
	}
	return textHits, imageHits
}
