// Package answer builds cited answers from retrieved evidence.
package answer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain/answer"
	"github.com/harborview/mmrag/internal/domain/hit"
)

// noInfoAnswer is returned without a model call when retrieval produced
// nothing to ground an answer on.
const noInfoAnswer = "I could not find relevant information in the knowledge base to answer this question."

// degradedAnswerPrefix opens the answer when the generation model failed.
const degradedAnswerPrefix = "I found relevant information but could not generate an answer: "

// Options tunes answer synthesis.
type Options struct {
	SnippetChars int // text evidence truncation length in the prompt
}

// Service synthesizes answers with dense 1-based citations: text evidence
// first, image evidence after.
type Service struct {
	generator Generator
	assets    AssetFetcher // nil disables image attachment
	opts      Options
	logger    *zap.Logger
}

// New creates a synthesis service. Pass a nil fetcher to skip image
// attachments entirely.
func New(generator Generator, assets AssetFetcher, opts Options, logger *zap.Logger) *Service {
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = 500
	}
	return &Service{generator: generator, assets: assets, opts: opts, logger: logger}
}

// Synthesize produces a cited answer from the evidence. Citation indices are
// assigned before the model call so they are stable regardless of which
// sources the model actually cites. Generation failure degrades to an
// explanatory answer with no citations.
func (s *Service) Synthesize(
	ctx context.Context, query string, textHits, imageHits []hit.Hit,
) (answer.Result, error) {
	if len(textHits) == 0 && len(imageHits) == 0 {
		return answer.NewResult(noInfoAnswer, nil), nil
	}

	citations := buildCitations(textHits, imageHits)
	prompt := s.buildPrompt(query, textHits, imageHits)
	image, mediaType := s.topImage(ctx, imageHits)

	text, err := s.generator.Generate(ctx, prompt, image, mediaType)
	if err != nil {
		s.logger.Warn("answer generation failed", zap.Error(err))
		return answer.NewResult(degradedAnswerPrefix+err.Error(), nil), nil
	}
	return answer.NewResult(text, citations), nil
}

// buildCitations numbers the evidence densely from 1, text hits first.
func buildCitations(textHits, imageHits []hit.Hit) []answer.Citation {
	citations := make([]answer.Citation, 0, len(textHits)+len(imageHits))
	n := 1
	for i := range textHits {
		citations = append(citations, answer.NewCitation(
			n, textHits[i].DocumentID(), textHits[i].Source(), "",
		))
		n++
	}
	for i := range imageHits {
		citations = append(citations, answer.NewCitation(
			n, imageHits[i].DocumentID(), imageHits[i].Source(), imageHits[i].ImageLocator(),
		))
		n++
	}
	return citations
}

// buildPrompt lays out the evidence under [i] labels matching the citation
// numbering. Text snippets are truncated; image descriptions are not, since
// the description is all the model gets for most images.
func (s *Service) buildPrompt(query string, textHits, imageHits []hit.Hit) string {
	var b strings.Builder
	b.WriteString("Answer the question in markdown using only the context below. ")
	b.WriteString("Cite sources inline as [n] using the bracketed numbers. ")
	b.WriteString("Do not add a reference or source list at the end.\n\n")
	b.WriteString("Context:\n")

	n := 1
	for i := range textHits {
		fmt.Fprintf(&b, "[%d] %s\n", n, truncate(textHits[i].Content(), s.opts.SnippetChars))
		n++
	}
	for i := range imageHits {
		fmt.Fprintf(&b, "[%d] (image) %s\n", n, imageHits[i].Content())
		n++
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// topImage fetches the highest-ranked image's bytes for attachment. Any
// failure degrades to a text-only prompt.
func (s *Service) topImage(ctx context.Context, imageHits []hit.Hit) ([]byte, string) {
	if s.assets == nil || len(imageHits) == 0 {
		return nil, ""
	}
	locator := imageHits[0].ImageLocator()
	if locator == "" {
		return nil, ""
	}

	data, err := s.assets.Fetch(ctx, locator)
	if err != nil {
		s.logger.Warn("image attachment fetch failed",
			zap.String("locator", locator), zap.Error(err))
		return nil, ""
	}
	return data, mediaTypeFor(locator)
}

// truncate caps s at n characters, never splitting a multibyte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// mediaTypeFor maps the object key's extension to a MIME type the
// generation model accepts.
func mediaTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
