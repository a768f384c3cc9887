package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain"
	"github.com/harborview/mmrag/internal/metrics"
)

const anthropicVersion = "bedrock-2023-05-31"

// Generator produces grounded answers (Anthropic messages contract).
type Generator struct {
	invoker   Invoker
	modelID   string
	maxTokens int
	logger    *zap.Logger
}

// NewGenerator creates an answer generation provider.
func NewGenerator(invoker Invoker, modelID string, maxTokens int, logger *zap.Logger) *Generator {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Generator{invoker: invoker, modelID: modelID, maxTokens: maxTokens, logger: logger}
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// Generate invokes the answer model with the prompt and at most one inline
// image, returning the generated text.
func (g *Generator) Generate(
	ctx context.Context, prompt string, image []byte, mediaType string,
) (string, error) {
	content := []contentBlock{{Type: "text", Text: prompt}}
	if len(image) > 0 {
		if mediaType == "" {
			mediaType = "image/png"
		}
		content = append(content, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      base64.StdEncoding.EncodeToString(image),
			},
		})
	}

	req := struct {
		AnthropicVersion string    `json:"anthropic_version"`
		MaxTokens        int       `json:"max_tokens"`
		Messages         []message `json:"messages"`
	}{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        g.maxTokens,
		Messages:         []message{{Role: "user", Content: content}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal answer request: %w", err)
	}

	start := time.Now()
	respBody, err := g.invoker.Invoke(ctx, g.modelID, body)
	duration := time.Since(start)

	if err != nil {
		metrics.AnswerRequestsTotal.WithLabelValues(g.modelID, "error").Inc()
		return "", fmt.Errorf("%w: %w", domain.ErrAnswerGeneration, err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		metrics.AnswerRequestsTotal.WithLabelValues(g.modelID, "error").Inc()
		return "", fmt.Errorf("%w: decode response: %w", domain.ErrAnswerGeneration, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := sb.String()
	if text == "" {
		metrics.AnswerRequestsTotal.WithLabelValues(g.modelID, "error").Inc()
		return "", fmt.Errorf("%w: empty model response", domain.ErrAnswerGeneration)
	}

	metrics.AnswerRequestsTotal.WithLabelValues(g.modelID, "success").Inc()
	metrics.AnswerRequestDuration.WithLabelValues(g.modelID).Observe(duration.Seconds())
	return text, nil
}
