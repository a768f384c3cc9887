package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/domain"
)

func TestGenerator_TextOnly(t *testing.T) {
	invoker := &stubInvoker{
		response: []byte(`{"content":[{"type":"text","text":"the answer "},{"type":"text","text":"[1]"}]}`),
	}
	g := NewGenerator(invoker, "anthropic.claude-3-sonnet-20240229-v1:0", 1024, zap.NewNop())

	text, err := g.Generate(context.Background(), "prompt", nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "the answer [1]" {
		t.Errorf("expected concatenated text blocks, got %q", text)
	}

	var req struct {
		AnthropicVersion string `json:"anthropic_version"`
		MaxTokens        int    `json:"max_tokens"`
		Messages         []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(invoker.lastBody, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.AnthropicVersion != anthropicVersion {
		t.Errorf("unexpected version %q", req.AnthropicVersion)
	}
	if req.MaxTokens != 1024 {
		t.Errorf("expected max_tokens 1024, got %d", req.MaxTokens)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages %+v", req.Messages)
	}
	if len(req.Messages[0].Content) != 1 || req.Messages[0].Content[0].Type != "text" {
		t.Errorf("expected a single text block, got %+v", req.Messages[0].Content)
	}
}

func TestGenerator_WithImage(t *testing.T) {
	invoker := &stubInvoker{response: []byte(`{"content":[{"type":"text","text":"ok"}]}`)}
	g := NewGenerator(invoker, "model", 0, zap.NewNop())

	if _, err := g.Generate(context.Background(), "prompt", []byte{0xff, 0xd8}, "image/jpeg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var req struct {
		Messages []struct {
			Content []struct {
				Type   string `json:"type"`
				Source *struct {
					Type      string `json:"type"`
					MediaType string `json:"media_type"`
					Data      string `json:"data"`
				} `json:"source"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(invoker.lastBody, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	content := req.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("expected text + image blocks, got %d", len(content))
	}
	img := content[1]
	if img.Type != "image" || img.Source == nil {
		t.Fatalf("unexpected image block %+v", img)
	}
	if img.Source.Type != "base64" || img.Source.MediaType != "image/jpeg" || img.Source.Data == "" {
		t.Errorf("unexpected image source %+v", img.Source)
	}
}

func TestGenerator_ProviderError(t *testing.T) {
	invoker := &stubInvoker{err: errors.New("throttled")}
	g := NewGenerator(invoker, "model", 0, zap.NewNop())

	_, err := g.Generate(context.Background(), "prompt", nil, "")
	if !errors.Is(err, domain.ErrAnswerGeneration) {
		t.Fatalf("expected ErrAnswerGeneration, got %v", err)
	}
}

func TestGenerator_EmptyResponse(t *testing.T) {
	invoker := &stubInvoker{response: []byte(`{"content":[]}`)}
	g := NewGenerator(invoker, "model", 0, zap.NewNop())

	_, err := g.Generate(context.Background(), "prompt", nil, "")
	if !errors.Is(err, domain.ErrAnswerGeneration) {
		t.Fatalf("expected ErrAnswerGeneration, got %v", err)
	}
}
