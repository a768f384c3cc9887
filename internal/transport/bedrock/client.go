// Package bedrock adapts Bedrock InvokeModel into the pipeline's embedding,
// rerank, and answer-generation contracts.
package bedrock

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// Invoker issues one model invocation. Satisfied by Client; tests substitute
// a stub.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

// Client wraps the Bedrock runtime with a per-call timeout.
type Client struct {
	runtime *bedrockruntime.Client
	timeout time.Duration
}

// NewClient creates a Bedrock runtime client using the default AWS
// credential chain.
func NewClient(ctx context.Context, region string, timeout time.Duration) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{runtime: bedrockruntime.NewFromConfig(awsCfg), timeout: timeout}, nil
}

// Invoke calls a model with a JSON body and returns the raw JSON response.
// The timeout bounds a single call: a slow model degrades that call only,
// never the whole pipeline.
func (c *Client) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", modelID, err)
	}
	return out.Body, nil
}
