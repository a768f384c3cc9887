// Package s3 fetches image assets for inline prompt evidence.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/harborview/mmrag/internal/domain"
)

// maxObjectBytes caps a fetched asset; anything larger is unusable as
// inline prompt evidence anyway.
const maxObjectBytes = 20 << 20

// Fetcher retrieves objects from one configured bucket.
type Fetcher struct {
	client *awss3.Client
	bucket string
}

// NewFetcher creates an object fetcher using the default AWS credential chain.
func NewFetcher(ctx context.Context, region, bucket string) (*Fetcher, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Fetcher{client: awss3.NewFromConfig(awsCfg), bucket: bucket}, nil
}

// Fetch returns the raw bytes of the object at key.
func (f *Fetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get s3://%s/%s: %w", domain.ErrAssetFetch, f.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read s3://%s/%s: %w", domain.ErrAssetFetch, f.bucket, key, err)
	}
	return data, nil
}
