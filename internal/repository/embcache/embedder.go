// Package embcache decorates the embedding providers with a KV cache so
// repeated queries skip the external model call.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/harborview/mmrag/internal/db/redis"
	"github.com/harborview/mmrag/internal/domain"
)

const cacheKeyPrefix = "mmrag:emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// cache holds the shared machinery of both decorators.
type cache struct {
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// TextEmbedder caches text-space embeddings.
type TextEmbedder struct {
	inner domain.TextEmbedder
	cache
}

// MultimodalEmbedder caches multimodal-space embeddings.
type MultimodalEmbedder struct {
	inner domain.MultimodalEmbedder
	cache
}

// NewText creates a caching decorator around a text embedder.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func NewText(
	inner domain.TextEmbedder, s store, ttl time.Duration,
	cacheTotal *prometheus.CounterVec, logger *zap.Logger,
) *TextEmbedder {
	return &TextEmbedder{
		inner: inner,
		cache: cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger},
	}
}

// NewMultimodal creates a caching decorator around a multimodal embedder.
func NewMultimodal(
	inner domain.MultimodalEmbedder, s store, ttl time.Duration,
	cacheTotal *prometheus.CounterVec, logger *zap.Logger,
) *MultimodalEmbedder {
	return &MultimodalEmbedder{
		inner: inner,
		cache: cache{store: s, ttl: ttl, cacheTotal: cacheTotal, logger: logger},
	}
}

// EmbedText returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *TextEmbedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey("text", []byte(text))

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("miss")

	result, err := c.inner.EmbedText(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

// EmbedMultimodal returns a cached embedding or calls the inner embedder.
// The cache key covers both inputs: text-only, image-only, and combined
// requests each get their own entry.
func (c *MultimodalEmbedder) EmbedMultimodal(
	ctx context.Context, text string, image []byte,
) (domain.EmbeddingResult, error) {
	payload := make([]byte, 0, len(text)+len(image)+1)
	payload = append(payload, []byte(text)...)
	payload = append(payload, 0)
	payload = append(payload, image...)
	key := cacheKey("mm", payload)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("miss")

	result, err := c.inner.EmbedMultimodal(ctx, text, image)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed multimodal: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

func (c *cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(space string, payload []byte) string {
	h := sha256.Sum256(payload)
	return cacheKeyPrefix + space + ":" + hex.EncodeToString(h[:])
}

func (c *cache) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *cache) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	data := vectorToCacheBytes(vec)
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
