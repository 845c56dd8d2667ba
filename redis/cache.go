package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jianlins/FastContext/logger"
	"github.com/jianlins/FastContext/metrics"
	"github.com/jianlins/FastContext/types"
	"github.com/jianlins/FastContext/utils"
	"golang.org/x/sync/singleflight"
)

const ResultsDB DB = 3

const (
	cacheKeyPrefix  = "fastcontext:result:"
	DefaultCacheTTL = 24 * time.Hour
)

var cacheLogger = logger.NewLogger("Result cache")

// ByteStore is the part of a key-value store the result cache needs.
type ByteStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (client *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	b, err := client.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return b, err
}

func (client *Client) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return client.client.Set(ctx, key, value, ttl).Err()
}

// ResultCache memoizes classification results. Identical concurrent requests
// are computed once, and store failures fall back to computing the result.
type ResultCache struct {
	store   ByteStore
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

func NewResultCache(store ByteStore, ttl time.Duration, m *metrics.Metrics) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ResultCache{store: store, ttl: ttl, metrics: m}
}

// ResultKey identifies the classification of the concept [begin, end] of a
// tokenized sentence under a rule set. Token offsets are part of the key as
// results carry character offsets.
func ResultKey(fingerprint uint64, tokens []*types.Token, begin int, end int, conceptType string) string {
	parts := make([]string, 0, 2*len(tokens)+4)
	parts = append(parts, strconv.FormatUint(fingerprint, 16), strconv.Itoa(begin), strconv.Itoa(end), conceptType)
	for _, token := range tokens {
		text := ""
		if token.Text != nil {
			text = *token.Text
		}
		parts = append(parts, text, fmt.Sprintf("%d:%d", token.Begin, token.End))
	}
	return fmt.Sprintf("%s%016x", cacheKeyPrefix, utils.HashStrings(parts...))
}

// GetOrCompute returns the cached value of key, or computes and stores it.
// A nil cache always computes.
func (cache *ResultCache) GetOrCompute(ctx context.Context, key string, compute func() ([]byte, error)) ([]byte, error) {
	if cache == nil || cache.store == nil {
		return compute()
	}
	value, err, _ := cache.group.Do(key, func() (interface{}, error) {
		cached, err := cache.store.GetBytes(ctx, key)
		switch {
		case err == nil:
			cache.metrics.ObserveCache(metrics.StatusHit)
			return cached, nil
		case err == ErrNotFound:
			cache.metrics.ObserveCache(metrics.StatusMiss)
		default:
			cache.metrics.ObserveCache(metrics.StatusError)
			cacheLogger.Warn().Err(err).Str("key", key).Msg("Cache read failed, computing result")
		}

		computed, err := compute()
		if err != nil {
			return nil, err
		}
		if err := cache.store.SetBytes(ctx, key, computed, cache.ttl); err != nil {
			cacheLogger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
		}
		return computed, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}
