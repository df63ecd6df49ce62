package oracle

import (
	"context"

	"github.com/couchcryptid/seedtime-etl/internal/domain"
	"github.com/couchcryptid/seedtime-etl/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedOracle wraps an Oracle with an in-memory LRU cache shared by every
// session it opens. Identical requests from different workers reuse one result.
type CachedOracle struct {
	inner   domain.Oracle
	cache   *lru.Cache[domain.ConversionRequest, string]
	metrics *observability.Metrics
}

// NewCachedOracle creates a cache decorator around an oracle. The cache holds
// at least one entry.
func NewCachedOracle(inner domain.Oracle, maxEntries int, metrics *observability.Metrics) *CachedOracle {
	// New only fails for a non-positive size.
	cache, _ := lru.New[domain.ConversionRequest, string](max(maxEntries, 1))
	return &CachedOracle{
		inner:   inner,
		cache:   cache,
		metrics: metrics,
	}
}

// Open opens a session on the wrapped oracle.
func (c *CachedOracle) Open(ctx context.Context) (domain.OracleSession, error) {
	sess, err := c.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &cachedSession{inner: sess, parent: c}, nil
}

type cachedSession struct {
	inner  domain.OracleSession
	parent *CachedOracle
}

func (s *cachedSession) Convert(ctx context.Context, req domain.ConversionRequest) (string, error) {
	if result, ok := s.parent.cache.Get(req); ok {
		s.parent.record("hit")
		return result, nil
	}
	s.parent.record("miss")

	result, err := s.inner.Convert(ctx, req)
	if err != nil {
		return result, err
	}
	// Only cache usable results so a bad read can be retried on the next run.
	if result != "" {
		s.parent.cache.Add(req, result)
	}
	return result, nil
}

func (s *cachedSession) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

func (c *CachedOracle) record(result string) {
	if c.metrics != nil {
		c.metrics.OracleCache.WithLabelValues(result).Inc()
	}
}
