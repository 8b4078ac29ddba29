package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alexwday/report-designer/internal/common/database"
	"github.com/alexwday/report-designer/internal/common/errors"
	"github.com/alexwday/report-designer/internal/common/logger"
	"github.com/alexwday/report-designer/internal/common/metrics"
)

const cacheKeyPrefix = "registry:source:"

// CachedRegistry is a read-through Redis cache in front of another Registry.
// Registry entries change rarely, so a short TTL keeps validation off the
// database during batch generation without a separate invalidation path.
type CachedRegistry struct {
	next  Registry
	redis *database.RedisClient
	ttl   time.Duration
	log   logger.Logger
}

func NewCached(next Registry, redis *database.RedisClient, ttl time.Duration, log logger.Logger) *CachedRegistry {
	return &CachedRegistry{next: next, redis: redis, ttl: ttl, log: log}
}

func (c *CachedRegistry) GetDataSource(ctx context.Context, sourceID string) (*DataSource, error) {
	key := cacheKeyPrefix + sourceID

	if raw, err := c.redis.Get(ctx, key); err == nil {
		var source DataSource
		if err := json.Unmarshal([]byte(raw), &source); err == nil {
			metrics.RegistryCacheRequests.WithLabelValues("hit").Inc()
			return &source, nil
		}
		// Poisoned entry: fall through and refresh.
		_ = c.redis.Del(ctx, key)
	}
	metrics.RegistryCacheRequests.WithLabelValues("miss").Inc()

	source, err := c.next.GetDataSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(source); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl); err != nil {
			c.log.Warn("registry cache write failed", map[string]interface{}{
				"source_id": sourceID,
				"error":     err.Error(),
			})
		}
	}
	return source, nil
}

func (c *CachedRegistry) MethodDetails(ctx context.Context, sourceID, methodID string) (*DataSource, *RetrievalMethod, error) {
	return methodDetails(ctx, c, sourceID, methodID)
}

// ListDataSources always goes to the backing registry; it is a designer-time
// call, not on the generation path.
func (c *CachedRegistry) ListDataSources(ctx context.Context) ([]DataSource, error) {
	return c.next.ListDataSources(ctx)
}

// Invalidate drops the cached entry for a source.
func (c *CachedRegistry) Invalidate(ctx context.Context, sourceID string) error {
	if err := c.redis.Del(ctx, cacheKeyPrefix+sourceID); err != nil {
		return errors.NewQueryExecutionFailedError("registry cache", err)
	}
	return nil
}
