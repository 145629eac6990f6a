package checkpoint

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trinsiklabs/recall/internal/platform/metrics"
	"github.com/trinsiklabs/recall/pkg/domain"
)

const (
	unboundedCacheValue = "unbounded"

	// generationTTL bounds how long an idle user's generation counter lives.
	// It must exceed any boundary value TTL so a cached boundary can never
	// outlive the generation it was written under.
	generationTTL = 24 * time.Hour
)

// BoundaryCache is the subset of redis commands the resolver uses. Satisfied
// by *redis.Client and the platform wrapper around it.
type BoundaryCache interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

// Resolver answers visibility questions: which sequence positions a user can
// currently see. It is read-only and safe to call on every read path; the
// optional cache memoizes the boundary under a per-user generation counter
// that checkpoint changes bump.
type Resolver struct {
	store   Store
	cache   BoundaryCache
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewResolver(store Store, cache BoundaryCache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		store:   store,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// Boundary returns the user's effective visibility boundary: the minimum
// after_sequence among active rollback checkpoints. Overlapping rollbacks
// compose conservatively: the most restrictive wins, so visibility can only
// shrink. When no active rollback exists, bounded is false and nothing is
// filtered. Snapshot and recovery checkpoints never participate.
func (r *Resolver) Boundary(ctx context.Context, userID domain.UserID) (boundary int64, bounded bool, err error) {
	ctx, span := tracer.Start(ctx, "checkpoint.Boundary")
	defer span.End()

	// The generation is read before the store query. A checkpoint change that
	// lands after this read bumps the counter, so the repopulation below goes
	// under a generation no subsequent read consults.
	gen := r.generation(ctx, userID)

	if b, ok, hit := r.cacheGet(ctx, userID, gen); hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return b, ok, nil
	}

	rollbacks, err := r.store.ListActiveRollbacks(ctx, userID)
	if err != nil {
		return 0, false, err
	}

	for _, cp := range rollbacks {
		if !bounded || cp.AfterSequence < boundary {
			boundary = cp.AfterSequence
			bounded = true
		}
	}

	r.cacheSet(ctx, userID, gen, boundary, bounded)
	return boundary, bounded, nil
}

// IsVisible reports whether the entry at the given sequence position is
// currently in the user's view. Performs no writes.
func (r *Resolver) IsVisible(ctx context.Context, userID domain.UserID, entrySequence int64) (bool, error) {
	boundary, bounded, err := r.Boundary(ctx, userID)
	if err != nil {
		return false, err
	}
	if !bounded {
		return true, nil
	}
	return entrySequence <= boundary, nil
}

// Invalidate bumps the user's cache generation so every later read misses.
// An in-flight reader that queried the store before the change repopulates
// under the generation it read first, which no later read consults. Best
// effort: when the bump itself fails, a stale boundary can survive at most
// one value TTL, and the next read repairs it.
func (r *Resolver) Invalidate(ctx context.Context, userID domain.UserID) {
	if r.cache == nil {
		return
	}
	key := generationKey(userID)
	if err := r.cache.Incr(ctx, key).Err(); err != nil {
		if r.logger != nil {
			r.logger.WarnContext(ctx, "boundary cache invalidation failed",
				"user_id", userID,
				"error", err,
			)
		}
		return
	}
	if err := r.cache.Expire(ctx, key, generationTTL).Err(); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "boundary cache generation expiry failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func (r *Resolver) generation(ctx context.Context, userID domain.UserID) int64 {
	if r.cache == nil {
		return 0
	}
	val, err := r.cache.Get(ctx, generationKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) && r.logger != nil {
			r.logger.WarnContext(ctx, "boundary cache generation read failed",
				"user_id", userID,
				"error", err,
			)
		}
		return 0
	}
	gen, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return gen
}

func (r *Resolver) cacheGet(ctx context.Context, userID domain.UserID, gen int64) (boundary int64, bounded bool, hit bool) {
	if r.cache == nil {
		return 0, false, false
	}
	val, err := r.cache.Get(ctx, boundaryKey(userID, gen)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) && r.logger != nil {
			r.logger.WarnContext(ctx, "boundary cache read failed",
				"user_id", userID,
				"error", err,
			)
		}
		if r.metrics != nil {
			r.metrics.BoundaryCacheMiss.Inc()
		}
		return 0, false, false
	}
	if r.metrics != nil {
		r.metrics.BoundaryCacheHits.Inc()
	}
	if val == unboundedCacheValue {
		return 0, false, true
	}
	b, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		// Corrupt cache entry; treat as a miss and let the write path repair it.
		return 0, false, false
	}
	return b, true, true
}

func (r *Resolver) cacheSet(ctx context.Context, userID domain.UserID, gen int64, boundary int64, bounded bool) {
	if r.cache == nil {
		return
	}
	val := unboundedCacheValue
	if bounded {
		val = strconv.FormatInt(boundary, 10)
	}
	if err := r.cache.Set(ctx, boundaryKey(userID, gen), val, r.ttl).Err(); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "boundary cache write failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func boundaryKey(userID domain.UserID, gen int64) string {
	return "recall:boundary:" + userID.String() + ":" + strconv.FormatInt(gen, 10)
}

func generationKey(userID domain.UserID) string {
	return "recall:boundary:gen:" + userID.String()
}
