// Package store is the external per-entity key/value store (Redis) that
// owns every piece of mutable state the pipeline needs between events:
// velocity counters, usual-location baselines, risk-lookup caches,
// velocity EMAs for anomaly detection, watchlist sets, and the per-device
// entity graph. Nothing here is held in process memory (spec.md §9's
// redesign note on per-entity mutable counters) so correctness does not
// depend on worker topology.
//
// Grounded on the teacher's internal/queue.CacheClient wrapper
// (Set/Get/Increment/SAdd-style helpers over go-redis) and
// original_source/services/feature-svc/main.py's split
// get_velocity_counts/update_velocity_counts and
// original_source/services/decision-svc/main.py's EMA/watchlist checks.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/retry"
)

// Window is a velocity/EMA tracking window.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
)

var windowTTL = map[Window]time.Duration{
	Window1h:  3600 * time.Second,
	Window24h: 86400 * time.Second,
	Window7d:  604800 * time.Second,
}

// EntityStore is the Redis-backed client every stage uses to read and
// mutate per-entity state.
type EntityStore struct {
	rdb              *redis.Client
	operationTimeout time.Duration
}

// New dials Redis per cfg and verifies connectivity.
func New(cfg config.RedisConfig) (*EntityStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: ping redis: %w", err)
	}

	operationTimeout := cfg.OperationTimeout
	if operationTimeout <= 0 {
		operationTimeout = 50 * time.Millisecond
	}
	return &EntityStore{rdb: rdb, operationTimeout: operationTimeout}, nil
}

// withRetry runs fn under the k/v store's fixed per-call deadline (spec.md
// §5: default 50ms), retrying with exponential backoff and jitter up to
// retry.DefaultAttempts times.
func (s *EntityStore) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, retry.DefaultAttempts, s.operationTimeout, fn)
}

// Close releases the underlying connection pool.
func (s *EntityStore) Close() error { return s.rdb.Close() }

// ReadVelocity returns the counter at (entity, window) as it stood before
// this event — the read is deliberately separate from IncrementVelocity so
// the feature reflects prior activity, never this event's own contribution
// (spec.md §4.2, resolved open question in DESIGN.md).
func (s *EntityStore) ReadVelocity(ctx context.Context, entity string, w Window) (int64, error) {
	key := velocityKey(entity, w)
	var n int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		v, err := s.rdb.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			n = 0
			return nil
		}
		if err != nil {
			return err
		}
		n = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: read velocity %s: %w", key, err)
	}
	return n, nil
}

// IncrementVelocity atomically increments the counter at (entity, window)
// and (re)applies its window-specific TTL, reflecting this event's own
// contribution for the *next* read.
func (s *EntityStore) IncrementVelocity(ctx context.Context, entity string, w Window) error {
	key := velocityKey(entity, w)
	err := s.withRetry(ctx, func(ctx context.Context) error {
		pipe := s.rdb.TxPipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, windowTTL[w])
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: increment velocity %s: %w", key, err)
	}
	return nil
}

func velocityKey(entity string, w Window) string {
	return fmt.Sprintf("velocity:%s:%s", entity, w)
}

// UsualLocation returns the entity's lazily-initialized usual (lat, lon),
// and whether one has been recorded yet.
func (s *EntityStore) UsualLocation(ctx context.Context, entity string) (lat, lon float64, ok bool, err error) {
	key := fmt.Sprintf("usual_location:%s", entity)
	var vals map[string]string
	rerr := s.withRetry(ctx, func(ctx context.Context) error {
		v, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		vals = v
		return nil
	})
	if rerr != nil {
		return 0, 0, false, fmt.Errorf("store: read usual location: %w", rerr)
	}
	if len(vals) == 0 {
		return 0, 0, false, nil
	}
	if _, err := fmt.Sscanf(vals["lat"], "%f", &lat); err != nil {
		return 0, 0, false, fmt.Errorf("store: parse usual location lat: %w", err)
	}
	if _, err := fmt.Sscanf(vals["lon"], "%f", &lon); err != nil {
		return 0, 0, false, fmt.Errorf("store: parse usual location lon: %w", err)
	}
	return lat, lon, true, nil
}

// SetUsualLocation records the entity's usual location. The feature engine
// calls it only to seed the first observed point when none is recorded; it
// never overwrites an existing usual location from the hot path.
func (s *EntityStore) SetUsualLocation(ctx context.Context, entity string, lat, lon float64) error {
	key := fmt.Sprintf("usual_location:%s", entity)
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.rdb.HSet(ctx, key, "lat", lat, "lon", lon).Err()
	})
	if err != nil {
		return fmt.Errorf("store: set usual location: %w", err)
	}
	return nil
}

// IPRisk returns the cached IP risk score, defaulting to 0.1 on a miss
// (spec.md §4.2), TTL 1h. A hit does not refresh the TTL.
func (s *EntityStore) IPRisk(ctx context.Context, ip string) (score float64, cacheHit bool, err error) {
	return s.cachedFloat(ctx, fmt.Sprintf("ip_risk:%s", ip), 0.1, time.Hour)
}

// MerchantRisk returns the cached merchant risk score, defaulting to 0.05
// on a miss, TTL 24h.
func (s *EntityStore) MerchantRisk(ctx context.Context, merchantID string) (score float64, cacheHit bool, err error) {
	return s.cachedFloat(ctx, fmt.Sprintf("merchant_risk:%s", merchantID), 0.05, 24*time.Hour)
}

// AccountAge returns the cached account age in days, defaulting to 365 on
// a miss, TTL 24h.
func (s *EntityStore) AccountAge(ctx context.Context, entity string) (days float64, cacheHit bool, err error) {
	return s.cachedFloat(ctx, fmt.Sprintf("account_age:%s", entity), 365, 24*time.Hour)
}

// cachedFloat is a read-through cache lookup: on a hit it returns the
// stored value; on a miss it seeds the cache with defaultVal (so
// subsequent reads within ttl are genuine cache hits) and reports the miss
// to the caller so feature computation can stamp cache_hit = false.
func (s *EntityStore) cachedFloat(ctx context.Context, key string, defaultVal float64, ttl time.Duration) (float64, bool, error) {
	var value float64
	var hit bool
	err := s.withRetry(ctx, func(ctx context.Context) error {
		v, err := s.rdb.Get(ctx, key).Float64()
		if errors.Is(err, redis.Nil) {
			if serr := s.rdb.Set(ctx, key, defaultVal, ttl).Err(); serr != nil {
				return serr
			}
			value, hit = defaultVal, false
			return nil
		}
		if err != nil {
			return err
		}
		value, hit = v, true
		return nil
	})
	if err != nil {
		return defaultVal, false, fmt.Errorf("store: cache lookup %s: %w", key, err)
	}
	return value, hit, nil
}

// VelocityEMA returns the entity's current exponential moving average for
// a window (1h or 24h), used by the decision engine's anomaly detector.
func (s *EntityStore) VelocityEMA(ctx context.Context, entity string, w Window) (float64, error) {
	key := emaKey(entity, w)
	var value float64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		v, err := s.rdb.Get(ctx, key).Float64()
		if errors.Is(err, redis.Nil) {
			value = 0
			return nil
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: read velocity EMA %s: %w", key, err)
	}
	return value, nil
}

// UpdateVelocityEMA applies one exponential-moving-average step (alpha =
// 0.1 per spec.md §4.4) using the observed current velocity, and must be
// called *after* the anomaly check against the prior EMA, never before.
func (s *EntityStore) UpdateVelocityEMA(ctx context.Context, entity string, w Window, observed float64) error {
	const alpha = 0.1
	prev, err := s.VelocityEMA(ctx, entity, w)
	if err != nil {
		return err
	}
	next := alpha*observed + (1-alpha)*prev
	key := emaKey(entity, w)
	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.rdb.Set(ctx, key, next, 86400*time.Second).Err()
	})
	if err != nil {
		return fmt.Errorf("store: update velocity EMA %s: %w", key, err)
	}
	return nil
}

func emaKey(entity string, w Window) string {
	return fmt.Sprintf("velocity_pattern_%s:%s", w, entity)
}

// Geolocation returns a cached IP-to-geolocation resolution, defaulting to
// a documented neutral placeholder on a miss (mirrors the IPRisk/
// MerchantRisk cache-with-default shape; grounded on
// original_source/services/feature-svc/main.py's get_geolocation cache,
// TTL 24h).
func (s *EntityStore) Geolocation(ctx context.Context, ip string) (lat, lon float64, cacheHit bool, err error) {
	if ip == "" {
		return 0, 0, false, nil
	}
	key := fmt.Sprintf("geo:%s", ip)

	const defaultLat, defaultLon = 37.7749, -122.4194 // documented default on cache miss
	rerr := s.withRetry(ctx, func(ctx context.Context) error {
		vals, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(vals) == 2 {
			fmt.Sscanf(vals["lat"], "%f", &lat)
			fmt.Sscanf(vals["lon"], "%f", &lon)
			cacheHit = true
			return nil
		}

		if err := s.rdb.HSet(ctx, key, "lat", defaultLat, "lon", defaultLon).Err(); err != nil {
			return err
		}
		s.rdb.Expire(ctx, key, 24*time.Hour)
		lat, lon, cacheHit = defaultLat, defaultLon, false
		return nil
	})
	if rerr != nil {
		return 0, 0, false, fmt.Errorf("store: geolocation lookup %s: %w", key, rerr)
	}
	return lat, lon, cacheHit, nil
}

// WatchlistKind names which watchlist set to test.
type WatchlistKind string

const (
	WatchlistEntity WatchlistKind = "entities"
	WatchlistIP     WatchlistKind = "ips"
	WatchlistDevice WatchlistKind = "devices"
)

// IsWatchlisted reports whether value is a member of the given watchlist
// set (spec.md §4.4).
func (s *EntityStore) IsWatchlisted(ctx context.Context, kind WatchlistKind, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	key := fmt.Sprintf("watchlist:%s", kind)
	var member bool
	err := s.withRetry(ctx, func(ctx context.Context) error {
		ok, err := s.rdb.SIsMember(ctx, key, value).Result()
		if err != nil {
			return err
		}
		member = ok
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store: watchlist membership %s: %w", key, err)
	}
	return member, nil
}

// RecordDeviceEntity adds entity to the 30-day rolling set of distinct
// entities seen on deviceFP and returns the set's size *after* the
// insertion, for the graph-anomaly check (spec.md §4.4: flag if > 5).
func (s *EntityStore) RecordDeviceEntity(ctx context.Context, deviceFP, entity string) (setSize int64, err error) {
	if deviceFP == "" {
		return 0, nil
	}
	key := fmt.Sprintf("device_entities:%s", deviceFP)
	var size int64
	rerr := s.withRetry(ctx, func(ctx context.Context) error {
		pipe := s.rdb.TxPipeline()
		pipe.SAdd(ctx, key, entity)
		pipe.Expire(ctx, key, 30*24*time.Hour)
		card := pipe.SCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		size = card.Val()
		return nil
	})
	if rerr != nil {
		return 0, fmt.Errorf("store: record device entity %s: %w", key, rerr)
	}
	return size, nil
}
