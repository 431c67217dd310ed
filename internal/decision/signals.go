package decision

import (
	"context"

	"github.com/enterprise/fraud-pipeline/internal/store"
)

// WatchlistHits reports every watchlist reason code that fires for the
// given entity/IP/device triple (spec.md §4.4).
func WatchlistHits(ctx context.Context, s *store.EntityStore, entityID, ip, deviceFP string) ([]string, error) {
	var hits []string

	entityHit, err := s.IsWatchlisted(ctx, store.WatchlistEntity, entityID)
	if err != nil {
		return hits, err
	}
	if entityHit {
		hits = append(hits, "entity_watchlist")
	}

	ipHit, err := s.IsWatchlisted(ctx, store.WatchlistIP, ip)
	if err != nil {
		return hits, err
	}
	if ipHit {
		hits = append(hits, "ip_watchlist")
	}

	deviceHit, err := s.IsWatchlisted(ctx, store.WatchlistDevice, deviceFP)
	if err != nil {
		return hits, err
	}
	if deviceHit {
		hits = append(hits, "device_watchlist")
	}

	return hits, nil
}

// VelocityAnomaly compares the current 1h/24h velocity against each
// window's per-entity EMA and reports whether either crossed its
// multiplier threshold (3x for 1h, 2x for 24h). The EMA is advanced only
// after this check, never before (spec.md §4.4).
func VelocityAnomaly(ctx context.Context, s *store.EntityStore, entityID string, velocity1h, velocity24h int64) (bool, error) {
	ema1h, err := s.VelocityEMA(ctx, entityID, store.Window1h)
	if err != nil {
		return false, err
	}
	ema24h, err := s.VelocityEMA(ctx, entityID, store.Window24h)
	if err != nil {
		return false, err
	}

	anomaly := float64(velocity1h) > 3*ema1h || float64(velocity24h) > 2*ema24h

	if err := s.UpdateVelocityEMA(ctx, entityID, store.Window1h, float64(velocity1h)); err != nil {
		return anomaly, err
	}
	if err := s.UpdateVelocityEMA(ctx, entityID, store.Window24h, float64(velocity24h)); err != nil {
		return anomaly, err
	}

	return anomaly, nil
}

// GraphAnomaly records this event's entity against the device fingerprint's
// rolling 30-day entity set and reports whether the post-insert set size
// exceeds 5 (spec.md §4.4). A blank deviceFP never anomalizes.
func GraphAnomaly(ctx context.Context, s *store.EntityStore, deviceFP, entityID string) (bool, error) {
	if deviceFP == "" {
		return false, nil
	}
	size, err := s.RecordDeviceEntity(ctx, deviceFP, entityID)
	if err != nil {
		return false, err
	}
	return size > 5, nil
}
