package features

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/store"
)

const schemaVersion = "fv.v1"

// Engine computes a FeatureVector for an event against the external
// per-entity store, degrading individual fields to documented defaults on
// a state-store error rather than ever dropping the event.
type Engine struct {
	store *store.EntityStore
}

// NewEngine builds a feature Engine over the given entity store.
func NewEngine(s *store.EntityStore) *Engine {
	return &Engine{store: s}
}

// Compute derives the full feature vector for ev, reading and then
// updating per-entity state in the store. Velocity reads reflect the
// entity's activity strictly before this event (spec.md §4.2); velocity
// increments for this event are applied only after the read, so they never
// contaminate this event's own feature.
func (e *Engine) Compute(ctx context.Context, ev *models.Event) *models.FeatureVector {
	start := time.Now()
	cacheHit := true

	fv := &models.FeatureVector{
		EventID:       ev.EventID,
		EntityID:      ev.EntityID,
		ComputedAt:    time.Now().UTC(),
		Amount:        ev.Amount,
		Currency:      ev.Currency,
		Channel:       ev.Channel,
		IPAddress:     ev.IPAddress,
		SchemaVersion: schemaVersion,
		DeviceFingerprint: ev.DeviceFP,
		SessionID:     ev.SessionID,
		UserAgentHash: hashUserAgent(ev.UserAgent),
	}

	fv.Velocity1h = e.readVelocity(ctx, ev.EntityID, store.Window1h, &cacheHit)
	fv.Velocity24h = e.readVelocity(ctx, ev.EntityID, store.Window24h, &cacheHit)
	fv.Velocity7d = e.readVelocity(ctx, ev.EntityID, store.Window7d, &cacheHit)

	// This event's own contribution is recorded only after every read above.
	e.incrementVelocity(ctx, ev.EntityID, store.Window1h)
	e.incrementVelocity(ctx, ev.EntityID, store.Window24h)
	e.incrementVelocity(ctx, ev.EntityID, store.Window7d)

	if ev.IPAddress != "" {
		risk, hit, err := e.store.IPRisk(ctx, ev.IPAddress)
		if err != nil {
			log.Warn().Err(err).Str("event_id", ev.EventID).Msg("features: ip risk lookup degraded to default")
			cacheHit = false
			risk = 0.1
		} else if !hit {
			cacheHit = false
		}
		fv.IPRiskScore = risk
	} else {
		fv.IPRiskScore = 0.1
	}

	if ev.MerchantID != "" {
		risk, hit, err := e.store.MerchantRisk(ctx, ev.MerchantID)
		if err != nil {
			log.Warn().Err(err).Str("event_id", ev.EventID).Msg("features: merchant risk lookup degraded to default")
			cacheHit = false
			risk = 0.05
		} else if !hit {
			cacheHit = false
		}
		fv.MerchantRiskScore = risk
	} else {
		fv.MerchantRiskScore = 0.05
	}

	age, hit, err := e.store.AccountAge(ctx, ev.EntityID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.EventID).Msg("features: account age lookup degraded to default")
		cacheHit = false
		age = 365
	} else if !hit {
		cacheHit = false
	}
	fv.AccountAgeDays = age

	fv.GeoDistanceKM, fv.Geo = e.computeGeo(ctx, ev, &cacheHit)

	fv.Compute = models.ComputeMetadata{
		ComputeTimeMS:        float64(time.Since(start).Microseconds()) / 1000.0,
		CacheHit:             cacheHit,
		DataFreshnessMinutes: 0,
	}

	return fv
}

func (e *Engine) readVelocity(ctx context.Context, entity string, w store.Window, cacheHit *bool) int64 {
	v, err := e.store.ReadVelocity(ctx, entity, w)
	if err != nil {
		log.Warn().Err(err).Str("entity_id", entity).Str("window", string(w)).Msg("features: velocity read degraded to default")
		*cacheHit = false
		return 0
	}
	return v
}

func (e *Engine) incrementVelocity(ctx context.Context, entity string, w store.Window) {
	if err := e.store.IncrementVelocity(ctx, entity, w); err != nil {
		log.Warn().Err(err).Str("entity_id", entity).Str("window", string(w)).Msg("features: velocity increment failed")
	}
}

func (e *Engine) computeGeo(ctx context.Context, ev *models.Event, cacheHit *bool) (float64, *models.Geolocation) {
	if ev.IPAddress == "" {
		return 0, nil
	}

	lat, lon, hit, err := e.store.Geolocation(ctx, ev.IPAddress)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.EventID).Msg("features: geolocation lookup degraded to default")
		*cacheHit = false
		return 0, nil
	}
	if !hit {
		*cacheHit = false
	}
	geo := &models.Geolocation{Lat: lat, Lon: lon}

	usualLat, usualLon, ok, err := e.store.UsualLocation(ctx, ev.EntityID)
	if err != nil {
		log.Warn().Err(err).Str("event_id", ev.EventID).Msg("features: usual location read degraded to default")
		*cacheHit = false
		return 0, geo
	}
	if !ok {
		// Lazy initialization to the first observed point (spec.md §4.2);
		// this is the only write to the usual location the hot path performs.
		if err := e.store.SetUsualLocation(ctx, ev.EntityID, lat, lon); err != nil {
			log.Warn().Err(err).Str("event_id", ev.EventID).Msg("features: failed to seed usual location")
		}
		return 0, geo
	}

	return Haversine(usualLat, usualLon, lat, lon), geo
}

// hashUserAgent returns a short, stable, non-reversible-in-practice
// identifier for a user agent string without persisting the raw header.
func hashUserAgent(ua string) string {
	if ua == "" {
		return ""
	}
	h := fnv.New64a()
	h.Write([]byte(ua))
	return strconv.FormatUint(h.Sum64(), 16)
}
