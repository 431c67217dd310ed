// Package ingest validates inbound transaction and claim events, assigns
// identifiers, and publishes them to the durable event log. Grounded on the
// teacher's internal/ingestion/handler.go (IngestTransaction's validate
// -then-publish shape, idempotency handling, non-fatal publish-failure
// logging), adapted from a Postgres-transaction-backed single tenant model
// to a pure publish-to-the-log boundary per spec.md §4.1 ("the caller is
// the source of truth" — ingest holds no durable copy of its own).
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/enterprise/fraud-pipeline/internal/errs"
	"github.com/enterprise/fraud-pipeline/internal/eventlog"
	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/retry"
)

const (
	TopicEventsTxns   = "events.txns.v1"
	TopicEventsClaims = "events.claims.v1"
)

var trustedChannels = map[models.Channel]bool{
	models.ChannelWeb: true, models.ChannelMobile: true, models.ChannelATM: true,
	models.ChannelPOS: true, models.ChannelPhone: true, models.ChannelAPI: true,
}

var trustedClaimTypes = map[models.ClaimType]bool{
	models.ClaimTypeAuto: true, models.ClaimTypeHome: true, models.ClaimTypeHealth: true,
	models.ClaimTypeLife: true, models.ClaimTypeTravel: true, models.ClaimTypeOther: true,
}

// Service is the Ingest component: validate, assign identifiers, publish.
type Service struct {
	producer *eventlog.Producer
}

// NewService builds an ingest Service.
func NewService(producer *eventlog.Producer) *Service {
	return &Service{producer: producer}
}

// Result is returned to the caller on successful ingest.
type Result struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// IngestTransaction validates and publishes a TransactionEvent, assigning
// an event_id/received_at if absent (spec.md §4.1).
func (s *Service) IngestTransaction(ctx context.Context, ev *models.Event) (*Result, error) {
	ev.Type = models.EventTypeTransaction
	s.stampDefaults(ev)

	if err := validateTransaction(ev); err != nil {
		return nil, err
	}

	return s.publish(ctx, TopicEventsTxns, ev)
}

// IngestClaim validates and publishes a ClaimEvent.
func (s *Service) IngestClaim(ctx context.Context, ev *models.Event) (*Result, error) {
	ev.Type = models.EventTypeClaim
	s.stampDefaults(ev)

	if err := validateClaim(ev); err != nil {
		return nil, err
	}

	return s.publish(ctx, TopicEventsClaims, ev)
}

func (s *Service) stampDefaults(ev *models.Event) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = ev.ReceivedAt
	}
}

func validateTransaction(ev *models.Event) error {
	if ev.EntityID == "" {
		return &errs.ValidationError{Field: "entity_id", Reason: "required"}
	}
	if ev.Amount < 0 {
		return &errs.ValidationError{Field: "amount", Reason: "must be non-negative"}
	}
	if len(ev.Currency) != 3 {
		return &errs.ValidationError{Field: "currency", Reason: "must be ISO-4217 (3 letters)"}
	}
	if ev.Channel != "" && !trustedChannels[ev.Channel] {
		return &errs.ValidationError{Field: "channel", Reason: "unrecognized channel"}
	}
	return nil
}

func validateClaim(ev *models.Event) error {
	if ev.EntityID == "" {
		return &errs.ValidationError{Field: "entity_id", Reason: "required"}
	}
	if ev.Amount < 0 {
		return &errs.ValidationError{Field: "amount", Reason: "must be non-negative"}
	}
	if ev.ClaimType != "" && !trustedClaimTypes[ev.ClaimType] {
		return &errs.ValidationError{Field: "claim_type", Reason: "unrecognized claim type"}
	}
	return nil
}

// publish writes the event to its topic, partitioned by entity, retrying up
// to retry.DefaultAttempts times with exponential backoff and jitter against
// the event log's fixed per-publish deadline before giving up (spec.md §5).
// A publish failure that survives the retry budget is a 5xx-equivalent
// transport failure the caller should itself retry.
func (s *Service) publish(ctx context.Context, topic string, ev *models.Event) (*Result, error) {
	err := retry.Do(ctx, retry.DefaultAttempts, s.producer.OperationTimeout(), func(ctx context.Context) error {
		_, _, err := s.producer.Publish(topic, ev.EntityID, ev)
		return err
	})
	if err != nil {
		return nil, &errs.TransientIOError{Target: "event log", Err: fmt.Errorf("ingest: publish %s: %w", topic, err)}
	}
	return &Result{Status: "accepted", EventID: ev.EventID}, nil
}
