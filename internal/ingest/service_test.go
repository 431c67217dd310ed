package ingest

import (
	"testing"

	"github.com/enterprise/fraud-pipeline/internal/errs"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

func TestValidateTransaction(t *testing.T) {
	cases := []struct {
		name    string
		ev      models.Event
		wantErr bool
	}{
		{"valid", models.Event{EntityID: "acct-1", Amount: 100, Currency: "USD", Channel: models.ChannelMobile}, false},
		{"missing entity", models.Event{Amount: 100, Currency: "USD"}, true},
		{"negative amount", models.Event{EntityID: "acct-1", Amount: -5, Currency: "USD"}, true},
		{"bad currency", models.Event{EntityID: "acct-1", Amount: 100, Currency: "US"}, true},
		{"bad channel", models.Event{EntityID: "acct-1", Amount: 100, Currency: "USD", Channel: "carrier-pigeon"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validateTransaction(&c.ev)
			if c.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.wantErr {
				var verr *errs.ValidationError
				if !asValidationError(err, &verr) {
					t.Fatalf("expected *errs.ValidationError, got %T", err)
				}
			}
		})
	}
}

func asValidationError(err error, target **errs.ValidationError) bool {
	ve, ok := err.(*errs.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

func TestValidateClaim(t *testing.T) {
	ok := models.Event{EntityID: "policy-1", Amount: 500, ClaimType: models.ClaimTypeAuto}
	if err := validateClaim(&ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := models.Event{EntityID: "policy-1", Amount: 500, ClaimType: "spaceship-collision"}
	if err := validateClaim(&bad); err == nil {
		t.Fatal("expected error for unrecognized claim type")
	}
}

func TestStampDefaultsAssignsEventID(t *testing.T) {
	s := &Service{}
	ev := &models.Event{EntityID: "acct-1"}
	s.stampDefaults(ev)
	if ev.EventID == "" {
		t.Error("expected event_id to be assigned")
	}
	if ev.ReceivedAt.IsZero() {
		t.Error("expected received_at to be stamped")
	}
}
