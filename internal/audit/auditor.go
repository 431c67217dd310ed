package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/errs"
	"github.com/enterprise/fraud-pipeline/internal/models"
)

// Auditor ties the canonicalization/hashing helpers, the object store, and
// the Postgres index together into the write and verify paths spec.md
// §4.5 describes.
type Auditor struct {
	objects *ObjectStore
	index   *IndexRepository
}

// NewAuditor builds an Auditor over the given object store and index.
func NewAuditor(objects *ObjectStore, index *IndexRepository) *Auditor {
	return &Auditor{objects: objects, index: index}
}

// RecordParams describes one evidence bundle to persist.
type RecordParams struct {
	EventID      string
	EventType    string
	EntityID     string
	UserID       string
	Action       string
	Details      string
	EvidenceType models.EvidenceType
	Payload      map[string]interface{}
}

// Record canonicalizes and hashes p.Payload, writes it to the object
// store, then inserts the audit index row. If the object write succeeds
// but the index insert fails, the bundle is orphaned rather than lost
// (spec.md §4.5); the caller sees an *errs.AuditPathError either way so it
// can decide whether to drop this event's decision (decision stage, type 5
// in the §7 taxonomy) or merely log (ingest/feature/score stages, whose
// audit trail is best-effort).
func (a *Auditor) Record(ctx context.Context, p RecordParams) (models.EvidenceBundle, error) {
	canonical, err := CanonicalJSON(p.Payload)
	if err != nil {
		return models.EvidenceBundle{}, &errs.AuditPathError{Stage: "canonicalize", Err: err}
	}
	hash := Hash(canonical)
	bundleID := uuid.New().String()
	now := time.Now().UTC()

	path, err := a.objects.Put(ctx, bundleID, now, canonical)
	if err != nil {
		return models.EvidenceBundle{}, &errs.AuditPathError{Stage: "object_write", Err: err}
	}

	row := models.AuditIndexRow{
		EventID:      p.EventID,
		EventType:    p.EventType,
		EntityID:     p.EntityID,
		UserID:       p.UserID,
		Action:       p.Action,
		Details:      p.Details,
		EvidenceHash: hash,
		EvidencePath: path,
		CreatedAt:    now,
	}
	if err := a.index.InsertRow(ctx, row); err != nil {
		log.Error().Err(err).
			Str("event_id", p.EventID).
			Str("bundle_id", bundleID).
			Str("path", path).
			Msg("audit: object write succeeded but index insert failed; bundle orphaned, replayable on retry")
		return models.EvidenceBundle{}, &errs.AuditPathError{Stage: "index_insert", Err: err}
	}

	return models.EvidenceBundle{
		BundleID:     bundleID,
		EventID:      p.EventID,
		EvidenceType: p.EvidenceType,
		Payload:      p.Payload,
		CreatedAt:    now,
		Hash:         hash,
		SizeBytes:    len(canonical),
	}, nil
}

// VerifyResult is the outcome of a Verify call.
type VerifyResult struct {
	Status        models.IntegrityStatus
	CalculatedHash string
	StoredHash     string
}

// Verify recomputes the hash of the object stored for eventID and compares
// it against the indexed hash (spec.md §4.5).
func (a *Auditor) Verify(ctx context.Context, eventID string) (VerifyResult, error) {
	row, found, err := a.index.GetByEventID(ctx, eventID)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("audit: verify lookup: %w", err)
	}
	if !found {
		return VerifyResult{Status: models.IntegrityNoEvidence}, nil
	}

	raw, err := a.objects.Get(ctx, row.EvidencePath)
	if err != nil {
		return VerifyResult{Status: models.IntegrityNoEvidence, StoredHash: row.EvidenceHash}, nil
	}

	var payload map[string]interface{}
	if err := unmarshalCanonicalObject(raw, &payload); err != nil {
		return VerifyResult{}, fmt.Errorf("audit: unmarshal stored object: %w", err)
	}

	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("audit: recanonicalize: %w", err)
	}
	calculated := Hash(canonical)

	if calculated != row.EvidenceHash {
		return VerifyResult{Status: models.IntegrityCompromised, CalculatedHash: calculated, StoredHash: row.EvidenceHash}, nil
	}
	return VerifyResult{Status: models.IntegrityVerified, CalculatedHash: calculated, StoredHash: row.EvidenceHash}, nil
}

// List delegates to the index repository's listing (spec.md §4.5).
func (a *Auditor) List(ctx context.Context, f ListFilter) ([]models.AuditIndexRow, error) {
	return a.index.List(ctx, f)
}
