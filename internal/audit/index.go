package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/enterprise/fraud-pipeline/internal/models"
	"github.com/enterprise/fraud-pipeline/internal/postgres"
)

// IndexRepository is the append-only Postgres index over evidence bundles,
// model calibration metrics, and feature drift observations (spec.md §6's
// audit-index schema). Grounded on the teacher's
// internal/repositories/audit_repository.go query/scan shape, generalized
// from the old audit_logs table to the spec's three tables.
type IndexRepository struct {
	db *postgres.Database
}

// NewIndexRepository builds an IndexRepository over db.
func NewIndexRepository(db *postgres.Database) *IndexRepository {
	return &IndexRepository{db: db}
}

// InsertRow appends one audit_events row.
func (r *IndexRepository) InsertRow(ctx context.Context, row models.AuditIndexRow) error {
	const query = `
		INSERT INTO audit_events (
			event_id, event_type, entity_id, user_id, action, details,
			evidence_hash, evidence_path, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		_, err := r.db.Pool.Exec(ctx, query,
			row.EventID, row.EventType, row.EntityID, row.UserID, row.Action,
			row.Details, row.EvidenceHash, row.EvidencePath, row.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("audit: insert audit_events row: %w", err)
	}
	return nil
}

// GetByEventID returns the row for eventID, or (zero, false, nil) if none
// exists.
func (r *IndexRepository) GetByEventID(ctx context.Context, eventID string) (models.AuditIndexRow, bool, error) {
	const query = `
		SELECT event_id, event_type, entity_id, user_id, action, details,
		       evidence_hash, evidence_path, created_at
		FROM audit_events
		WHERE event_id = $1
		LIMIT 1
	`
	var row models.AuditIndexRow
	found := true
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		err := r.db.Pool.QueryRow(ctx, query, eventID).Scan(
			&row.EventID, &row.EventType, &row.EntityID, &row.UserID, &row.Action,
			&row.Details, &row.EvidenceHash, &row.EvidencePath, &row.CreatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return models.AuditIndexRow{}, false, fmt.Errorf("audit: get audit_events row: %w", err)
	}
	if !found {
		return models.AuditIndexRow{}, false, nil
	}
	return row, true, nil
}

// ListFilter narrows a List query.
type ListFilter struct {
	EventType string
	EntityID  string
	UserID    string
	Limit     int
	Offset    int
}

// List returns audit_events rows matching filter, ordered by created_at
// descending (spec.md §4.5's listing contract).
func (r *IndexRepository) List(ctx context.Context, f ListFilter) ([]models.AuditIndexRow, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	const query = `
		SELECT event_id, event_type, entity_id, user_id, action, details,
		       evidence_hash, evidence_path, created_at
		FROM audit_events
		WHERE ($1 = '' OR event_type = $1)
		  AND ($2 = '' OR entity_id = $2)
		  AND ($3 = '' OR user_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	var out []models.AuditIndexRow
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := r.db.Pool.Query(ctx, query, f.EventType, f.EntityID, f.UserID, f.Limit, f.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var row models.AuditIndexRow
			if err := rows.Scan(
				&row.EventID, &row.EventType, &row.EntityID, &row.UserID, &row.Action,
				&row.Details, &row.EvidenceHash, &row.EvidencePath, &row.CreatedAt,
			); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("audit: list audit_events: %w", err)
	}
	return out, nil
}

// InsertModelMetric appends one model_metrics row (Monitor collaborator).
func (r *IndexRepository) InsertModelMetric(ctx context.Context, modelName, metricType string, value float64, metadata string, createdAt time.Time) error {
	const query = `
		INSERT INTO model_metrics (model_name, metric_type, metric_value, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		_, err := r.db.Pool.Exec(ctx, query, modelName, metricType, value, metadata, createdAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("audit: insert model_metrics row: %w", err)
	}
	return nil
}

// InsertFeatureDrift appends one feature_drift row (Monitor collaborator).
func (r *IndexRepository) InsertFeatureDrift(ctx context.Context, featureName string, psi float64, refStart, refEnd, curStart, curEnd, createdAt time.Time) error {
	const query = `
		INSERT INTO feature_drift (
			feature_name, psi_value, reference_period_start, reference_period_end,
			current_period_start, current_period_end, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	err := r.db.Retry(ctx, func(ctx context.Context) error {
		_, err := r.db.Pool.Exec(ctx, query, featureName, psi, refStart, refEnd, curStart, curEnd, createdAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("audit: insert feature_drift row: %w", err)
	}
	return nil
}
