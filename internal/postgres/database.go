// Package postgres wraps the append-only index store (Postgres via pgx)
// shared by the Decision Engine's policy table and the Auditor's evidence
// index. Grounded on the teacher's internal/repositories/database.go pool
// wrapper and WithTransaction helper, generalized beyond the old
// transaction/account/audit domain tables.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/enterprise/fraud-pipeline/internal/config"
	"github.com/enterprise/fraud-pipeline/internal/retry"
)

// Database wraps the pgx connection pool used by every component that
// reads or writes the append-only index store.
type Database struct {
	Pool             *pgxpool.Pool
	operationTimeout time.Duration
}

// New parses cfg and opens a connection pool, verifying connectivity.
func New(cfg config.PostgresConfig) (*Database, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}

	pgxCfg.MaxConns = int32(cfg.MaxOpenConns)
	pgxCfg.MinConns = int32(cfg.MaxIdleConns)
	pgxCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(context.Background(), pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	operationTimeout := cfg.OperationTimeout
	if operationTimeout <= 0 {
		operationTimeout = 500 * time.Millisecond
	}

	log.Info().Msg("postgres: connection pool established")
	return &Database{Pool: pool, operationTimeout: operationTimeout}, nil
}

// Retry runs fn under the index store's fixed per-query deadline (spec.md
// §5: default 500ms), retrying with exponential backoff and jitter up to
// retry.DefaultAttempts times. Callers wrap a single Pool.Query/QueryRow/
// Exec call (or a short sequence of them) in fn.
func (db *Database) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, retry.DefaultAttempts, db.operationTimeout, fn)
}

// Close releases the pool.
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		log.Info().Msg("postgres: connection pool closed")
	}
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on error or panic. The whole transaction is bound by the
// index store's fixed per-query deadline and retried with backoff and
// jitter (spec.md §5) on any error, including one returned by fn: fn's
// transaction is rolled back and Begin, fn and Commit run again.
func (db *Database) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.Retry(ctx, func(ctx context.Context) error {
		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("postgres: begin tx: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback(ctx)
				panic(p)
			}
		}()

		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
			}
			return err
		}

		return tx.Commit(ctx)
	})
}

// HealthCheck pings the pool.
func (db *Database) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
