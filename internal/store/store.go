// Package store is the optional Postgres archive. Terminated sessions and
// their callback delivery records are persisted here so failed deliveries
// can be reconciled out of band. The service runs without it.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/lure/internal/callback"
	"github.com/MikeSquared-Agency/lure/internal/session"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// WriteReport archives the final state of a terminated session.
// Table: session_reports.
func (s *Store) WriteReport(ctx context.Context, sess session.Session) (uuid.UUID, error) {
	reportID := uuid.New()

	transcript, err := json.Marshal(sess.History)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal transcript: %w", err)
	}
	gathered, err := json.Marshal(sess.Intel)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal intel: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO session_reports (id, session_id, channel, language, locale, turn_count, final_score, termination_reason, transcript, extracted_intel, created_at, terminated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`,
		reportID, sess.ID, sess.Metadata.Channel, sess.Metadata.Language, sess.Metadata.Locale,
		sess.TurnCount, sess.Score, sess.TerminationReason, transcript, gathered, sess.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert session report: %w", err)
	}
	return reportID, nil
}

// WriteCallbackRecord persists delivery accounting for one session's final
// callback. Table: callback_records.
func (s *Store) WriteCallbackRecord(ctx context.Context, rec callback.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO callback_records (id, session_id, attempts, last_attempt_at, delivered, last_error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET attempts = EXCLUDED.attempts,
		    last_attempt_at = EXCLUDED.last_attempt_at,
		    delivered = EXCLUDED.delivered,
		    last_error = EXCLUDED.last_error`,
		rec.ID, rec.SessionID, rec.Attempts, rec.LastAttemptAt, rec.Delivered, rec.LastError,
	)
	if err != nil {
		return fmt.Errorf("insert callback record: %w", err)
	}
	return nil
}

// UndeliveredCallbacks lists sessions whose final callback never landed, for
// external reconciliation tooling.
func (s *Store) UndeliveredCallbacks(ctx context.Context, limit int) ([]callback.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, attempts, last_attempt_at, delivered, COALESCE(last_error, '')
		FROM callback_records
		WHERE delivered = false
		ORDER BY last_attempt_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query callback records: %w", err)
	}
	defer rows.Close()

	var recs []callback.Record
	for rows.Next() {
		var rec callback.Record
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Attempts, &rec.LastAttemptAt, &rec.Delivered, &rec.LastError); err != nil {
			return nil, fmt.Errorf("scan callback record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
