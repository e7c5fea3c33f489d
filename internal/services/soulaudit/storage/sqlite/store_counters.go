package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/ratelimit"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// IncrementAuditCount atomically bumps the session's counter unless it has
// reached ceiling. The single UPSERT keeps two concurrent calls at the
// ceiling from both passing.
func (s *Store) IncrementAuditCount(ctx context.Context, sessionToken string, ceiling int) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, false, fmt.Errorf("storage is not configured")
	}
	if ceiling <= 0 {
		count, err := s.GetAuditCount(ctx, sessionToken)
		if err != nil {
			return 0, false, err
		}
		return count, false, nil
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO session_counters (session_token, audit_count) VALUES (?, 1)
		 ON CONFLICT(session_token) DO UPDATE SET audit_count = audit_count + 1
		 WHERE audit_count < ?`,
		sessionToken,
		ceiling,
	)
	if err != nil {
		return 0, false, fmt.Errorf("increment audit count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("increment audit count: %w", err)
	}

	count, err := s.GetAuditCount(ctx, sessionToken)
	if err != nil {
		return 0, false, err
	}
	return count, affected > 0, nil
}

// GetAuditCount returns the session's current cycle counter, zero when the
// session has never submitted.
func (s *Store) GetAuditCount(ctx context.Context, sessionToken string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT audit_count FROM session_counters WHERE session_token = ?`,
		sessionToken,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get audit count: %w", err)
	}
	return count, nil
}

// CheckAndIncrement implements the rate limiter's fixed-window counter on
// top of the store's database.
func (s *Store) CheckAndIncrement(ctx context.Context, namespace, key string, limit int, window time.Duration) (ratelimit.Decision, error) {
	if err := ctx.Err(); err != nil {
		return ratelimit.Decision{}, err
	}
	if s == nil || s.sqlDB == nil {
		return ratelimit.Decision{}, fmt.Errorf("storage is not configured")
	}

	now := s.clock().UTC()
	bucket := namespace + "\x00" + key

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("begin rate window: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var windowStart int64
	var count int
	err = tx.QueryRowContext(
		ctx,
		`SELECT window_start, count FROM rate_windows WHERE bucket = ?`,
		bucket,
	).Scan(&windowStart, &count)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		windowStart = toMillis(now)
		count = 0
	case err != nil:
		return ratelimit.Decision{}, fmt.Errorf("read rate window: %w", err)
	default:
		if now.Sub(fromMillis(windowStart)) >= window {
			windowStart = toMillis(now)
			count = 0
		}
	}

	resetAt := fromMillis(windowStart).Add(window)
	if count >= limit {
		if err := tx.Commit(); err != nil {
			return ratelimit.Decision{}, fmt.Errorf("commit rate window: %w", err)
		}
		return ratelimit.Decision{
			Limit:      limit,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}

	count++
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO rate_windows (bucket, window_start, count) VALUES (?, ?, ?)
		 ON CONFLICT(bucket) DO UPDATE SET
		   window_start = excluded.window_start,
		   count = excluded.count`,
		bucket,
		windowStart,
		count,
	); err != nil {
		return ratelimit.Decision{}, fmt.Errorf("write rate window: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ratelimit.Decision{}, fmt.Errorf("commit rate window: %w", err)
	}
	return ratelimit.Decision{
		OK:        true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

// SaveTelemetry persists one curation telemetry record.
func (s *Store) SaveTelemetry(ctx context.Context, record storage.TelemetryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	matchedTerms, err := json.Marshal(record.MatchedTerms)
	if err != nil {
		return fmt.Errorf("encode matched terms: %w", err)
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO audit_telemetry (
		   id, audit_run_id, session_token, strategy, split_valid,
		   ai_primary_count, curated_prefab_count, avg_confidence,
		   response_excerpt, matched_terms, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.AuditRunID,
		record.SessionToken,
		record.Strategy,
		boolToInt(record.SplitValid),
		record.AIPrimaryCount,
		record.CuratedPrefabCount,
		record.AvgConfidence,
		record.ResponseExcerpt,
		string(matchedTerms),
		toMillis(createdAt),
	); err != nil {
		return fmt.Errorf("save telemetry: %w", err)
	}
	return nil
}

// ClearSessionAuditState resets the session's cycle counter and removes its
// runs, options, consents, selections, plans, and telemetry.
func (s *Store) ClearSessionAuditState(ctx context.Context, sessionToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`DELETE FROM audit_options WHERE run_id IN
		   (SELECT id FROM audit_runs WHERE session_token = ?)`,
		`DELETE FROM consent_records WHERE audit_run_id IN
		   (SELECT id FROM audit_runs WHERE session_token = ?)`,
		`DELETE FROM audit_selections WHERE audit_run_id IN
		   (SELECT id FROM audit_runs WHERE session_token = ?)`,
		`DELETE FROM plan_days WHERE plan_token IN
		   (SELECT plan_token FROM plan_instances WHERE session_token = ?)`,
		`DELETE FROM plan_instances WHERE session_token = ?`,
		`DELETE FROM audit_telemetry WHERE session_token = ?`,
		`DELETE FROM audit_runs WHERE session_token = ?`,
		`DELETE FROM session_counters WHERE session_token = ?`,
	}
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement, sessionToken); err != nil {
			return fmt.Errorf("clear session state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear session: %w", err)
	}
	return nil
}
