package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// CreateRun inserts one audit run together with its option array.
func (s *Store) CreateRun(ctx context.Context, run storage.AuditRun, options []curation.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	runID := strings.TrimSpace(run.ID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(run.SessionToken) == "" {
		return fmt.Errorf("session token is required")
	}
	createdAt := run.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO audit_runs (
		   id, session_token, response_text, crisis_detected, reroll_used, created_at
		 ) VALUES (?, ?, ?, ?, 0, ?)`,
		runID,
		run.SessionToken,
		run.ResponseText,
		boolToInt(run.CrisisDetected),
		toMillis(createdAt),
	); err != nil {
		return fmt.Errorf("insert audit run: %w", err)
	}

	if err := insertOptions(ctx, tx, runID, options); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

// GetRun loads one audit run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (storage.AuditRun, error) {
	if err := ctx.Err(); err != nil {
		return storage.AuditRun{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.AuditRun{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, session_token, response_text, crisis_detected, reroll_used, created_at
		   FROM audit_runs
		  WHERE id = ?`,
		runID,
	)

	var run storage.AuditRun
	var crisisDetected int
	var rerollUsed int
	var createdAt int64
	err := row.Scan(
		&run.ID,
		&run.SessionToken,
		&run.ResponseText,
		&crisisDetected,
		&rerollUsed,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AuditRun{}, storage.ErrNotFound
		}
		return storage.AuditRun{}, fmt.Errorf("get audit run: %w", err)
	}
	run.CrisisDetected = crisisDetected != 0
	run.RerollUsed = rerollUsed != 0
	run.CreatedAt = fromMillis(createdAt)
	return run, nil
}

// GetOptions loads the option array for a run in rank order.
func (s *Store) GetOptions(ctx context.Context, runID string) ([]curation.Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT payload FROM audit_options WHERE run_id = ? ORDER BY ordinal ASC`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit options: %w", err)
	}
	defer rows.Close()

	var options []curation.Option
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("list audit options: %w", err)
		}
		var option curation.Option
		if err := json.Unmarshal([]byte(payload), &option); err != nil {
			return nil, fmt.Errorf("decode audit option: %w", err)
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit options: %w", err)
	}
	if len(options) == 0 {
		if _, err := s.GetRun(ctx, runID); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// ReplaceOptions swaps the entire option array and marks the run's one
// reroll as used.
func (s *Store) ReplaceOptions(ctx context.Context, runID string, options []curation.Option) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace options: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`UPDATE audit_runs SET reroll_used = 1 WHERE id = ?`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("mark reroll used: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark reroll used: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM audit_options WHERE run_id = ?`,
		runID,
	); err != nil {
		return fmt.Errorf("clear audit options: %w", err)
	}
	if err := insertOptions(ctx, tx, runID, options); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace options: %w", err)
	}
	return nil
}

func insertOptions(ctx context.Context, tx *sql.Tx, runID string, options []curation.Option) error {
	for ordinal, option := range options {
		payload, err := json.Marshal(option)
		if err != nil {
			return fmt.Errorf("encode audit option: %w", err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO audit_options (run_id, ordinal, payload) VALUES (?, ?, ?)`,
			runID,
			ordinal,
			string(payload),
		); err != nil {
			return fmt.Errorf("insert audit option: %w", err)
		}
	}
	return nil
}
