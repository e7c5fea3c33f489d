package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// PutConsent stores the authoritative consent record for a run. Re-submitting
// consent for the same run overwrites the prior record.
func (s *Store) PutConsent(ctx context.Context, record storage.ConsentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	runID := strings.TrimSpace(record.AuditRunID)
	if runID == "" {
		return fmt.Errorf("audit run id is required")
	}
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO consent_records (
		   audit_run_id, session_token, essential_accepted, analytics_opt_in,
		   crisis_acknowledged, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(audit_run_id) DO UPDATE SET
		   session_token = excluded.session_token,
		   essential_accepted = excluded.essential_accepted,
		   analytics_opt_in = excluded.analytics_opt_in,
		   crisis_acknowledged = excluded.crisis_acknowledged,
		   created_at = excluded.created_at`,
		runID,
		record.SessionToken,
		boolToInt(record.EssentialAccepted),
		boolToInt(record.AnalyticsOptIn),
		boolToInt(record.CrisisAcknowledged),
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("put consent record: %w", err)
	}
	return nil
}

// GetConsent loads the consent record for a run.
func (s *Store) GetConsent(ctx context.Context, runID string) (storage.ConsentRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ConsentRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ConsentRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT audit_run_id, session_token, essential_accepted, analytics_opt_in,
		        crisis_acknowledged, created_at
		   FROM consent_records
		  WHERE audit_run_id = ?`,
		runID,
	)

	var record storage.ConsentRecord
	var essential int
	var analytics int
	var crisisAck int
	var createdAt int64
	err := row.Scan(
		&record.AuditRunID,
		&record.SessionToken,
		&essential,
		&analytics,
		&crisisAck,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConsentRecord{}, storage.ErrNotFound
		}
		return storage.ConsentRecord{}, fmt.Errorf("get consent record: %w", err)
	}
	record.EssentialAccepted = essential != 0
	record.AnalyticsOptIn = analytics != 0
	record.CrisisAcknowledged = crisisAck != 0
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// PutSelection stores the at-most-one selection for a run.
func (s *Store) PutSelection(ctx context.Context, selection storage.Selection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	runID := strings.TrimSpace(selection.AuditRunID)
	if runID == "" {
		return fmt.Errorf("audit run id is required")
	}
	createdAt := selection.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO audit_selections (
		   audit_run_id, option_id, option_kind, series_slug, plan_token, route, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(audit_run_id) DO UPDATE SET
		   option_id = excluded.option_id,
		   option_kind = excluded.option_kind,
		   series_slug = excluded.series_slug,
		   plan_token = excluded.plan_token,
		   route = excluded.route,
		   created_at = excluded.created_at`,
		runID,
		selection.OptionID,
		string(selection.OptionKind),
		selection.SeriesSlug,
		selection.PlanToken,
		selection.Route,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("put selection: %w", err)
	}
	return nil
}

// GetSelection loads the selection for a run.
func (s *Store) GetSelection(ctx context.Context, runID string) (storage.Selection, error) {
	if err := ctx.Err(); err != nil {
		return storage.Selection{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Selection{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT audit_run_id, option_id, option_kind, series_slug, plan_token, route, created_at
		   FROM audit_selections
		  WHERE audit_run_id = ?`,
		runID,
	)

	var selection storage.Selection
	var optionKind string
	var createdAt int64
	err := row.Scan(
		&selection.AuditRunID,
		&selection.OptionID,
		&optionKind,
		&selection.SeriesSlug,
		&selection.PlanToken,
		&selection.Route,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Selection{}, storage.ErrNotFound
		}
		return storage.Selection{}, fmt.Errorf("get selection: %w", err)
	}
	selection.OptionKind = curation.Kind(optionKind)
	selection.CreatedAt = fromMillis(createdAt)
	return selection, nil
}
