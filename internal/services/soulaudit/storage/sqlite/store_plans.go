package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/plan"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/schedule"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// CreatePlan inserts one plan instance together with its rendered days.
func (s *Store) CreatePlan(ctx context.Context, instance storage.PlanInstance, days []storage.PlanDay) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	planToken := strings.TrimSpace(instance.PlanToken)
	if planToken == "" {
		return fmt.Errorf("plan token is required")
	}
	createdAt := instance.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create plan: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO plan_instances (
		   plan_token, audit_run_id, session_token, series_slug, timezone,
		   timezone_offset_minutes, start_policy, onboarding_variant,
		   onboarding_days, rest_day, started_at, cycle_start_at, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		planToken,
		instance.AuditRunID,
		instance.SessionToken,
		instance.SeriesSlug,
		instance.Timezone,
		instance.TimezoneOffsetMinutes,
		string(instance.StartPolicy),
		string(instance.OnboardingVariant),
		instance.OnboardingDays,
		string(instance.RestDay),
		toMillis(instance.StartedAt),
		toMillis(instance.CycleStartAt),
		toMillis(createdAt),
	); err != nil {
		return fmt.Errorf("insert plan instance: %w", err)
	}

	for _, day := range days {
		content, err := json.Marshal(day.Content)
		if err != nil {
			return fmt.Errorf("encode plan day: %w", err)
		}
		dayCreatedAt := day.CreatedAt.UTC()
		if dayCreatedAt.IsZero() {
			dayCreatedAt = createdAt
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO plan_days (id, plan_token, day_number, content, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			day.ID,
			planToken,
			day.DayNumber,
			string(content),
			toMillis(dayCreatedAt),
		); err != nil {
			return fmt.Errorf("insert plan day: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create plan: %w", err)
	}
	return nil
}

// GetPlan loads one plan instance by token.
func (s *Store) GetPlan(ctx context.Context, planToken string) (storage.PlanInstance, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlanInstance{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PlanInstance{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT plan_token, audit_run_id, session_token, series_slug, timezone,
		        timezone_offset_minutes, start_policy, onboarding_variant,
		        onboarding_days, rest_day, started_at, cycle_start_at, created_at
		   FROM plan_instances
		  WHERE plan_token = ?`,
		planToken,
	)

	var instance storage.PlanInstance
	var startPolicy string
	var onboardingVariant string
	var restDay string
	var startedAt int64
	var cycleStartAt int64
	var createdAt int64
	err := row.Scan(
		&instance.PlanToken,
		&instance.AuditRunID,
		&instance.SessionToken,
		&instance.SeriesSlug,
		&instance.Timezone,
		&instance.TimezoneOffsetMinutes,
		&startPolicy,
		&onboardingVariant,
		&instance.OnboardingDays,
		&restDay,
		&startedAt,
		&cycleStartAt,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PlanInstance{}, storage.ErrNotFound
		}
		return storage.PlanInstance{}, fmt.Errorf("get plan instance: %w", err)
	}
	instance.StartPolicy = schedule.Policy(startPolicy)
	instance.OnboardingVariant = schedule.OnboardingVariant(onboardingVariant)
	instance.RestDay = schedule.RestDay(restDay)
	instance.StartedAt = fromMillis(startedAt)
	instance.CycleStartAt = fromMillis(cycleStartAt)
	instance.CreatedAt = fromMillis(createdAt)
	return instance, nil
}

// GetPlanDay loads one rendered day of a plan.
func (s *Store) GetPlanDay(ctx context.Context, planToken string, dayNumber int) (storage.PlanDay, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlanDay{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PlanDay{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, plan_token, day_number, content, created_at
		   FROM plan_days
		  WHERE plan_token = ? AND day_number = ?`,
		planToken,
		dayNumber,
	)
	return scanPlanDay(row.Scan)
}

// ListPlanDays loads every rendered day of a plan in day order.
func (s *Store) ListPlanDays(ctx context.Context, planToken string) ([]storage.PlanDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, plan_token, day_number, content, created_at
		   FROM plan_days
		  WHERE plan_token = ?
		  ORDER BY day_number ASC`,
		planToken,
	)
	if err != nil {
		return nil, fmt.Errorf("list plan days: %w", err)
	}
	defer rows.Close()

	var days []storage.PlanDay
	for rows.Next() {
		day, err := scanPlanDay(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list plan days: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list plan days: %w", err)
	}
	if len(days) == 0 {
		if _, err := s.GetPlan(ctx, planToken); err != nil {
			return nil, err
		}
	}
	return days, nil
}

func scanPlanDay(scan func(dest ...any) error) (storage.PlanDay, error) {
	var day storage.PlanDay
	var content string
	var createdAt int64
	err := scan(
		&day.ID,
		&day.PlanToken,
		&day.DayNumber,
		&content,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PlanDay{}, storage.ErrNotFound
		}
		return storage.PlanDay{}, fmt.Errorf("get plan day: %w", err)
	}
	var rendered plan.Day
	if err := json.Unmarshal([]byte(content), &rendered); err != nil {
		return storage.PlanDay{}, fmt.Errorf("decode plan day: %w", err)
	}
	day.Content = rendered
	day.CreatedAt = fromMillis(createdAt)
	return day, nil
}
