// Package storage defines persistence contracts for soul audit state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/plan"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/schedule"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// AuditRun stores one submission cycle. Immutable after creation except for
// the reroll flag and wholesale option replacement.
type AuditRun struct {
	ID             string
	SessionToken   string
	ResponseText   string
	CrisisDetected bool
	RerollUsed     bool
	CreatedAt      time.Time
}

// ConsentRecord stores the authoritative consent state for a run.
type ConsentRecord struct {
	AuditRunID         string
	SessionToken       string
	EssentialAccepted  bool
	AnalyticsOptIn     bool
	CrisisAcknowledged bool
	CreatedAt          time.Time
}

// Selection stores the at-most-one selection for a run.
type Selection struct {
	AuditRunID string
	OptionID   string
	OptionKind curation.Kind
	SeriesSlug string
	PlanToken  string
	Route      string
	CreatedAt  time.Time
}

// PlanInstance stores the calendar for a generated selection.
type PlanInstance struct {
	PlanToken             string
	AuditRunID            string
	SessionToken          string
	SeriesSlug            string
	Timezone              string
	TimezoneOffsetMinutes int
	StartPolicy           schedule.Policy
	OnboardingVariant     schedule.OnboardingVariant
	OnboardingDays        int
	RestDay               schedule.RestDay
	StartedAt             time.Time
	CycleStartAt          time.Time
	CreatedAt             time.Time
}

// PlanDay stores one rendered day of a plan.
type PlanDay struct {
	ID        string
	PlanToken string
	DayNumber int
	Content   plan.Day
	CreatedAt time.Time
}

// TelemetryRecord stores per-run curation facts for operational review.
type TelemetryRecord struct {
	ID                 string
	AuditRunID         string
	SessionToken       string
	Strategy           string
	SplitValid         bool
	AIPrimaryCount     int
	CuratedPrefabCount int
	AvgConfidence      float64
	ResponseExcerpt    string
	MatchedTerms       []string
	CreatedAt          time.Time
}

// AuditStore persists runs and their option arrays.
type AuditStore interface {
	CreateRun(ctx context.Context, run AuditRun, options []curation.Option) error
	GetRun(ctx context.Context, runID string) (AuditRun, error)
	GetOptions(ctx context.Context, runID string) ([]curation.Option, error)
	// ReplaceOptions swaps the entire option array and marks the run's one
	// reroll as used.
	ReplaceOptions(ctx context.Context, runID string, options []curation.Option) error
}

// ConsentStore persists the authoritative consent record per run.
type ConsentStore interface {
	PutConsent(ctx context.Context, record ConsentRecord) error
	GetConsent(ctx context.Context, runID string) (ConsentRecord, error)
}

// SelectionStore persists the at-most-one selection per run.
type SelectionStore interface {
	PutSelection(ctx context.Context, selection Selection) error
	GetSelection(ctx context.Context, runID string) (Selection, error)
}

// PlanStore persists plan instances and their rendered days.
type PlanStore interface {
	CreatePlan(ctx context.Context, instance PlanInstance, days []PlanDay) error
	GetPlan(ctx context.Context, planToken string) (PlanInstance, error)
	GetPlanDay(ctx context.Context, planToken string, dayNumber int) (PlanDay, error)
	ListPlanDays(ctx context.Context, planToken string) ([]PlanDay, error)
}

// CounterStore persists the per-session audit cycle counter. This is a
// product quota, independent of the rate limiter.
type CounterStore interface {
	// IncrementAuditCount atomically bumps the session's counter unless it
	// has reached ceiling. Returns the resulting count and whether the
	// increment was applied. Two concurrent calls at the ceiling must not
	// both report ok.
	IncrementAuditCount(ctx context.Context, sessionToken string, ceiling int) (count int, ok bool, err error)
	GetAuditCount(ctx context.Context, sessionToken string) (int, error)
}

// TelemetryStore persists curation telemetry.
type TelemetryStore interface {
	SaveTelemetry(ctx context.Context, record TelemetryRecord) error
}

// Store is the full repository surface the orchestrator depends on.
type Store interface {
	AuditStore
	ConsentStore
	SelectionStore
	PlanStore
	CounterStore
	TelemetryStore

	// ClearSessionAuditState resets the session's cycle counter and removes
	// its runs, consents, selections, and plans.
	ClearSessionAuditState(ctx context.Context, sessionToken string) error
}
