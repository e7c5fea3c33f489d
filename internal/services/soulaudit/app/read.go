package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/plan"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/schedule"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// DayPreview is the reduced content served for a locked day when the caller
// asks for a preview instead of a 423.
type DayPreview struct {
	Number             int    `json:"number"`
	Title              string `json:"title"`
	ScriptureReference string `json:"scriptureReference"`
}

// ScheduleInfo reports the calendar facts behind a day's state.
type ScheduleInfo struct {
	Policy            schedule.Policy            `json:"policy"`
	OnboardingVariant schedule.OnboardingVariant `json:"onboardingVariant,omitempty"`
	CycleStartAt      string                     `json:"cycleStartAt"`
	RestDay           schedule.RestDay           `json:"restDay"`
}

// DayReadOutput is one plan day with its lock state.
type DayReadOutput struct {
	Locked     bool
	Archived   bool
	Onboarding bool
	Message    string
	Day        *plan.Day
	Preview    *DayPreview
	Schedule   ScheduleInfo
}

// DayRead serves one plan day. Locked days fail with a locked error unless
// the caller asks for a preview, which reduces the content to its title and
// scripture reference.
func (a *App) DayRead(ctx context.Context, planToken string, dayNumber int, preview bool) (DayReadOutput, error) {
	instance, err := a.getPlan(ctx, planToken)
	if err != nil {
		return DayReadOutput{}, err
	}

	record, err := a.store.GetPlanDay(ctx, planToken, dayNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DayReadOutput{}, apperrors.New(apperrors.CodePlanDayNotFound, "plan day not found")
		}
		return DayReadOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "load plan day", err)
	}

	state := a.dayState(instance, dayNumber)
	output := DayReadOutput{
		Locked:     !state.Unlocked,
		Archived:   state.Archived,
		Onboarding: state.Onboarding,
		Message:    state.Message,
		Schedule:   scheduleInfo(instance),
	}
	if !state.Unlocked {
		if !preview {
			return DayReadOutput{}, apperrors.WithMetadata(
				apperrors.CodePlanDayLocked,
				state.Message,
				map[string]string{"dayNumber": strconv.Itoa(dayNumber)},
			)
		}
		output.Preview = &DayPreview{
			Number:             record.DayNumber,
			Title:              record.Content.Title,
			ScriptureReference: record.Content.ScriptureReference,
		}
		return output, nil
	}

	day := record.Content
	output.Day = &day
	return output, nil
}

// DayListing pairs one day's position with its state and title.
type DayListing struct {
	DayNumber  int    `json:"dayNumber"`
	Title      string `json:"title"`
	Unlocked   bool   `json:"unlocked"`
	Archived   bool   `json:"archived"`
	Onboarding bool   `json:"onboarding"`
}

// DaysOutput is the aggregate plan view.
type DaysOutput struct {
	Days       []DayListing
	CurrentDay int
	RestDay    bool
	Schedule   ScheduleInfo
}

// Days serves every day's state plus the current reading position. RestDay
// flags whether the caller's local day is the plan's weekly rest day.
func (a *App) Days(ctx context.Context, planToken string) (DaysOutput, error) {
	instance, err := a.getPlan(ctx, planToken)
	if err != nil {
		return DaysOutput{}, err
	}
	records, err := a.store.ListPlanDays(ctx, planToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return DaysOutput{}, apperrors.New(apperrors.CodePlanNotFound, "plan not found")
		}
		return DaysOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "list plan days", err)
	}

	listings := make([]DayListing, 0, len(records))
	overviews := make([]schedule.DayOverview, 0, len(records))
	for _, record := range records {
		state := a.dayState(instance, record.DayNumber)
		listings = append(listings, DayListing{
			DayNumber:  record.DayNumber,
			Title:      record.Content.Title,
			Unlocked:   state.Unlocked,
			Archived:   state.Archived,
			Onboarding: state.Onboarding,
		})
		overviews = append(overviews, schedule.DayOverview{DayNumber: record.DayNumber, State: state})
	}

	return DaysOutput{
		Days:       listings,
		CurrentDay: schedule.CurrentDay(overviews),
		RestDay:    schedule.IsRestDay(a.clock().UTC(), instance.TimezoneOffsetMinutes, instance.RestDay),
		Schedule:   scheduleInfo(instance),
	}, nil
}

// StatusOutput reports which plan days exist for generation polling.
type StatusOutput struct {
	PlanToken    string
	SeriesSlug   string
	ExpectedDays int
	ReadyDays    []int
	Pending      bool
}

// Status reports generation progress: the day numbers present and whether
// the plan still expects more content.
func (a *App) Status(ctx context.Context, planToken string) (StatusOutput, error) {
	instance, err := a.getPlan(ctx, planToken)
	if err != nil {
		return StatusOutput{}, err
	}
	records, err := a.store.ListPlanDays(ctx, planToken)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return StatusOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "list plan days", err)
	}

	expected := plan.PlanLength
	if instance.OnboardingDays > 0 {
		expected++
	}
	ready := make([]int, 0, len(records))
	for _, record := range records {
		ready = append(ready, record.DayNumber)
	}
	return StatusOutput{
		PlanToken:    planToken,
		SeriesSlug:   instance.SeriesSlug,
		ExpectedDays: expected,
		ReadyDays:    ready,
		Pending:      len(ready) < expected,
	}, nil
}

// Reset clears the session's cycle counter, runs, consents, selections, and
// plans.
func (a *App) Reset(ctx context.Context, sessionToken string) error {
	if err := a.store.ClearSessionAuditState(ctx, sessionToken); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknown, "clear session audit state", err)
	}
	return nil
}

func (a *App) getPlan(ctx context.Context, planToken string) (storage.PlanInstance, error) {
	instance, err := a.store.GetPlan(ctx, planToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PlanInstance{}, apperrors.New(apperrors.CodePlanNotFound, "plan not found")
		}
		return storage.PlanInstance{}, apperrors.Wrap(apperrors.CodeUnknown, "load plan", err)
	}
	return instance, nil
}

func (a *App) dayState(instance storage.PlanInstance, dayNumber int) schedule.DayState {
	return schedule.PlanDayState(schedule.DayParams{
		Now:           a.clock().UTC(),
		Policy:        instance.StartPolicy,
		CycleStartAt:  instance.CycleStartAt,
		DayNumber:     dayNumber,
		OffsetMinutes: instance.TimezoneOffsetMinutes,
		RestDay:       instance.RestDay,
	})
}

func scheduleInfo(instance storage.PlanInstance) ScheduleInfo {
	return ScheduleInfo{
		Policy:            instance.StartPolicy,
		OnboardingVariant: instance.OnboardingVariant,
		CycleStartAt:      instance.CycleStartAt.Format(time.RFC3339),
		RestDay:           instance.RestDay,
	}
}
