package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/platform/id"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/plan"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/schedule"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
)

// SelectInput picks one of the run's 5 options.
type SelectInput struct {
	SessionToken          string
	AuditRunID            string
	OptionID              string
	RunToken              string
	ConsentToken          string
	Timezone              string
	TimezoneOffsetMinutes int
}

// SelectOutput routes the caller into their chosen path.
type SelectOutput struct {
	SelectionType curation.Kind
	PlanToken     string
	Route         string
}

// Select validates the consent precondition, matches the option id against
// the run's option array, and branches on kind: generated kinds establish a
// plan instance with rendered days, the prefab kind routes to the static
// series. Re-selecting an already-selected run returns the original route.
func (a *App) Select(ctx context.Context, input SelectInput) (SelectOutput, error) {
	view, err := a.resolveRun(ctx, input.SessionToken, input.AuditRunID, input.RunToken)
	if err != nil {
		return SelectOutput{}, err
	}

	// Idempotency: one selection per run, the first one wins.
	if existing, err := a.store.GetSelection(ctx, view.runID); err == nil {
		return SelectOutput{
			SelectionType: existing.OptionKind,
			PlanToken:     existing.PlanToken,
			Route:         existing.Route,
		}, nil
	}

	consent, err := a.resolveConsent(ctx, input.SessionToken, view.runID, input.ConsentToken)
	if err != nil {
		return SelectOutput{}, err
	}
	if !consent.essentialAccepted {
		return SelectOutput{}, apperrors.New(apperrors.CodeConsentRequired, "consent is required before selecting a path")
	}
	if view.crisisDetected && !consent.crisisAcknowledged {
		return SelectOutput{}, apperrors.New(apperrors.CodeCrisisAckRequired, "please acknowledge the crisis resources before continuing")
	}

	var selected *curation.Option
	for i := range view.options {
		if view.options[i].ID == input.OptionID {
			selected = &view.options[i]
			break
		}
	}
	if selected == nil {
		return SelectOutput{}, apperrors.New(apperrors.CodeOptionNotFound, "that option does not belong to this audit")
	}

	timezone, offsetMinutes, err := resolveTimezone(input.Timezone, input.TimezoneOffsetMinutes)
	if err != nil {
		return SelectOutput{}, err
	}

	output := SelectOutput{SelectionType: selected.Kind}
	switch selected.Kind {
	case curation.KindAIPrimary, curation.KindAIGenerative:
		planToken := uuid.NewString()
		firstDay, err := a.createPlan(ctx, input.SessionToken, view, *selected, planToken, timezone, offsetMinutes)
		if err != nil {
			return SelectOutput{}, err
		}
		output.PlanToken = planToken
		output.Route = fmt.Sprintf("/plans/%s/days/%d", planToken, firstDay)
	case curation.KindCuratedPrefab:
		output.Route = "/series/" + selected.Slug
	default:
		return SelectOutput{}, apperrors.New(apperrors.CodeSelectionKindUnsupported, "unsupported option kind")
	}

	selection := storage.Selection{
		AuditRunID: view.runID,
		OptionID:   selected.ID,
		OptionKind: selected.Kind,
		SeriesSlug: selected.Slug,
		PlanToken:  output.PlanToken,
		Route:      output.Route,
		CreatedAt:  a.clock().UTC(),
	}
	if err := a.store.PutSelection(ctx, selection); err != nil {
		return SelectOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "persist selection", err)
	}
	return output, nil
}

// createPlan builds and persists the plan instance with its rendered days,
// returning the day number the caller should be routed into.
func (a *App) createPlan(ctx context.Context, sessionToken string, view runView, selected curation.Option, planToken, timezone string, offsetMinutes int) (int, error) {
	now := a.clock().UTC()
	start := schedule.ResolveStart(now, offsetMinutes)

	days, err := plan.BuildCuratedFirst(a.catalog, selected.Slug, view.responseText, selected.Seed)
	if err != nil {
		return 0, err
	}

	firstDay := 1
	records := make([]storage.PlanDay, 0, len(days)+1)
	if start.OnboardingDays > 0 {
		primer := plan.BuildOnboardingDay(view.responseText, days[0], start.OnboardingVariant)
		records = append(records, storage.PlanDay{DayNumber: 0, Content: primer})
		firstDay = 0
	}
	for _, day := range days {
		records = append(records, storage.PlanDay{DayNumber: day.Number, Content: day})
	}
	for i := range records {
		dayID, err := id.NewID()
		if err != nil {
			return 0, apperrors.Wrap(apperrors.CodeUnknown, "generate plan day id", err)
		}
		records[i].ID = dayID
		records[i].PlanToken = planToken
		records[i].CreatedAt = now
	}

	instance := storage.PlanInstance{
		PlanToken:             planToken,
		AuditRunID:            view.runID,
		SessionToken:          sessionToken,
		SeriesSlug:            selected.Slug,
		Timezone:              timezone,
		TimezoneOffsetMinutes: offsetMinutes,
		StartPolicy:           start.Policy,
		OnboardingVariant:     start.OnboardingVariant,
		OnboardingDays:        start.OnboardingDays,
		RestDay:               schedule.RestSunday,
		StartedAt:             start.StartedAt,
		CycleStartAt:          start.CycleStartAt,
		CreatedAt:             now,
	}
	if err := a.store.CreatePlan(ctx, instance, records); err != nil {
		return 0, apperrors.Wrap(apperrors.CodeUnknown, "persist plan", err)
	}
	return firstDay, nil
}

// resolveTimezone validates the optional IANA name and clamps the offset to
// UTC±14 hours.
func resolveTimezone(name string, offsetMinutes int) (string, int, error) {
	if name != "" {
		if _, err := time.LoadLocation(name); err != nil {
			return "", 0, apperrors.New(apperrors.CodeTimezoneInvalid, "unknown timezone")
		}
	}
	return name, clampOffset(offsetMinutes), nil
}
