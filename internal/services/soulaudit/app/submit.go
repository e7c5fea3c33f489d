package app

import (
	"context"
	"log"
	"strconv"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/platform/id"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/intake"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/telemetry"
)

// SubmitInput carries one free-text disclosure.
type SubmitInput struct {
	SessionToken string
	ResponseText string
}

// OptionSplit reports the fixed option composition policy.
type OptionSplit struct {
	AIPrimary     int `json:"aiPrimary"`
	CuratedPrefab int `json:"curatedPrefab"`
	Total         int `json:"total"`
}

// SubmitPolicy reports the quotas and split the client should surface.
type SubmitPolicy struct {
	MaxAuditsPerCycle int         `json:"maxAuditsPerCycle"`
	OptionSplit       OptionSplit `json:"optionSplit"`
}

// SubmitOutput is the assembled run handed back to the caller.
type SubmitOutput struct {
	AuditRunID      string
	RunToken        string
	RemainingAudits int
	Crisis          intake.CrisisRequirement
	Options         []curation.Option
	Guidance        string
	Policy          SubmitPolicy
}

func submitPolicy() SubmitPolicy {
	return SubmitPolicy{
		MaxAuditsPerCycle: MaxAuditsPerCycle,
		OptionSplit: OptionSplit{
			AIPrimary:     curation.AIPrimaryCount,
			CuratedPrefab: curation.CuratedPrefabCount,
			Total:         curation.TotalOptions,
		},
	}
}

// Submit sanitizes and validates the disclosure, consumes one unit of the
// cycle quota, assembles the 5-option split, persists the run, and issues a
// run token. The quota unit is spent even when curation later fails;
// resubmission is safe with respect to correctness.
func (a *App) Submit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	text := intake.Sanitize(input.ResponseText)
	if err := intake.Validate(text); err != nil {
		return SubmitOutput{}, err
	}

	count, ok, err := a.store.IncrementAuditCount(ctx, input.SessionToken, MaxAuditsPerCycle)
	if err != nil {
		return SubmitOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "increment audit counter", err)
	}
	if !ok {
		return SubmitOutput{}, apperrors.WithMetadata(
			apperrors.CodeAuditLimitReached,
			"you have reached the audit limit for this cycle",
			map[string]string{
				"auditCount": strconv.Itoa(count),
				"maxAudits":  strconv.Itoa(MaxAuditsPerCycle),
			},
		)
	}

	crisisDetected := intake.DetectCrisis(text)

	result, err := curation.Assemble(a.catalog, text, nil)
	if err != nil {
		return SubmitOutput{}, err
	}

	runID, err := id.NewID()
	if err != nil {
		return SubmitOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "generate run id", err)
	}
	run := storage.AuditRun{
		ID:             runID,
		SessionToken:   input.SessionToken,
		ResponseText:   text,
		CrisisDetected: crisisDetected,
		CreatedAt:      a.clock().UTC(),
	}
	if err := a.store.CreateRun(ctx, run, result.Options); err != nil {
		return SubmitOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "persist audit run", err)
	}

	// Re-read what was persisted. A split that degraded across the write is
	// a hard failure, never silently recomputed.
	persisted, err := a.store.GetOptions(ctx, runID)
	if err != nil {
		return SubmitOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "reload audit options", err)
	}
	aiPrimary, curatedPrefab, valid := splitValid(persisted)
	a.emitCuration(ctx, runID, input.SessionToken, result, aiPrimary, curatedPrefab, valid, text)
	if !valid {
		return SubmitOutput{}, apperrors.WithMetadata(
			apperrors.CodePersistedSplitMismatch,
			"the stored option split is inconsistent; please submit again",
			map[string]string{
				"aiPrimary":     strconv.Itoa(aiPrimary),
				"curatedPrefab": strconv.Itoa(curatedPrefab),
			},
		)
	}

	runToken, err := a.codec.IssueRun(input.SessionToken, runID, text, crisisDetected, optionPreviews(persisted))
	if err != nil {
		return SubmitOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "issue run token", err)
	}

	return SubmitOutput{
		AuditRunID:      runID,
		RunToken:        runToken,
		RemainingAudits: MaxAuditsPerCycle - count,
		Crisis:          intake.NewCrisisRequirement(crisisDetected),
		Options:         persisted,
		Guidance:        intake.LowContextGuidance(text),
		Policy:          submitPolicy(),
	}, nil
}

// RerollInput asks for a fresh option set on an existing run.
type RerollInput struct {
	SessionToken string
	AuditRunID   string
	RunToken     string
}

// RerollOutput carries the replacement options and a re-issued run token.
type RerollOutput struct {
	AuditRunID string
	RunToken   string
	Options    []curation.Option
}

// Reroll replaces the run's entire option array once, excluding every
// previously shown series. Rerolls never consume the cycle quota.
func (a *App) Reroll(ctx context.Context, input RerollInput) (RerollOutput, error) {
	view, err := a.resolveRun(ctx, input.SessionToken, input.AuditRunID, input.RunToken)
	if err != nil {
		return RerollOutput{}, err
	}
	if !view.stored {
		// Replacements must land on a live record.
		return RerollOutput{}, apperrors.New(apperrors.CodeRunNotFound, "audit run not found")
	}
	if view.rerollUsed {
		return RerollOutput{}, apperrors.New(apperrors.CodeRerollAlreadyUsed, "this audit already used its reroll")
	}

	exclude := make(map[string]bool, len(view.options))
	for _, option := range view.options {
		exclude[option.Slug] = true
	}
	result, err := curation.Assemble(a.catalog, view.responseText, exclude)
	if err != nil {
		return RerollOutput{}, err
	}
	if err := a.store.ReplaceOptions(ctx, view.runID, result.Options); err != nil {
		return RerollOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "replace audit options", err)
	}

	aiPrimary, curatedPrefab, valid := splitValid(result.Options)
	a.emitCuration(ctx, view.runID, input.SessionToken, result, aiPrimary, curatedPrefab, valid, view.responseText)

	runToken, err := a.codec.IssueRun(input.SessionToken, view.runID, view.responseText, view.crisisDetected, optionPreviews(result.Options))
	if err != nil {
		return RerollOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "issue run token", err)
	}
	return RerollOutput{
		AuditRunID: view.runID,
		RunToken:   runToken,
		Options:    result.Options,
	}, nil
}

func (a *App) emitCuration(ctx context.Context, runID, sessionToken string, result curation.Result, aiPrimary, curatedPrefab int, valid bool, text string) {
	err := a.emitter.EmitCuration(ctx, telemetry.CurationEvent{
		AuditRunID:         runID,
		SessionToken:       sessionToken,
		SplitValid:         valid,
		AIPrimaryCount:     aiPrimary,
		CuratedPrefabCount: curatedPrefab,
		AvgConfidence:      result.AverageConfidence,
		ResponseText:       text,
		MatchedTerms:       result.MatchedTerms,
	})
	if err != nil {
		log.Printf("curation telemetry %s: %v", runID, err)
	}
}
