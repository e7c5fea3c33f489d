package app

import (
	"context"
	"errors"
	"log"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/token"
)

// ConsentInput records the caller's consent decisions for one run.
type ConsentInput struct {
	SessionToken       string
	AuditRunID         string
	RunToken           string
	EssentialAccepted  bool
	AnalyticsOptIn     bool
	CrisisAcknowledged bool
}

// ConsentOutput carries the minted consent token.
type ConsentOutput struct {
	ConsentToken string
}

// Consent requires essential consent, requires crisis acknowledgment when
// the run is flagged, persists the authoritative record, and mints a
// consent token for the selection step.
func (a *App) Consent(ctx context.Context, input ConsentInput) (ConsentOutput, error) {
	if !input.EssentialAccepted {
		return ConsentOutput{}, apperrors.New(apperrors.CodeEssentialConsentRequired, "essential consent is required to continue")
	}

	view, err := a.resolveRun(ctx, input.SessionToken, input.AuditRunID, input.RunToken)
	if err != nil {
		return ConsentOutput{}, err
	}
	if view.crisisDetected && !input.CrisisAcknowledged {
		return ConsentOutput{}, apperrors.New(apperrors.CodeCrisisAckRequired, "please acknowledge the crisis resources before continuing")
	}

	record := storage.ConsentRecord{
		AuditRunID:         view.runID,
		SessionToken:       input.SessionToken,
		EssentialAccepted:  input.EssentialAccepted,
		AnalyticsOptIn:     input.AnalyticsOptIn,
		CrisisAcknowledged: input.CrisisAcknowledged,
		CreatedAt:          a.clock().UTC(),
	}
	if err := a.store.PutConsent(ctx, record); err != nil {
		// The token below still carries the decision; a failed write only
		// loses the repository fast path.
		log.Printf("persist consent %s: %v", view.runID, err)
	}

	consentToken, err := a.codec.IssueConsent(
		input.SessionToken,
		view.runID,
		input.EssentialAccepted,
		input.AnalyticsOptIn,
		input.CrisisAcknowledged,
	)
	if err != nil {
		return ConsentOutput{}, apperrors.Wrap(apperrors.CodeUnknown, "issue consent token", err)
	}
	return ConsentOutput{ConsentToken: consentToken}, nil
}

// consentState is the resolved consent precondition for selection.
type consentState struct {
	essentialAccepted  bool
	crisisAcknowledged bool
}

// resolveConsent loads the run's consent. The repository record is
// authoritative when it matches the caller's session; otherwise a verified
// consent token substitutes, tolerating session rotation but never a
// different run id.
func (a *App) resolveConsent(ctx context.Context, sessionToken, runID, consentToken string) (consentState, error) {
	record, err := a.store.GetConsent(ctx, runID)
	if err == nil && record.SessionToken == sessionToken {
		return consentState{
			essentialAccepted:  record.EssentialAccepted,
			crisisAcknowledged: record.CrisisAcknowledged,
		}, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return consentState{}, apperrors.Wrap(apperrors.CodeUnknown, "load consent record", err)
	}

	verified, terr := a.codec.VerifyConsent(consentToken, runID, sessionToken, token.ConsentVerifyOpts{AllowSessionMismatch: true})
	if terr != nil {
		return consentState{}, apperrors.New(apperrors.CodeConsentRequired, "consent is required before selecting a path")
	}
	return consentState{
		essentialAccepted:  verified.EssentialAccepted,
		crisisAcknowledged: verified.CrisisAcknowledged,
	}, nil
}
