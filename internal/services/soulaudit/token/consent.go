package token

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
)

// consentTokenMaxAge keeps consent tokens short-lived; the persisted consent
// record takes over once the selection lands.
const consentTokenMaxAge = 30 * time.Minute

type consentPayload struct {
	Version            int       `json:"version"`
	AuditRunID         string    `json:"auditRunId"`
	EssentialAccepted  bool      `json:"essentialAccepted"`
	AnalyticsOptIn     bool      `json:"analyticsOptIn"`
	CrisisAcknowledged bool      `json:"crisisAcknowledged"`
	SessionFingerprint string    `json:"sessionFingerprint"`
	IssuedAt           time.Time `json:"issuedAt"`
}

// Consent is a verified consent token payload. SessionBound reports whether
// the token's fingerprint matched the presenting session.
type Consent struct {
	AuditRunID         string
	EssentialAccepted  bool
	AnalyticsOptIn     bool
	CrisisAcknowledged bool
	SessionBound       bool
	IssuedAt           time.Time
}

// ConsentVerifyOpts tunes consent verification. AllowSessionMismatch exists
// only to bridge session-cookie rotation between the consent and select
// steps; the run binding stays strict regardless.
type ConsentVerifyOpts struct {
	AllowSessionMismatch bool
}

// IssueConsent mints a consent token bound to the caller's session.
func (c *Codec) IssueConsent(sessionToken, auditRunID string, essentialAccepted, analyticsOptIn, crisisAcknowledged bool) (string, error) {
	return c.sign(NamespaceConsent, consentPayload{
		Version:            payloadVersion,
		AuditRunID:         auditRunID,
		EssentialAccepted:  essentialAccepted,
		AnalyticsOptIn:     analyticsOptIn,
		CrisisAcknowledged: crisisAcknowledged,
		SessionFingerprint: c.SessionFingerprint(sessionToken),
		IssuedAt:           c.clock().UTC(),
	})
}

// VerifyConsent checks signature, version, run binding, session binding, and
// age.
func (c *Codec) VerifyConsent(tok, expectedRunID, sessionToken string, opts ConsentVerifyOpts) (Consent, error) {
	var payload consentPayload
	if err := c.open(NamespaceConsent, strings.TrimSpace(tok), &payload); err != nil {
		return Consent{}, err
	}
	if payload.Version != payloadVersion {
		return Consent{}, apperrors.New(apperrors.CodeTokenInvalid, "unsupported token version")
	}
	if payload.AuditRunID != expectedRunID {
		return Consent{}, apperrors.New(apperrors.CodeTokenInvalid, "token bound to another run")
	}
	sessionBound := fingerprintEqual(payload.SessionFingerprint, c.SessionFingerprint(sessionToken))
	if !sessionBound && !opts.AllowSessionMismatch {
		return Consent{}, apperrors.New(apperrors.CodeTokenInvalid, "token bound to another session")
	}
	if c.clock().Sub(payload.IssuedAt) > consentTokenMaxAge {
		return Consent{}, apperrors.New(apperrors.CodeTokenInvalid, "token expired")
	}
	return Consent{
		AuditRunID:         payload.AuditRunID,
		EssentialAccepted:  payload.EssentialAccepted,
		AnalyticsOptIn:     payload.AnalyticsOptIn,
		CrisisAcknowledged: payload.CrisisAcknowledged,
		SessionBound:       sessionBound,
		IssuedAt:           payload.IssuedAt,
	}, nil
}
