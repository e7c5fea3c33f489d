package token

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
)

// runTokenMaxAge bounds how long a run token can bridge repository gaps.
const runTokenMaxAge = 6 * time.Hour

// OptionPreview is the portable slice of an assembled option carried inside
// a run token so the selection step can proceed even when the persisted run
// is gone.
type OptionPreview struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	SeriesSlug      string `json:"seriesSlug,omitempty"`
	EstimatedDays   int    `json:"estimatedDays"`
	ScriptureAnchor string `json:"scriptureAnchor,omitempty"`
}

type runPayload struct {
	Version            int             `json:"version"`
	AuditRunID         string          `json:"auditRunId"`
	ResponseText       string          `json:"responseText"`
	CrisisDetected     bool            `json:"crisisDetected"`
	Options            []OptionPreview `json:"options"`
	SessionFingerprint string          `json:"sessionFingerprint"`
	IssuedAt           time.Time       `json:"issuedAt"`
}

// Run is a verified run token payload.
type Run struct {
	AuditRunID     string
	ResponseText   string
	CrisisDetected bool
	Options        []OptionPreview
	IssuedAt       time.Time
}

// IssueRun mints a run token bound to the caller's session.
func (c *Codec) IssueRun(sessionToken, auditRunID, responseText string, crisisDetected bool, options []OptionPreview) (string, error) {
	return c.sign(NamespaceRun, runPayload{
		Version:            payloadVersion,
		AuditRunID:         auditRunID,
		ResponseText:       responseText,
		CrisisDetected:     crisisDetected,
		Options:            options,
		SessionFingerprint: c.SessionFingerprint(sessionToken),
		IssuedAt:           c.clock().UTC(),
	})
}

// VerifyRun checks signature, version, run binding, session binding, and
// age. Run tokens are always session-strict.
func (c *Codec) VerifyRun(tok, expectedRunID, sessionToken string) (Run, error) {
	var payload runPayload
	if err := c.open(NamespaceRun, strings.TrimSpace(tok), &payload); err != nil {
		return Run{}, err
	}
	if payload.Version != payloadVersion {
		return Run{}, apperrors.New(apperrors.CodeTokenInvalid, "unsupported token version")
	}
	if payload.AuditRunID != expectedRunID {
		return Run{}, apperrors.New(apperrors.CodeTokenInvalid, "token bound to another run")
	}
	if !fingerprintEqual(payload.SessionFingerprint, c.SessionFingerprint(sessionToken)) {
		return Run{}, apperrors.New(apperrors.CodeTokenInvalid, "token bound to another session")
	}
	if c.clock().Sub(payload.IssuedAt) > runTokenMaxAge {
		return Run{}, apperrors.New(apperrors.CodeTokenInvalid, "token expired")
	}
	return Run{
		AuditRunID:     payload.AuditRunID,
		ResponseText:   payload.ResponseText,
		CrisisDetected: payload.CrisisDetected,
		Options:        payload.Options,
		IssuedAt:       payload.IssuedAt,
	}, nil
}
