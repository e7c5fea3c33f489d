// Package intake validates and interprets free-text audit submissions.
package intake

import (
	"regexp"
	"strings"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
)

// MaxResponseLength is the ceiling on sanitized submission text.
const MaxResponseLength = 2000

// sanitizeCap bounds raw input before markup stripping so hostile payloads
// cannot force unbounded regexp work.
const sanitizeCap = 2500

var (
	markupPattern      = regexp.MustCompile(`<[^>]*>`)
	unsafeRunesPattern = regexp.MustCompile(`[<>"']`)
	controlPattern     = regexp.MustCompile("[\x00-\x1f\x7f]")
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// Sanitize trims, caps, and strips markup from a raw submission. The result
// may be empty; Validate decides whether that is an error.
func Sanitize(raw string) string {
	value := strings.TrimSpace(raw)
	if len(value) > sanitizeCap {
		value = value[:sanitizeCap]
	}
	value = markupPattern.ReplaceAllString(value, "")
	value = unsafeRunesPattern.ReplaceAllString(value, "")
	value = controlPattern.ReplaceAllString(value, "")
	return strings.TrimSpace(value)
}

// Validate checks a sanitized submission against the intake contract.
func Validate(text string) error {
	if text == "" {
		return apperrors.New(apperrors.CodeAuditInputEmpty, "write what is real for you right now and try again")
	}
	if len([]rune(text)) > MaxResponseLength {
		return apperrors.New(apperrors.CodeAuditInputTooLong, "please keep your response under 2000 characters")
	}
	return nil
}

// LowContextGuidance returns a nudge when the submission is too short to
// match well. It never blocks the flow.
func LowContextGuidance(text string) string {
	words := strings.Fields(text)
	if len(words) > 3 {
		return ""
	}
	return "Write what is real for you right now. Even a sentence helps us find the right path."
}

// CollapseWhitespace normalizes runs of whitespace to single spaces.
func CollapseWhitespace(value string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(value, " "))
}
