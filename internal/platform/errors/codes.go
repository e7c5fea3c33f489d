// Package errors provides structured error handling with stable machine codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Intake errors
	CodeAuditInputEmpty   Code = "AUDIT_INPUT_EMPTY"
	CodeAuditInputTooLong Code = "AUDIT_INPUT_TOO_LONG"
	CodeAuditRunIDInvalid Code = "AUDIT_RUN_ID_INVALID"
	CodeOptionIDInvalid   Code = "OPTION_ID_INVALID"
	CodeTimezoneInvalid   Code = "TIMEZONE_INVALID"

	// Request envelope errors
	CodeBodyInvalid  Code = "BODY_INVALID"
	CodeBodyTooLarge Code = "BODY_TOO_LARGE"

	// Consent errors
	CodeEssentialConsentRequired Code = "ESSENTIAL_CONSENT_REQUIRED"
	CodeCrisisAckRequired        Code = "CRISIS_ACK_REQUIRED"
	CodeConsentRequired          Code = "CONSENT_REQUIRED"

	// Quota errors
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeAuditLimitReached Code = "AUDIT_LIMIT_REACHED"

	// Access errors
	CodeRunAccessDenied    Code = "RUN_ACCESS_DENIED"
	CodeRerollVerifyFailed Code = "REROLL_VERIFY_FAILED"

	// Lookup errors
	CodeNotFound        Code = "NOT_FOUND"
	CodeRunNotFound     Code = "RUN_NOT_FOUND"
	CodeOptionNotFound  Code = "OPTION_NOT_FOUND"
	CodePlanNotFound    Code = "PLAN_NOT_FOUND"
	CodePlanDayNotFound Code = "PLAN_DAY_NOT_FOUND"

	// Curation errors
	CodeOptionAssemblyFailed     Code = "OPTION_ASSEMBLY_FAILED"
	CodeRerollAlreadyUsed        Code = "REROLL_ALREADY_USED"
	CodeRerollResponseMismatch   Code = "REROLL_RESPONSE_MISMATCH"
	CodePersistedSplitMismatch   Code = "PERSISTED_SPLIT_MISMATCH"
	CodeSeriesIncomplete         Code = "SERIES_INCOMPLETE"
	CodeSelectionKindUnsupported Code = "SELECTION_KIND_UNSUPPORTED"

	// Schedule errors
	CodePlanDayLocked Code = "PLAN_DAY_LOCKED"

	// Token errors. Token failures are soft: callers fall back to the
	// repository before surfacing this code.
	CodeTokenInvalid Code = "TOKEN_INVALID"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, missing preconditions the client controls
	case CodeAuditInputEmpty,
		CodeAuditInputTooLong,
		CodeAuditRunIDInvalid,
		CodeOptionIDInvalid,
		CodeTimezoneInvalid,
		CodeBodyInvalid,
		CodeEssentialConsentRequired,
		CodeCrisisAckRequired,
		CodeConsentRequired,
		CodeTokenInvalid:
		return http.StatusBadRequest

	case CodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge

	// Quota exhaustion - caller must slow down or wait for the next cycle
	case CodeRateLimited,
		CodeAuditLimitReached:
		return http.StatusTooManyRequests

	// Session/run mismatch the token layer could not bridge
	case CodeRunAccessDenied,
		CodeRerollVerifyFailed:
		return http.StatusForbidden

	case CodeNotFound,
		CodeRunNotFound,
		CodeOptionNotFound,
		CodePlanNotFound,
		CodePlanDayNotFound:
		return http.StatusNotFound

	// Curation could not assemble or replace the option split
	case CodeOptionAssemblyFailed,
		CodeRerollAlreadyUsed,
		CodeRerollResponseMismatch:
		return http.StatusConflict

	case CodeSeriesIncomplete:
		return http.StatusUnprocessableEntity

	case CodePlanDayLocked:
		return http.StatusLocked

	default:
		return http.StatusInternalServerError
	}
}
