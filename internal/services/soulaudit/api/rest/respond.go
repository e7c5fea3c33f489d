package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/ratelimit"
)

type requestIDKey struct{}

func withRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFrom(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"requestId"`
	Details   map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps a domain error onto the HTTP envelope. Non-domain errors
// surface as opaque 500s; their detail stays in the server log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	message := "something went wrong"
	var details map[string]string
	if domainErr, ok := apperrors.AsError(err); ok {
		message = domainErr.Message
		details = domainErr.Metadata
	} else {
		log.Printf("unexpected error: %v", err)
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("%s: %v", code, err)
	}
	writeJSON(w, status, errorResponse{
		Error:     message,
		Code:      string(code),
		RequestID: requestIDFrom(r.Context()),
		Details:   details,
	})
}

// decodeBody parses a JSON request body into dst, distinguishing oversized
// bodies from malformed ones.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.New(apperrors.CodeBodyTooLarge, "request body is too large")
		}
		return apperrors.New(apperrors.CodeBodyInvalid, "request body is not valid JSON")
	}
	return nil
}

func writeRateHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	w.Header().Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	w.Header().Set("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	if !decision.OK {
		seconds := int(decision.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
}
