// Package rest exposes the soul audit orchestrator over HTTP with JSON
// bodies. Sessions are cookie-scoped opaque tokens; the flow itself stays
// stateless through signed run and consent tokens.
package rest

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/app"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/ratelimit"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 32 << 10

const sessionCookieName = "soul_audit_session"

// sessionCookieMaxAge keeps the session cookie alive across the longest
// plausible gap between submit and plan reading.
const sessionCookieMaxAge = 30 * 24 * time.Hour

// Server serves the soul audit HTTP surface.
type Server struct {
	app     *app.App
	limiter ratelimit.Store
	tracer  trace.Tracer
	secure  bool
}

// NewServer creates the HTTP surface. The limiter may be nil to disable
// rate limiting (tests). Set secure for HTTPS deployments so the session
// cookie carries the Secure attribute.
func NewServer(application *app.App, limiter ratelimit.Store, secure bool) (*Server, error) {
	if application == nil {
		return nil, fmt.Errorf("app is required")
	}
	return &Server{
		app:     application,
		limiter: limiter,
		tracer:  otel.Tracer("soulaudit/rest"),
		secure:  secure,
	}, nil
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/soul-audit/submit", s.traced("soulaudit.submit", s.handleSubmit))
	mux.HandleFunc("POST /api/soul-audit/reroll", s.traced("soulaudit.reroll", s.handleReroll))
	mux.HandleFunc("POST /api/soul-audit/consent", s.traced("soulaudit.consent", s.handleConsent))
	mux.HandleFunc("POST /api/soul-audit/select", s.traced("soulaudit.select", s.handleSelect))
	mux.HandleFunc("POST /api/soul-audit/reset", s.traced("soulaudit.reset", s.handleReset))
	mux.HandleFunc("GET /api/plans/{planToken}/days/{dayNumber}", s.traced("soulaudit.day", s.handleDay))
	mux.HandleFunc("GET /api/plans/{planToken}/days", s.traced("soulaudit.days", s.handleDays))
	mux.HandleFunc("GET /api/plans/{planToken}/status", s.traced("soulaudit.status", s.handleStatus))
	return mux
}

// traced wraps a handler with a span and the request-id echo.
func (s *Server) traced(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), name)
		defer span.End()

		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		r = r.WithContext(withRequestID(ctx, requestID))
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		handler(w, r)
	}
}

// session returns the caller's session token, minting a cookie-scoped one
// on first contact.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := strings.TrimSpace(r.Header.Get("X-Session-Token")); header != "" {
		return header
	}

	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// clientKey combines network origin with the session token so anonymous
// callers share fairness while a shared NAT cannot starve one user.
func clientKey(r *http.Request, sessionToken string) string {
	origin := ""
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		origin = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if origin == "" {
		origin = strings.TrimSpace(r.Header.Get("X-Real-Ip"))
	}
	if origin == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			origin = host
		} else {
			origin = r.RemoteAddr
		}
	}
	if sessionToken == "" {
		return origin
	}
	return origin + "|" + sessionToken
}

// allow runs the rate limiter for one endpoint class. A nil limiter always
// allows.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, namespace string, limit int, sessionToken string) bool {
	if s.limiter == nil {
		return true
	}
	decision, err := s.limiter.CheckAndIncrement(r.Context(), namespace, clientKey(r, sessionToken), limit, ratelimit.Window)
	if err != nil {
		writeError(w, r, apperrors.Wrap(apperrors.CodeUnknown, "rate limiter unavailable", err))
		return false
	}
	writeRateHeaders(w, decision)
	if !decision.OK {
		writeError(w, r, apperrors.New(apperrors.CodeRateLimited, "too many requests; slow down and try again"))
		return false
	}
	return true
}
