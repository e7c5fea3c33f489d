package rest

import (
	"net/http"
	"strconv"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/app"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/intake"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/plan"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/ratelimit"
)

type submitRequest struct {
	ResponseText string `json:"responseText"`
}

type submitResponse struct {
	AuditRunID      string                   `json:"auditRunId"`
	RunToken        string                   `json:"runToken"`
	RemainingAudits int                      `json:"remainingAudits"`
	Crisis          intake.CrisisRequirement `json:"crisis"`
	Options         []curation.Option        `json:"options"`
	Guidance        string                   `json:"guidance,omitempty"`
	Policy          app.SubmitPolicy         `json:"policy"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceSubmit, ratelimit.LimitSubmit, session) {
		return
	}

	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.app.Submit(r.Context(), app.SubmitInput{
		SessionToken: session,
		ResponseText: req.ResponseText,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		AuditRunID:      out.AuditRunID,
		RunToken:        out.RunToken,
		RemainingAudits: out.RemainingAudits,
		Crisis:          out.Crisis,
		Options:         out.Options,
		Guidance:        out.Guidance,
		Policy:          out.Policy,
	})
}

type rerollRequest struct {
	AuditRunID string `json:"auditRunId"`
	RunToken   string `json:"runToken"`
}

type rerollResponse struct {
	AuditRunID string            `json:"auditRunId"`
	RunToken   string            `json:"runToken"`
	Options    []curation.Option `json:"options"`
}

func (s *Server) handleReroll(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceSubmit, ratelimit.LimitSubmit, session) {
		return
	}

	var req rerollRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.app.Reroll(r.Context(), app.RerollInput{
		SessionToken: session,
		AuditRunID:   req.AuditRunID,
		RunToken:     req.RunToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rerollResponse{
		AuditRunID: out.AuditRunID,
		RunToken:   out.RunToken,
		Options:    out.Options,
	})
}

type consentRequest struct {
	AuditRunID         string `json:"auditRunId"`
	RunToken           string `json:"runToken"`
	EssentialAccepted  bool   `json:"essentialAccepted"`
	AnalyticsOptIn     bool   `json:"analyticsOptIn"`
	CrisisAcknowledged bool   `json:"crisisAcknowledged"`
}

type consentResponse struct {
	ConsentToken string `json:"consentToken"`
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceConsent, ratelimit.LimitConsent, session) {
		return
	}

	var req consentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.app.Consent(r.Context(), app.ConsentInput{
		SessionToken:       session,
		AuditRunID:         req.AuditRunID,
		RunToken:           req.RunToken,
		EssentialAccepted:  req.EssentialAccepted,
		AnalyticsOptIn:     req.AnalyticsOptIn,
		CrisisAcknowledged: req.CrisisAcknowledged,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, consentResponse{ConsentToken: out.ConsentToken})
}

type selectRequest struct {
	AuditRunID            string `json:"auditRunId"`
	OptionID              string `json:"optionId"`
	RunToken              string `json:"runToken"`
	ConsentToken          string `json:"consentToken"`
	Timezone              string `json:"timezone"`
	TimezoneOffsetMinutes int    `json:"timezoneOffsetMinutes"`
}

type selectResponse struct {
	SelectionType string `json:"selectionType"`
	PlanToken     string `json:"planToken,omitempty"`
	Route         string `json:"route"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceConsent, ratelimit.LimitConsent, session) {
		return
	}

	var req selectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.app.Select(r.Context(), app.SelectInput{
		SessionToken:          session,
		AuditRunID:            req.AuditRunID,
		OptionID:              req.OptionID,
		RunToken:              req.RunToken,
		ConsentToken:          req.ConsentToken,
		Timezone:              req.Timezone,
		TimezoneOffsetMinutes: req.TimezoneOffsetMinutes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, selectResponse{
		SelectionType: string(out.SelectionType),
		PlanToken:     out.PlanToken,
		Route:         out.Route,
	})
}

type resetResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceReset, ratelimit.LimitReset, session) {
		return
	}
	if err := s.app.Reset(r.Context(), session); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{OK: true})
}

type dayResponse struct {
	Locked     bool             `json:"locked"`
	Archived   bool             `json:"archived"`
	Onboarding bool             `json:"onboarding"`
	Message    string           `json:"message,omitempty"`
	Day        *plan.Day        `json:"day,omitempty"`
	Preview    *app.DayPreview  `json:"preview,omitempty"`
	Schedule   app.ScheduleInfo `json:"schedule"`
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceRead, ratelimit.LimitRead, session) {
		return
	}

	planToken := r.PathValue("planToken")
	dayNumber, err := strconv.Atoi(r.PathValue("dayNumber"))
	if err != nil {
		writeError(w, r, apperrors.New(apperrors.CodeBodyInvalid, "day number must be an integer"))
		return
	}
	preview := r.URL.Query().Get("preview") == "1"

	out, err := s.app.DayRead(r.Context(), planToken, dayNumber, preview)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dayResponse{
		Locked:     out.Locked,
		Archived:   out.Archived,
		Onboarding: out.Onboarding,
		Message:    out.Message,
		Day:        out.Day,
		Preview:    out.Preview,
		Schedule:   out.Schedule,
	})
}

type daysResponse struct {
	Days       []app.DayListing `json:"days"`
	CurrentDay int              `json:"currentDay"`
	RestDay    bool             `json:"restDay"`
	Schedule   app.ScheduleInfo `json:"schedule"`
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceRead, ratelimit.LimitRead, session) {
		return
	}

	out, err := s.app.Days(r.Context(), r.PathValue("planToken"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, daysResponse{
		Days:       out.Days,
		CurrentDay: out.CurrentDay,
		RestDay:    out.RestDay,
		Schedule:   out.Schedule,
	})
}

type statusResponse struct {
	PlanToken    string `json:"planToken"`
	SeriesSlug   string `json:"seriesSlug"`
	ExpectedDays int    `json:"expectedDays"`
	ReadyDays    []int  `json:"readyDays"`
	Pending      bool   `json:"pending"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	session := s.session(w, r)
	if !s.allow(w, r, ratelimit.NamespaceRead, ratelimit.LimitRead, session) {
		return
	}

	out, err := s.app.Status(r.Context(), r.PathValue("planToken"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		PlanToken:    out.PlanToken,
		SeriesSlug:   out.SeriesSlug,
		ExpectedDays: out.ExpectedDays,
		ReadyDays:    out.ReadyDays,
		Pending:      out.Pending,
	})
}
