// Package app orchestrates the soul audit flow: submit, consent, select,
// and plan reading. Each step re-validates its preconditions server-side;
// client-asserted ordering is never trusted.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/catalog"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/plan"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/telemetry"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/token"
)

// MaxAuditsPerCycle bounds submissions per session until an explicit reset.
const MaxAuditsPerCycle = 3

// maxOffsetMinutes clamps timezone offsets to UTC±14.
const maxOffsetMinutes = 840

// App wires the soul audit domain together behind one orchestrator.
type App struct {
	store   storage.Store
	catalog *catalog.Catalog
	codec   *token.Codec
	emitter *telemetry.Emitter
	clock   func() time.Time
}

// New creates the orchestrator. The emitter may be nil; telemetry never
// gates the serving path.
func New(store storage.Store, cat *catalog.Catalog, codec *token.Codec, emitter *telemetry.Emitter) (*App, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if codec == nil {
		return nil, fmt.Errorf("token codec is required")
	}
	return &App{
		store:   store,
		catalog: cat,
		codec:   codec,
		emitter: emitter,
		clock:   time.Now,
	}, nil
}

// WithClock overrides the orchestrator's time source for tests.
func (a *App) WithClock(clock func() time.Time) *App {
	a.clock = clock
	return a
}

// runView is the resolved state of one audit run, backed either by the
// live repository record or by a verified run token.
type runView struct {
	runID          string
	responseText   string
	crisisDetected bool
	rerollUsed     bool
	options        []curation.Option
	stored         bool
}

// resolveRun applies the session-authority rule: a live repository session
// match is authoritative; a verified run token substitutes only when the
// record is absent or session-mismatched. Any unresolved mismatch fails.
func (a *App) resolveRun(ctx context.Context, sessionToken, runID, runToken string) (runView, error) {
	record, err := a.store.GetRun(ctx, runID)
	switch {
	case err == nil && record.SessionToken == sessionToken:
		// Authoritative.
	case err == nil:
		// Record belongs to a different session token; only a token bound
		// to this caller and this run bridges the rotation.
		if _, terr := a.codec.VerifyRun(runToken, runID, sessionToken); terr != nil {
			return runView{}, apperrors.New(apperrors.CodeRunAccessDenied, "this audit belongs to a different session")
		}
	case errors.Is(err, storage.ErrNotFound):
		verified, terr := a.codec.VerifyRun(runToken, runID, sessionToken)
		if terr != nil {
			return runView{}, apperrors.New(apperrors.CodeRunNotFound, "audit run not found")
		}
		return runView{
			runID:          verified.AuditRunID,
			responseText:   verified.ResponseText,
			crisisDetected: verified.CrisisDetected,
			options:        optionsFromPreviews(verified.Options),
		}, nil
	default:
		return runView{}, apperrors.Wrap(apperrors.CodeUnknown, "load audit run", err)
	}

	options, err := a.store.GetOptions(ctx, runID)
	if err != nil {
		return runView{}, apperrors.Wrap(apperrors.CodeUnknown, "load audit options", err)
	}
	return runView{
		runID:          record.ID,
		responseText:   record.ResponseText,
		crisisDetected: record.CrisisDetected,
		rerollUsed:     record.RerollUsed,
		options:        options,
		stored:         true,
	}, nil
}

// optionsFromPreviews rebuilds a minimal option set from a run token. Seeds
// and previews do not travel in the token; a stateless selection builds its
// plan without the seed anchor.
func optionsFromPreviews(previews []token.OptionPreview) []curation.Option {
	options := make([]curation.Option, 0, len(previews))
	for _, preview := range previews {
		options = append(options, curation.Option{
			ID:    preview.ID,
			Kind:  curation.Kind(preview.Kind),
			Slug:  preview.SeriesSlug,
			Title: preview.Title,
		})
	}
	return options
}

func optionPreviews(options []curation.Option) []token.OptionPreview {
	previews := make([]token.OptionPreview, 0, len(options))
	for _, option := range options {
		previews = append(previews, token.OptionPreview{
			ID:              option.ID,
			Kind:            string(option.Kind),
			Title:           option.Title,
			Description:     option.Question,
			SeriesSlug:      option.Slug,
			EstimatedDays:   plan.PlanLength,
			ScriptureAnchor: option.Preview.Verse,
		})
	}
	return previews
}

func clampOffset(offsetMinutes int) int {
	if offsetMinutes > maxOffsetMinutes {
		return maxOffsetMinutes
	}
	if offsetMinutes < -maxOffsetMinutes {
		return -maxOffsetMinutes
	}
	return offsetMinutes
}

// splitValid checks the assembled 3/2 option split.
func splitValid(options []curation.Option) (aiPrimary, curatedPrefab int, ok bool) {
	for _, option := range options {
		switch option.Kind {
		case curation.KindAIPrimary, curation.KindAIGenerative:
			aiPrimary++
		case curation.KindCuratedPrefab:
			curatedPrefab++
		}
	}
	ok = aiPrimary == curation.AIPrimaryCount &&
		curatedPrefab == curation.CuratedPrefabCount &&
		len(options) == curation.TotalOptions
	return aiPrimary, curatedPrefab, ok
}
