package app

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/catalog"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/storage/memory"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/telemetry"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// mondayMorning is a local Monday well past the unlock hour.
var mondayMorning = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	app   *App
	store *memory.Store
	codec *token.Codec
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	codec, err := token.NewCodec(token.SecretConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	store := memory.New()
	a, err := New(store, cat, codec, telemetry.NewEmitter(store))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	f := &fixture{app: a, store: store, codec: codec, now: mondayMorning}
	clock := func() time.Time { return f.now }
	a.WithClock(clock)
	codec.WithClock(clock)
	return f
}

func (f *fixture) submit(t *testing.T, session, text string) SubmitOutput {
	t.Helper()
	out, err := f.app.Submit(context.Background(), SubmitInput{SessionToken: session, ResponseText: text})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return out
}

func (f *fixture) consent(t *testing.T, session string, out SubmitOutput, crisisAck bool) string {
	t.Helper()
	consent, err := f.app.Consent(context.Background(), ConsentInput{
		SessionToken:       session,
		AuditRunID:         out.AuditRunID,
		RunToken:           out.RunToken,
		EssentialAccepted:  true,
		CrisisAcknowledged: crisisAck,
	})
	if err != nil {
		t.Fatalf("consent: %v", err)
	}
	return consent.ConsentToken
}

func TestSubmitAssemblesRun(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "too much on my plate and I need focused peace and faithful structure")

	if out.AuditRunID == "" || out.RunToken == "" {
		t.Fatal("submit output missing run id or token")
	}
	if len(out.Options) != curation.TotalOptions {
		t.Fatalf("option count = %d, want %d", len(out.Options), curation.TotalOptions)
	}
	ai, prefab, ok := splitValid(out.Options)
	if !ok {
		t.Fatalf("split = %d/%d", ai, prefab)
	}
	if out.RemainingAudits != MaxAuditsPerCycle-1 {
		t.Fatalf("remaining = %d, want %d", out.RemainingAudits, MaxAuditsPerCycle-1)
	}
	if out.Crisis.Required {
		t.Fatal("crisis should not be flagged")
	}
	if out.Policy.OptionSplit.Total != curation.TotalOptions {
		t.Fatalf("policy = %+v", out.Policy)
	}
	if out.Guidance != "" {
		t.Fatalf("guidance for a full sentence = %q", out.Guidance)
	}

	// The run token must verify against the caller's session.
	verified, err := f.codec.VerifyRun(out.RunToken, out.AuditRunID, "sess-1")
	if err != nil {
		t.Fatalf("verify run token: %v", err)
	}
	if len(verified.Options) != curation.TotalOptions {
		t.Fatalf("token option count = %d", len(verified.Options))
	}

	if _, ok := f.store.TelemetryByRun(out.AuditRunID); !ok {
		t.Fatal("curation telemetry not recorded")
	}
}

func TestSubmitFlagsCrisis(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "some days I want to end my life but I keep praying")

	if !out.Crisis.Required {
		t.Fatal("crisis should be flagged")
	}
	if len(out.Crisis.Resources) == 0 {
		t.Fatal("crisis resources missing")
	}
}

func TestSubmitLowContextGuidance(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "tired")

	if out.Guidance == "" {
		t.Fatal("short submissions should carry guidance")
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.Submit(context.Background(), SubmitInput{SessionToken: "sess-1", ResponseText: "   "})
	if apperrors.CodeOf(err) != apperrors.CodeAuditInputEmpty {
		t.Fatalf("empty input error = %v", err)
	}

	_, err = f.app.Submit(context.Background(), SubmitInput{SessionToken: "sess-1", ResponseText: strings.Repeat("a", 2100)})
	if apperrors.CodeOf(err) != apperrors.CodeAuditInputTooLong {
		t.Fatalf("oversized input error = %v", err)
	}
}

func TestSubmitCycleQuota(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < MaxAuditsPerCycle; i++ {
		f.submit(t, "sess-1", "weary and restless tonight")
	}

	_, err := f.app.Submit(context.Background(), SubmitInput{SessionToken: "sess-1", ResponseText: "weary and restless tonight"})
	if apperrors.CodeOf(err) != apperrors.CodeAuditLimitReached {
		t.Fatalf("4th submit error = %v", err)
	}

	// Reset returns the counter to zero.
	if err := f.app.Reset(context.Background(), "sess-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	f.submit(t, "sess-1", "weary and restless tonight")
}

func TestRerollReplacesOptions(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "anxious about everything lately")

	shown := map[string]bool{}
	for _, option := range out.Options {
		shown[option.Slug] = true
	}

	rerolled, err := f.app.Reroll(context.Background(), RerollInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		RunToken:     out.RunToken,
	})
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if len(rerolled.Options) != curation.TotalOptions {
		t.Fatalf("rerolled option count = %d", len(rerolled.Options))
	}
	for _, option := range rerolled.Options {
		if shown[option.Slug] {
			t.Fatalf("rerolled option repeats slug %q", option.Slug)
		}
	}
	if rerolled.RunToken == out.RunToken {
		t.Fatal("reroll should re-issue the run token")
	}

	_, err = f.app.Reroll(context.Background(), RerollInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		RunToken:     rerolled.RunToken,
	})
	if apperrors.CodeOf(err) != apperrors.CodeRerollAlreadyUsed {
		t.Fatalf("second reroll error = %v", err)
	}
}

func TestRerollDoesNotConsumeQuota(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "anxious about everything lately")
	if _, err := f.app.Reroll(context.Background(), RerollInput{SessionToken: "sess-1", AuditRunID: out.AuditRunID, RunToken: out.RunToken}); err != nil {
		t.Fatalf("reroll: %v", err)
	}

	count, err := f.store.GetAuditCount(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("get audit count: %v", err)
	}
	if count != 1 {
		t.Fatalf("audit count after reroll = %d, want 1", count)
	}
}

func TestConsentRequiresEssential(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")

	_, err := f.app.Consent(context.Background(), ConsentInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		RunToken:     out.RunToken,
	})
	if apperrors.CodeOf(err) != apperrors.CodeEssentialConsentRequired {
		t.Fatalf("consent without essential = %v", err)
	}
}

func TestConsentRequiresCrisisAck(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "some days I want to end my life but I keep praying")

	_, err := f.app.Consent(context.Background(), ConsentInput{
		SessionToken:      "sess-1",
		AuditRunID:        out.AuditRunID,
		RunToken:          out.RunToken,
		EssentialAccepted: true,
	})
	if apperrors.CodeOf(err) != apperrors.CodeCrisisAckRequired {
		t.Fatalf("consent without crisis ack = %v", err)
	}

	token := f.consent(t, "sess-1", out, true)
	if token == "" {
		t.Fatal("consent token missing")
	}
}

func TestConsentStatelessFallback(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")

	// The record is gone; the verified run token bridges the gap.
	if err := f.store.ClearSessionAuditState(context.Background(), "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	consent, err := f.app.Consent(context.Background(), ConsentInput{
		SessionToken:      "sess-1",
		AuditRunID:        out.AuditRunID,
		RunToken:          out.RunToken,
		EssentialAccepted: true,
	})
	if err != nil {
		t.Fatalf("stateless consent: %v", err)
	}
	if consent.ConsentToken == "" {
		t.Fatal("consent token missing")
	}
}

func TestConsentUnknownRun(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.Consent(context.Background(), ConsentInput{
		SessionToken:      "sess-1",
		AuditRunID:        "missing",
		EssentialAccepted: true,
	})
	if apperrors.CodeOf(err) != apperrors.CodeRunNotFound {
		t.Fatalf("unknown run error = %v", err)
	}
}

func TestConsentSessionMismatch(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")

	// A different session without a bridging token is denied.
	_, err := f.app.Consent(context.Background(), ConsentInput{
		SessionToken:      "sess-2",
		AuditRunID:        out.AuditRunID,
		RunToken:          out.RunToken,
		EssentialAccepted: true,
	})
	if apperrors.CodeOf(err) != apperrors.CodeRunAccessDenied {
		t.Fatalf("mismatched session error = %v", err)
	}
}

func TestSelectGeneratedBuildsPlan(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "too much on my plate and I need focused peace")
	consentToken := f.consent(t, "sess-1", out, false)

	var primary curation.Option
	for _, option := range out.Options {
		if option.Kind == curation.KindAIPrimary {
			primary = option
			break
		}
	}

	selected, err := f.app.Select(context.Background(), SelectInput{
		SessionToken:          "sess-1",
		AuditRunID:            out.AuditRunID,
		OptionID:              primary.ID,
		RunToken:              out.RunToken,
		ConsentToken:          consentToken,
		TimezoneOffsetMinutes: 0,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if selected.SelectionType != curation.KindAIPrimary {
		t.Fatalf("selection type = %q", selected.SelectionType)
	}
	if selected.PlanToken == "" {
		t.Fatal("generated selection should mint a plan token")
	}
	// Monday start: no onboarding, route into day 1.
	if want := "/plans/" + selected.PlanToken + "/days/1"; selected.Route != want {
		t.Fatalf("route = %q, want %q", selected.Route, want)
	}

	instance, err := f.store.GetPlan(context.Background(), selected.PlanToken)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if instance.SeriesSlug != primary.Slug {
		t.Fatalf("plan series = %q, want %q", instance.SeriesSlug, primary.Slug)
	}
	days, err := f.store.ListPlanDays(context.Background(), selected.PlanToken)
	if err != nil {
		t.Fatalf("list plan days: %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("plan day count = %d, want 5", len(days))
	}
}

func TestSelectOnboardingRoute(t *testing.T) {
	f := newFixture(t)
	// Wednesday: onboarding policy with a day-0 primer.
	f.now = time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	out := f.submit(t, "sess-1", "too much on my plate and I need focused peace")
	consentToken := f.consent(t, "sess-1", out, false)

	var primary curation.Option
	for _, option := range out.Options {
		if option.Kind == curation.KindAIPrimary {
			primary = option
			break
		}
	}
	selected, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     primary.ID,
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if want := "/plans/" + selected.PlanToken + "/days/0"; selected.Route != want {
		t.Fatalf("route = %q, want %q", selected.Route, want)
	}
	days, err := f.store.ListPlanDays(context.Background(), selected.PlanToken)
	if err != nil {
		t.Fatalf("list plan days: %v", err)
	}
	if len(days) != 6 || days[0].DayNumber != 0 {
		t.Fatalf("onboarding plan days = %d, first = %d", len(days), days[0].DayNumber)
	}
}

func TestSelectPrefabRoutesToSeries(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")
	consentToken := f.consent(t, "sess-1", out, false)

	var prefab curation.Option
	for _, option := range out.Options {
		if option.Kind == curation.KindCuratedPrefab {
			prefab = option
			break
		}
	}
	selected, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     prefab.ID,
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
	})
	if err != nil {
		t.Fatalf("select prefab: %v", err)
	}
	if selected.SelectionType != curation.KindCuratedPrefab {
		t.Fatalf("selection type = %q", selected.SelectionType)
	}
	if selected.PlanToken != "" {
		t.Fatal("prefab selection should not mint a plan token")
	}
	if want := "/series/" + prefab.Slug; selected.Route != want {
		t.Fatalf("route = %q, want %q", selected.Route, want)
	}
}

func TestSelectRequiresConsent(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")

	_, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     out.Options[0].ID,
		RunToken:     out.RunToken,
	})
	if apperrors.CodeOf(err) != apperrors.CodeConsentRequired {
		t.Fatalf("select without consent = %v", err)
	}
}

func TestSelectUnknownOption(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")
	consentToken := f.consent(t, "sess-1", out, false)

	_, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     "ai_primary:nope:1:0",
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
	})
	if apperrors.CodeOf(err) != apperrors.CodeOptionNotFound {
		t.Fatalf("unknown option error = %v", err)
	}
}

func TestSelectInvalidTimezone(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")
	consentToken := f.consent(t, "sess-1", out, false)

	_, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     out.Options[0].ID,
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
		Timezone:     "Not/AZone",
	})
	if apperrors.CodeOf(err) != apperrors.CodeTimezoneInvalid {
		t.Fatalf("invalid timezone error = %v", err)
	}
}

func TestSelectIdempotent(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "weary and restless tonight")
	consentToken := f.consent(t, "sess-1", out, false)

	input := SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     out.Options[0].ID,
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
	}
	first, err := f.app.Select(context.Background(), input)
	if err != nil {
		t.Fatalf("first select: %v", err)
	}

	// Even with a different option id, the original selection wins.
	input.OptionID = out.Options[1].ID
	second, err := f.app.Select(context.Background(), input)
	if err != nil {
		t.Fatalf("second select: %v", err)
	}
	if second.Route != first.Route || second.PlanToken != first.PlanToken {
		t.Fatalf("re-select = %+v, want %+v", second, first)
	}
}

func TestSelectStatelessFromTokens(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "too much on my plate and I need focused peace")
	consentToken := f.consent(t, "sess-1", out, false)

	var primary curation.Option
	for _, option := range out.Options {
		if option.Kind == curation.KindAIPrimary {
			primary = option
			break
		}
	}

	// Wipe the repository; tokens must reconstruct the run.
	if err := f.store.ClearSessionAuditState(context.Background(), "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	selected, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     primary.ID,
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
	})
	if err != nil {
		t.Fatalf("stateless select: %v", err)
	}
	if selected.PlanToken == "" {
		t.Fatal("stateless generated selection should still mint a plan")
	}
}

func TestPlanReadFlow(t *testing.T) {
	f := newFixture(t)
	out := f.submit(t, "sess-1", "too much on my plate and I need focused peace")
	consentToken := f.consent(t, "sess-1", out, false)

	var primary curation.Option
	for _, option := range out.Options {
		if option.Kind == curation.KindAIPrimary {
			primary = option
			break
		}
	}
	selected, err := f.app.Select(context.Background(), SelectInput{
		SessionToken: "sess-1",
		AuditRunID:   out.AuditRunID,
		OptionID:     primary.ID,
		RunToken:     out.RunToken,
		ConsentToken: consentToken,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}

	// Day 1 unlocked on the Monday start.
	day, err := f.app.DayRead(context.Background(), selected.PlanToken, 1, false)
	if err != nil {
		t.Fatalf("read day 1: %v", err)
	}
	if day.Locked || day.Day == nil {
		t.Fatalf("day 1 = %+v", day)
	}
	if day.Day.ScriptureText == "" || day.Day.Teaching == "" {
		t.Fatal("day 1 content incomplete")
	}

	// Day 2 still locked; bare read fails, preview succeeds.
	_, err = f.app.DayRead(context.Background(), selected.PlanToken, 2, false)
	if apperrors.CodeOf(err) != apperrors.CodePlanDayLocked {
		t.Fatalf("locked day error = %v", err)
	}
	preview, err := f.app.DayRead(context.Background(), selected.PlanToken, 2, true)
	if err != nil {
		t.Fatalf("preview day 2: %v", err)
	}
	if !preview.Locked || preview.Preview == nil || preview.Day != nil {
		t.Fatalf("preview = %+v", preview)
	}
	if preview.Preview.Title == "" {
		t.Fatal("preview title missing")
	}

	days, err := f.app.Days(context.Background(), selected.PlanToken)
	if err != nil {
		t.Fatalf("days: %v", err)
	}
	if len(days.Days) != 5 {
		t.Fatalf("aggregate day count = %d", len(days.Days))
	}
	if days.CurrentDay != 1 {
		t.Fatalf("current day = %d, want 1", days.CurrentDay)
	}
	if days.RestDay {
		t.Fatal("Monday should not be the rest day")
	}

	status, err := f.app.Status(context.Background(), selected.PlanToken)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Pending {
		t.Fatalf("status = %+v", status)
	}
	if status.ExpectedDays != 5 || len(status.ReadyDays) != 5 {
		t.Fatalf("status days = %+v", status)
	}

	if _, err := f.app.DayRead(context.Background(), selected.PlanToken, 9, false); apperrors.CodeOf(err) != apperrors.CodePlanDayNotFound {
		t.Fatalf("unknown day error = %v", err)
	}
	if _, err := f.app.DayRead(context.Background(), "missing", 1, false); apperrors.CodeOf(err) != apperrors.CodePlanNotFound {
		t.Fatalf("unknown plan error = %v", err)
	}
}
