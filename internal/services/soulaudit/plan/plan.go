// Package plan assembles the concrete reading days for a generated
// selection: five curated-first days woven around the user's disclosure,
// plus the day-0 primer under the onboarding policy.
package plan

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/catalog"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/curation"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/schedule"
)

// PlanLength is the number of cycle days every generated plan carries.
const PlanLength = 5

const (
	snippetLimit       = 180
	prayerSnippetLimit = 120
)

// Day is the rendered content snapshot for one plan day.
type Day struct {
	Number             int    `json:"day"`
	Title              string `json:"title"`
	ScriptureReference string `json:"scriptureReference"`
	ScriptureText      string `json:"scriptureText"`
	Teaching           string `json:"teaching"`
	Reflection         string `json:"reflection"`
	Prayer             string `json:"prayer"`
	NextStep           string `json:"nextStep"`
	JournalPrompt      string `json:"journalPrompt"`
}

// BuildCuratedFirst assembles the five cycle days for a generated selection.
// The seeded candidate leads, the series' own days follow in order, and
// ranked candidates from the wider corpus fill any gap. Fewer than five
// fully authored days is an incomplete-series failure.
func BuildCuratedFirst(cat *catalog.Catalog, seriesSlug, userResponse string, seed *curation.Seed) ([]Day, error) {
	selected, err := selectCandidates(cat, seriesSlug, userResponse, seed)
	if err != nil {
		return nil, err
	}

	days := make([]Day, 0, PlanLength)
	for i, cand := range selected {
		days = append(days, renderDay(i+1, cand, userResponse))
	}
	return days, nil
}

func selectCandidates(cat *catalog.Catalog, seriesSlug, userResponse string, seed *curation.Seed) ([]catalog.Candidate, error) {
	var selected []catalog.Candidate
	used := make(map[string]bool)
	push := func(cand catalog.Candidate, ok bool) {
		if !ok || used[cand.Key] || len(selected) >= PlanLength {
			return
		}
		used[cand.Key] = true
		selected = append(selected, cand)
	}

	if seed != nil {
		push(cat.CandidateByKey(seed.CandidateKey, seed.SeriesSlug, seed.DayNumber))
	}
	for _, cand := range cat.Candidates() {
		if cand.SeriesSlug == seriesSlug {
			push(cand, true)
		}
	}
	if len(selected) < PlanLength {
		ranked := curation.Rank(cat, curation.RankParams{
			Input:            userResponse + " " + seriesSlug,
			AnchorSeriesSlug: seriesSlug,
			AnchorSeed:       seed,
		})
		for _, r := range ranked {
			push(r.Candidate, true)
		}
	}
	if len(selected) < PlanLength {
		return nil, apperrors.WithMetadata(
			apperrors.CodeSeriesIncomplete,
			"This series does not have enough authored days to start a plan.",
			map[string]string{"series": seriesSlug, "have": fmt.Sprintf("%d", len(selected))},
		)
	}
	return selected[:PlanLength], nil
}

func renderDay(number int, cand catalog.Candidate, userResponse string) Day {
	snippet := truncate(strings.TrimSpace(userResponse), snippetLimit)

	reflection := cand.Teaching + "\n\nReflection prompt: " + cand.Reflection
	if snippet != "" {
		reflection += fmt.Sprintf(
			"\n\nToday in %q, take one concrete step with what you just read. From what you shared (%q), bring that exact tension honestly before God today.",
			cand.DayTitle, snippet)
	} else {
		reflection += fmt.Sprintf(
			"\n\nToday in %q, take one concrete step with what you just read.", cand.DayTitle)
	}

	prayer := fmt.Sprintf("Jesus, as I receive %s, slow me down enough to listen and obey.\n\n%s",
		cand.ScriptureReference, cand.Prayer)
	if ps := truncate(strings.TrimSpace(userResponse), prayerSnippetLimit); ps != "" {
		prayer += fmt.Sprintf("\n\nYou know what I am carrying (%q). Meet me in it and lead me in truth.", ps)
	} else {
		prayer += "\n\nHelp me walk this faithfully, one step at a time."
	}

	return Day{
		Number:             number,
		Title:              cand.DayTitle,
		ScriptureReference: cand.ScriptureReference,
		ScriptureText:      cand.ScriptureText,
		Teaching:           cand.Teaching,
		Reflection:         reflection,
		Prayer:             prayer,
		NextStep:           cand.Takeaway + " Then choose one concrete action you can complete before the day ends, and set a specific hour to do it.",
		JournalPrompt:      cand.Reflection + "\nWhat resistance do you notice in yourself, and what would faithful obedience look like in one sentence?",
	}
}

// BuildOnboardingDay renders the day-0 primer for mid-week starts. The copy
// varies by onboarding variant and anchors to the plan's first cycle day.
func BuildOnboardingDay(userResponse string, firstDay Day, variant schedule.OnboardingVariant) Day {
	var label, intro string
	switch variant {
	case schedule.VariantWednesday3Day:
		label = "Wednesday 3-Day Primer"
		intro = "Wednesday start: a 3-day rhythm primer (Wed-Thu-Fri) to establish momentum before Monday cycle launch."
	case schedule.VariantThursday2Day:
		label = "Thursday 2-Day Primer"
		intro = "Thursday start: a 2-day rhythm primer (Thu-Fri) so your Monday cycle begins with pace."
	case schedule.VariantFriday1Day:
		label = "Friday 1-Day Primer"
		intro = "Friday start: a focused 1-day primer to orient your heart before the full Monday cycle."
	default:
		label = "Weekend Bridge Primer"
		intro = "Weekend start: a bridge devotional to settle your pace before Monday cycle launch."
	}

	nextStep := "Read this onboarding day now. Full cycle unlock begins Monday at 7:00 AM local time."
	if variant.Days() >= 2 {
		nextStep = fmt.Sprintf(
			"Read this onboarding day now, then return daily for your %d-day rhythm primer. Full cycle unlock begins Monday at 7:00 AM local time.",
			variant.Days())
	}

	reflection := intro + "\n\nYour full 5-day curated path is already prepared. Start with this orientation and move into Day 1 with honesty.\n\nYour first day is " + fmt.Sprintf("%q.", firstDay.Title)
	if snippet := truncate(strings.TrimSpace(userResponse), snippetLimit); snippet != "" {
		reflection = fmt.Sprintf("You shared: %q. ", snippet) + reflection
	}

	return Day{
		Number:             0,
		Title:              "Onboarding: " + label,
		ScriptureReference: firstDay.ScriptureReference,
		ScriptureText:      firstDay.ScriptureText,
		Teaching:           intro,
		Reflection:         reflection,
		Prayer:             "Lord Jesus, steady my pace as I begin this path. Give me courage to be honest and faithful in each next step.",
		NextStep:           nextStep + " Keep this same daily reading window to build consistency.",
		JournalPrompt:      "What do I want to bring before God first as this devotional path begins?",
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
