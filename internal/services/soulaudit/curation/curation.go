// Package curation ranks the catalog against a disclosure and assembles the
// fixed five-option result set: three generated-primary paths and two
// curated prefab paths. The split is never relaxed; assembly fails closed.
package curation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/louisbranch/euangelion/internal/platform/errors"
	"github.com/louisbranch/euangelion/internal/services/soulaudit/catalog"
)

const (
	// AIPrimaryCount and CuratedPrefabCount define the mandatory split.
	AIPrimaryCount     = 3
	CuratedPrefabCount = 2
	// TotalOptions is always AIPrimaryCount + CuratedPrefabCount.
	TotalOptions = AIPrimaryCount + CuratedPrefabCount

	maxKeywords      = 20
	minKeywordLength = 4
	previewClamp     = 200
)

// Seed points a generated option back at the catalog day that anchored its
// ranking; the downstream generator consumes it.
type Seed struct {
	SeriesSlug   string `json:"seriesSlug"`
	DayNumber    int    `json:"dayNumber"`
	CandidateKey string `json:"candidateKey"`
}

// Preview is the day-1 teaser attached to each option.
type Preview struct {
	Verse     string `json:"verse"`
	VerseText string `json:"verseText"`
	Paragraph string `json:"paragraph"`
}

// Option is one ranked path offered to the user.
type Option struct {
	ID         string  `json:"id"`
	Kind       Kind    `json:"kind"`
	Rank       int     `json:"rank"`
	Slug       string  `json:"slug"`
	Title      string  `json:"title"`
	Question   string  `json:"question"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Preview    Preview `json:"preview"`
	Seed       *Seed   `json:"seed,omitempty"`
}

// Result carries the assembled options plus the ranking facts the telemetry
// emitter records.
type Result struct {
	Options           []Option
	MatchedTerms      []string
	AverageConfidence float64
}

type semanticHint struct {
	trigger *regexp.Regexp
	inject  string
}

// semanticHints widen colloquial phrasings into the vocabulary the corpus is
// authored in, so "too much on my plate" still reaches the rest-and-peace
// material.
var semanticHints = []semanticHint{
	{regexp.MustCompile(`\btoo much on my plate\b`), "busy overwhelmed exhausted"},
	{regexp.MustCompile(`\boverloaded\b|\boverwhelm(ed|ing)?\b`), "busy anxiety"},
	{regexp.MustCompile(`\bburn(ed|out)?\b`), "exhausted rest peace"},
	{regexp.MustCompile(`\banxious|anxiety|panic|stress(ed)?\b`), "peace control worry"},
	{regexp.MustCompile(`\blonely|alone|isolated\b`), "community relationships"},
	{regexp.MustCompile(`\bconfused|uncertain|misinformation|truth\b`), "truth discern"},
	{regexp.MustCompile(`\bguilty|shame|sin\b`), "grace mercy forgiveness"},
	{regexp.MustCompile(`\bdoubt|skeptic|skeptical\b`), "belief trust gospel"},
}

var keywordStrip = regexp.MustCompile(`[^a-z0-9\s-]`)

// ExpandSemanticHints lower-cases the input and appends hint vocabulary for
// every matched colloquialism.
func ExpandSemanticHints(input string) string {
	lower := strings.ToLower(input)
	expanded := lower
	for _, hint := range semanticHints {
		if hint.trigger.MatchString(lower) {
			expanded += " " + hint.inject
		}
	}
	return expanded
}

// ExtractKeywords tokenizes to deduped lower-case terms of at least four
// characters, capped at twenty.
func ExtractKeywords(input string) []string {
	cleaned := keywordStrip.ReplaceAllString(strings.ToLower(input), " ")
	seen := make(map[string]bool)
	var out []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) < minKeywordLength || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}

// Ranked pairs a candidate with its score and matched terms.
type Ranked struct {
	Candidate catalog.Candidate
	Score     float64
	Matches   []string
}

// RankParams tunes a ranking pass. Anchors bias the scoring toward a series
// or a specific seeded day without ever excluding other candidates.
type RankParams struct {
	Input            string
	AnchorSeriesSlug string
	AnchorSeed       *Seed
	ExcludeSlugs     map[string]bool
}

// Rank scores every candidate for the input. Two points per matched
// keyword, plus anchor bonuses. Ordering is fully deterministic: score
// descending, then series slug ascending, then day ascending.
func Rank(cat *catalog.Catalog, params RankParams) []Ranked {
	keywords := ExtractKeywords(ExpandSemanticHints(params.Input))

	var ranked []Ranked
	for _, cand := range cat.Candidates() {
		if params.ExcludeSlugs[cand.SeriesSlug] {
			continue
		}
		var matches []string
		for _, kw := range keywords {
			if strings.Contains(cand.SearchText, kw) {
				matches = append(matches, kw)
			}
		}
		score := float64(len(matches) * 2)
		if params.AnchorSeriesSlug != "" && cand.SeriesSlug == params.AnchorSeriesSlug {
			score += 3
		}
		if seed := params.AnchorSeed; seed != nil {
			if cand.SeriesSlug == seed.SeriesSlug {
				score += 2
			}
			if cand.DayNumber == seed.DayNumber {
				score += 4
			}
			if cand.Key == seed.CandidateKey {
				score += 6
			}
		}
		ranked = append(ranked, Ranked{Candidate: cand, Score: score, Matches: matches})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Candidate.SeriesSlug != ranked[j].Candidate.SeriesSlug {
			return ranked[i].Candidate.SeriesSlug < ranked[j].Candidate.SeriesSlug
		}
		return ranked[i].Candidate.DayNumber < ranked[j].Candidate.DayNumber
	})
	return ranked
}

// Assemble builds the five-option split for the input, excluding the given
// series slugs (reroll passes every previously shown slug). Fails closed
// when fewer than five valid options exist.
func Assemble(cat *catalog.Catalog, input string, excludeSlugs map[string]bool) (Result, error) {
	ranked := Rank(cat, RankParams{Input: input, ExcludeSlugs: excludeSlugs})

	// Best candidate per series, in ranked order.
	var seriesOrder []string
	best := make(map[string]Ranked)
	for _, r := range ranked {
		if _, ok := best[r.Candidate.SeriesSlug]; ok {
			continue
		}
		best[r.Candidate.SeriesSlug] = r
		seriesOrder = append(seriesOrder, r.Candidate.SeriesSlug)
	}

	maxScore := 1.0
	for _, slug := range seriesOrder {
		if s := best[slug].Score; s > maxScore {
			maxScore = s
		}
	}
	confidence := func(r Ranked) float64 {
		c := r.Score / maxScore
		if c < 0.35 {
			c = 0.35
		}
		if c > 1 {
			c = 1
		}
		return c
	}

	matched := make(map[string]bool)
	var options []Option
	ordinal := 0

	// Top three distinct series become generated-primary paths, each seeded
	// with the catalog day that won its series.
	var primaries []string
	for _, slug := range seriesOrder {
		if len(primaries) == AIPrimaryCount {
			break
		}
		primaries = append(primaries, slug)
	}
	if len(primaries) < AIPrimaryCount {
		return Result{}, assemblyFailure(len(options), excludeSlugs)
	}
	for rank, slug := range primaries {
		r := best[slug]
		series, _ := cat.Series(slug)
		ordinal++
		options = append(options, Option{
			ID:         optionID(KindAIPrimary, slug, rank+1, ordinal),
			Kind:       KindAIPrimary,
			Rank:       rank + 1,
			Slug:       slug,
			Title:      series.Title,
			Question:   series.Question,
			Confidence: confidence(r),
			Reasoning:  "Real-time curated modules that align with what you shared.",
			Preview:    seriesPreview(series),
			Seed: &Seed{
				SeriesSlug:   r.Candidate.SeriesSlug,
				DayNumber:    r.Candidate.DayNumber,
				CandidateKey: r.Candidate.Key,
			},
		})
		for _, m := range r.Matches {
			matched[m] = true
		}
	}

	// The next two best complete series become prefab paths. Incomplete
	// series are skipped in favor of the next candidate, never padded.
	taken := make(map[string]bool, len(primaries))
	for _, slug := range primaries {
		taken[slug] = true
	}
	prefabRank := 0
	for _, slug := range seriesOrder {
		if prefabRank == CuratedPrefabCount {
			break
		}
		if taken[slug] {
			continue
		}
		series, ok := cat.Series(slug)
		if !ok || !series.Complete() {
			continue
		}
		r := best[slug]
		prefabRank++
		ordinal++
		options = append(options, Option{
			ID:         optionID(KindCuratedPrefab, slug, prefabRank, ordinal),
			Kind:       KindCuratedPrefab,
			Rank:       prefabRank,
			Slug:       slug,
			Title:      series.Title,
			Question:   series.Question,
			Confidence: confidence(r),
			Reasoning:  "A stable prefab series if you want a proven guided path.",
			Preview:    seriesPreview(series),
		})
		for _, m := range r.Matches {
			matched[m] = true
		}
	}

	if len(options) != TotalOptions {
		return Result{}, assemblyFailure(len(options), excludeSlugs)
	}

	terms := make([]string, 0, len(matched))
	for term := range matched {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	var sum float64
	for _, opt := range options {
		sum += opt.Confidence
	}
	return Result{
		Options:           options,
		MatchedTerms:      terms,
		AverageConfidence: sum / float64(len(options)),
	}, nil
}

func assemblyFailure(assembled int, excludeSlugs map[string]bool) error {
	return apperrors.WithMetadata(
		apperrors.CodeOptionAssemblyFailed,
		"We couldn't assemble a full set of paths from what you shared. Try adding a bit more detail.",
		map[string]string{
			"assembled": fmt.Sprintf("%d", assembled),
			"excluded":  fmt.Sprintf("%d", len(excludeSlugs)),
		},
	)
}

func optionID(kind Kind, slug string, rank, ordinal int) string {
	return fmt.Sprintf("%s:%s:%d:%d", kind, slug, rank, ordinal)
}

func seriesPreview(series catalog.Series) Preview {
	day, ok := series.Day(1)
	if !ok {
		return Preview{Paragraph: clamp(series.Introduction, previewClamp)}
	}
	return Preview{
		Verse:     day.ScriptureReference,
		VerseText: clamp(day.ScriptureText, previewClamp),
		Paragraph: clamp(series.Introduction, previewClamp),
	}
}

func clamp(value string, limit int) string {
	normalized := strings.Join(strings.Fields(value), " ")
	if len(normalized) <= limit {
		return normalized
	}
	return strings.TrimRight(normalized[:limit-3], " ") + "..."
}
