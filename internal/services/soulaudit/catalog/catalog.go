// Package catalog holds the authored devotional series corpus. The corpus is
// embedded YAML decoded once at startup; everything downstream (curation,
// plan assembly, prefab routes) reads through the Catalog index.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed series.yaml
var seriesYAML []byte

// completeSeriesDays is the minimum authored-day count for a series to be
// offered as a curated prefab path.
const completeSeriesDays = 5

// Day is one authored devotional day.
type Day struct {
	Number             int    `yaml:"number"`
	Title              string `yaml:"title"`
	ScriptureReference string `yaml:"scripture_reference"`
	ScriptureText      string `yaml:"scripture_text"`
	Teaching           string `yaml:"teaching"`
	Reflection         string `yaml:"reflection"`
	Prayer             string `yaml:"prayer"`
	Takeaway           string `yaml:"takeaway"`
}

// Series is one authored devotional series.
type Series struct {
	Slug         string   `yaml:"slug"`
	Title        string   `yaml:"title"`
	Question     string   `yaml:"question"`
	Introduction string   `yaml:"introduction"`
	Context      string   `yaml:"context"`
	Framework    string   `yaml:"framework"`
	Keywords     []string `yaml:"keywords"`
	Days         []Day    `yaml:"days"`
}

// Complete reports whether the series has enough authored days to serve as a
// standalone prefab path.
func (s Series) Complete() bool {
	return len(s.Days) >= completeSeriesDays
}

// Day returns the authored day with the given number.
func (s Series) Day(number int) (Day, bool) {
	for _, d := range s.Days {
		if d.Number == number {
			return d, true
		}
	}
	return Day{}, false
}

// Candidate is one series day flattened for ranking, with precomputed
// lower-cased search text.
type Candidate struct {
	Key                string
	SeriesSlug         string
	SeriesTitle        string
	DayNumber          int
	DayTitle           string
	ScriptureReference string
	ScriptureText      string
	Teaching           string
	Reflection         string
	Prayer             string
	Takeaway           string
	SearchText         string
}

// Catalog is the decoded corpus plus derived indexes.
type Catalog struct {
	slugs      []string
	bySlug     map[string]Series
	candidates []Candidate
}

type corpusFile struct {
	Series []Series `yaml:"series"`
}

// Load decodes the embedded corpus. Series order in the file is the
// canonical presentation order.
func Load() (*Catalog, error) {
	var file corpusFile
	if err := yaml.Unmarshal(seriesYAML, &file); err != nil {
		return nil, fmt.Errorf("decode series corpus: %w", err)
	}
	if len(file.Series) == 0 {
		return nil, fmt.Errorf("series corpus is empty")
	}

	c := &Catalog{bySlug: make(map[string]Series, len(file.Series))}
	for _, series := range file.Series {
		slug := strings.TrimSpace(series.Slug)
		if slug == "" {
			return nil, fmt.Errorf("series with empty slug in corpus")
		}
		if _, dup := c.bySlug[slug]; dup {
			return nil, fmt.Errorf("duplicate series slug %q", slug)
		}
		sort.Slice(series.Days, func(i, j int) bool {
			return series.Days[i].Number < series.Days[j].Number
		})
		c.bySlug[slug] = series
		c.slugs = append(c.slugs, slug)
		for _, day := range series.Days {
			c.candidates = append(c.candidates, buildCandidate(series, day))
		}
	}
	return c, nil
}

func buildCandidate(series Series, day Day) Candidate {
	parts := []string{
		series.Slug, series.Title, day.Title,
		day.ScriptureReference, day.ScriptureText,
		day.Teaching, day.Reflection, day.Prayer, day.Takeaway,
		series.Question, series.Framework,
	}
	parts = append(parts, series.Keywords...)
	return Candidate{
		Key:                fmt.Sprintf("%s:%d", series.Slug, day.Number),
		SeriesSlug:         series.Slug,
		SeriesTitle:        series.Title,
		DayNumber:          day.Number,
		DayTitle:           day.Title,
		ScriptureReference: day.ScriptureReference,
		ScriptureText:      day.ScriptureText,
		Teaching:           day.Teaching,
		Reflection:         day.Reflection,
		Prayer:             day.Prayer,
		Takeaway:           day.Takeaway,
		SearchText:         strings.ToLower(strings.Join(parts, " ")),
	}
}

// Slugs returns series slugs in canonical order.
func (c *Catalog) Slugs() []string {
	out := make([]string, len(c.slugs))
	copy(out, c.slugs)
	return out
}

// Series returns the series for slug.
func (c *Catalog) Series(slug string) (Series, bool) {
	s, ok := c.bySlug[slug]
	return s, ok
}

// Candidates returns every series day flattened for ranking.
func (c *Catalog) Candidates() []Candidate {
	out := make([]Candidate, len(c.candidates))
	copy(out, c.candidates)
	return out
}

// CandidateByKey resolves a curation seed back to its authored day. Falls
// back to (slug, day) matching when the key itself is stale.
func (c *Catalog) CandidateByKey(key, seriesSlug string, dayNumber int) (Candidate, bool) {
	for _, cand := range c.candidates {
		if cand.Key == key {
			return cand, true
		}
	}
	for _, cand := range c.candidates {
		if cand.SeriesSlug == seriesSlug && cand.DayNumber == dayNumber {
			return cand, true
		}
	}
	return Candidate{}, false
}
