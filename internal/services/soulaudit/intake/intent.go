package intake

import (
	"regexp"
	"strings"
)

// Disposition classifies how a person approaches the material.
type Disposition string

const (
	DispositionSeeker    Disposition = "seeker"
	DispositionReturning Disposition = "returning"
	DispositionScholarly Disposition = "scholarly"
	DispositionPastoral  Disposition = "pastoral"
)

// FaithBackground classifies prior religious context.
type FaithBackground string

const (
	FaithChristian   FaithBackground = "christian"
	FaithOther       FaithBackground = "other-faith"
	FaithCurious     FaithBackground = "curious"
	FaithUnspecified FaithBackground = "unspecified"
)

// DepthPreference classifies the preferred study depth.
type DepthPreference string

const (
	DepthIntroductory DepthPreference = "introductory"
	DepthIntermediate DepthPreference = "intermediate"
	DepthDeepStudy    DepthPreference = "deep-study"
)

// Tone classifies the emotional register of a submission.
type Tone string

const (
	ToneLament     Tone = "lament"
	ToneHope       Tone = "hope"
	ToneConfession Tone = "confession"
	ToneAnxiety    Tone = "anxiety"
	ToneGuidance   Tone = "guidance"
	ToneMixed      Tone = "mixed"
)

// Intent is the deterministic interpretation of a submission. It feeds
// option curation; no generation step is involved.
type Intent struct {
	ReflectionFocus  string
	Themes           []string
	ScriptureAnchors []string
	Tone             Tone
	Disposition      Disposition
	FaithBackground  FaithBackground
	DepthPreference  DepthPreference
	Tags             []string
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "with": {}, "from": {},
	"this": {}, "have": {}, "been": {}, "your": {}, "just": {}, "into": {},
	"about": {},
}

var themeKeywords = map[string][]string{
	"anxiety":       {"anxiety", "afraid", "fear", "panic", "worry"},
	"grief":         {"grief", "loss", "sorrow", "mourning"},
	"purpose":       {"purpose", "calling", "direction", "meaning"},
	"sin":           {"sin", "guilt", "shame", "repent"},
	"trust":         {"trust", "faith", "doubt", "believe"},
	"relationships": {"marriage", "family", "friend", "relationship"},
}

var dispositionKeywords = map[Disposition][]string{
	DispositionSeeker: {
		"searching", "exploring", "don't know", "curious", "new to",
		"wondering", "open to", "never been", "first time", "unfamiliar",
	},
	DispositionReturning: {
		"returning", "came back", "used to", "grew up", "back to church",
		"reconnect", "walked away", "prodigal", "fell away", "coming back",
	},
	DispositionScholarly: {
		"study", "exegesis", "hermeneutic", "original language", "hebrew",
		"greek", "theology", "doctrine", "systematic", "commentary", "lexicon",
	},
	DispositionPastoral: {
		"hurting", "broken", "struggling", "pain", "crisis", "desperate",
		"lost", "overwhelmed", "suffering", "burdened", "weary",
	},
}

var faithKeywords = map[FaithBackground][]string{
	FaithChristian: {
		"church", "jesus", "christ", "bible", "scripture", "gospel", "lord",
		"pray", "worship", "pastor", "congregation", "sermon",
	},
	FaithOther: {
		"muslim", "buddhist", "hindu", "jewish", "interfaith", "quran",
		"synagogue", "temple", "meditation", "yoga", "dharma",
	},
	FaithCurious: {
		"agnostic", "atheist", "skeptic", "spiritual but", "not religious",
		"questioning", "doubt", "unsure about god", "is god real",
	},
}

var depthKeywords = map[DepthPreference][]string{
	DepthIntroductory: {
		"simple", "basic", "beginner", "start", "new to", "overview",
		"introduction", "help me understand", "what does it mean",
	},
	DepthIntermediate: {
		"deepen", "grow", "next step", "more", "further", "strengthen",
		"mature", "discipleship", "formation",
	},
	DepthDeepStudy: {
		"study", "exegesis", "hermeneutic", "original language", "hebrew",
		"greek", "commentary", "theology", "systematic", "scholarly",
		"deep dive", "academic",
	},
}

var (
	lamentPattern     = regexp.MustCompile(`grief|sorrow|lament|loss`)
	hopePattern       = regexp.MustCompile(`hope|future|expect`)
	confessionPattern = regexp.MustCompile(`sin|shame|repent|confess`)
	anxietyPattern    = regexp.MustCompile(`anxiety|fear|panic|worry`)
	guidancePattern   = regexp.MustCompile(`guide|direction|wisdom|decision`)
	purposePattern    = regexp.MustCompile(`purpose|direction|calling`)
	griefPattern      = regexp.MustCompile(`grief|sorrow|loss`)
	guiltPattern      = regexp.MustCompile(`sin|shame|guilt|repent`)
	nonWordPattern    = regexp.MustCompile(`[^a-z0-9\s]`)
)

// ParseIntent interprets a sanitized submission deterministically.
func ParseIntent(text string) Intent {
	focus := CollapseWhitespace(text)
	if len([]rune(focus)) > 160 {
		focus = string([]rune(focus)[:160])
	}

	themes := extractThemes(text)
	tone := inferTone(text)
	disposition := scoreKeywords(text, dispositionKeywords, DispositionSeeker)
	faith := scoreKeywords(text, faithKeywords, FaithUnspecified)
	depth := scoreKeywords(text, depthKeywords, DepthIntroductory)

	tags := make([]string, 0, 8)
	seen := map[string]struct{}{}
	for _, tag := range append([]string{string(tone)}, append(themes, string(disposition), string(depth))...) {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == 8 {
			break
		}
	}

	return Intent{
		ReflectionFocus:  focus,
		Themes:           themes,
		ScriptureAnchors: inferScriptureAnchors(text),
		Tone:             tone,
		Disposition:      disposition,
		FaithBackground:  faith,
		DepthPreference:  depth,
		Tags:             tags,
	}
}

func extractThemes(text string) []string {
	lower := strings.ToLower(text)

	var themes []string
	for _, theme := range []string{"anxiety", "grief", "purpose", "sin", "trust", "relationships"} {
		for _, word := range themeKeywords[theme] {
			if strings.Contains(lower, word) {
				themes = append(themes, theme)
				break
			}
		}
	}
	if len(themes) > 3 {
		themes = themes[:3]
	}
	if len(themes) > 0 {
		return themes
	}

	// No catalog theme matched; fall back to the longest distinct words.
	words := strings.Fields(nonWordPattern.ReplaceAllString(lower, " "))
	seen := map[string]struct{}{}
	for _, word := range words {
		if len(word) < 4 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		themes = append(themes, word)
		if len(themes) == 3 {
			break
		}
	}
	return themes
}

func inferTone(text string) Tone {
	lower := strings.ToLower(text)
	switch {
	case lamentPattern.MatchString(lower):
		return ToneLament
	case hopePattern.MatchString(lower):
		return ToneHope
	case confessionPattern.MatchString(lower):
		return ToneConfession
	case anxietyPattern.MatchString(lower):
		return ToneAnxiety
	case guidancePattern.MatchString(lower):
		return ToneGuidance
	default:
		return ToneMixed
	}
}

func inferScriptureAnchors(text string) []string {
	lower := strings.ToLower(text)
	var anchors []string
	if anxietyPattern.MatchString(lower) {
		anchors = append(anchors, "Philippians 4:6-7")
	}
	if griefPattern.MatchString(lower) {
		anchors = append(anchors, "Psalm 34:18")
	}
	if purposePattern.MatchString(lower) {
		anchors = append(anchors, "Proverbs 3:5-6")
	}
	if guiltPattern.MatchString(lower) {
		anchors = append(anchors, "1 John 1:9")
	}
	if len(anchors) == 0 {
		anchors = append(anchors, "Psalm 119:105")
	}
	if len(anchors) > 2 {
		anchors = anchors[:2]
	}
	return anchors
}

func scoreKeywords[T ~string](text string, keywords map[T][]string, fallback T) T {
	lower := strings.ToLower(text)
	best := fallback
	bestCount := 0
	// Rank categories deterministically so map order cannot flip ties.
	categories := make([]T, 0, len(keywords))
	for category := range keywords {
		categories = append(categories, category)
	}
	sortCategories(categories)
	for _, category := range categories {
		count := 0
		for _, word := range keywords[category] {
			if strings.Contains(lower, word) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = category
		}
	}
	return best
}

func sortCategories[T ~string](values []T) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j] < values[j-1]; j-- {
			values[j], values[j-1] = values[j-1], values[j]
		}
	}
}
