package curation

// Kind is the closed set of option kinds. Routing and plan creation both
// branch on it, so every consumption site switches exhaustively and treats
// an unknown value as an error.
type Kind string

const (
	// KindAIPrimary is a generated path seeded from a ranked catalog day.
	KindAIPrimary Kind = "ai_primary"
	// KindAIGenerative is a generated path with no catalog seed.
	KindAIGenerative Kind = "ai_generative"
	// KindCuratedPrefab is a fully authored static series.
	KindCuratedPrefab Kind = "curated_prefab"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAIPrimary, KindAIGenerative, KindCuratedPrefab:
		return true
	}
	return false
}

// Generated reports whether selecting k creates a plan instance.
func (k Kind) Generated() bool {
	switch k {
	case KindAIPrimary, KindAIGenerative:
		return true
	case KindCuratedPrefab:
		return false
	}
	return false
}
