package intake

import "strings"

// crisisKeywords is intentionally conservative: substring matches over
// lower-cased text, so false positives are acceptable and false negatives
// are not.
var crisisKeywords = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"don't want to live",
	"don't want to be here",
	"want to die",
	"better off dead",
	"no reason to live",
	"self harm",
	"self-harm",
	"cutting myself",
	"hurt myself",
	"abuse",
	"hits me",
	"beats me",
	"domestic violence",
}

// CrisisResource names one external crisis support channel.
type CrisisResource struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// CrisisRequirement describes the acknowledgment gate attached to a run.
type CrisisRequirement struct {
	Required     bool             `json:"required"`
	Acknowledged bool             `json:"acknowledged"`
	Resources    []CrisisResource `json:"resources,omitempty"`
	Prompt       string           `json:"prompt,omitempty"`
}

// DetectCrisis reports whether the submission contains crisis language.
func DetectCrisis(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range crisisKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// CrisisResources lists the support channels surfaced with a crisis flag.
func CrisisResources() []CrisisResource {
	return []CrisisResource{
		{Name: "988 Suicide & Crisis Lifeline", Contact: "Call or Text 988"},
		{Name: "Crisis Text Line", Contact: "Text HOME to 741741"},
	}
}

// NewCrisisRequirement builds the acknowledgment requirement for a run.
func NewCrisisRequirement(detected bool) CrisisRequirement {
	req := CrisisRequirement{Required: detected}
	if detected {
		req.Resources = CrisisResources()
		req.Prompt = "Before continuing, please acknowledge these crisis resources."
	}
	return req
}
