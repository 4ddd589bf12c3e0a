// Package classify files items into digest sections with keyword heuristics.
// It implements the classifier collaborator contract consumed by the
// normalizer: a pure function, total over all text including empty input.
// Classification quality is explicitly not a goal here; the LLM curation pass
// in pkg/llm is the quality layer.
package classify

import (
	"strings"

	"github.com/YuqingLong18/aidaily/pkg/domain"
)

var (
	scienceCues = []string{"protein", "molecule", "drug", "chemistry", "biology", "genomics",
		"materials", "crystal", "weather", "climate"}
	educationCues = []string{"education", "classroom", "student", "teacher", "curriculum",
		"tutor", "learning outcome", "assessment", "rubric"}
	policyCues = []string{"policy", "regulat", "law", "ban", "compliance", "election",
		"senate", "parliament", "antitrust", "investigation"}
	marketCues = []string{"funding", "ipo", "acquisition", "merger", "valuation", "lawsuit", "fine"}
)

// Keyword is the default keyword-based classifier
type Keyword struct{}

// Classify assigns a section from the item type and combined text
func (Keyword) Classify(itemType domain.ItemType, text string) domain.Section {
	t := strings.ToLower(text)

	if itemType == domain.TypePaper {
		if containsAny(t, scienceCues) {
			return domain.SectionAIForScience
		}
		if containsAny(t, educationCues) {
			return domain.SectionAIEducation
		}
		return domain.SectionAITheoryArch
	}

	if containsAny(t, policyCues) || containsAny(t, marketCues) {
		return domain.SectionMarketPolicy
	}
	return domain.SectionProductTech
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
