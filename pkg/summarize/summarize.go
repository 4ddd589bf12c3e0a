// Package summarize implements the summarizer collaborator: heuristic
// sentence picking for bullets plus canned why-it-matters / market-impact
// hints. Summarization quality is out of scope; the LLM curation pass
// rewrites these when it runs.
package summarize

import (
	"strings"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/htmltext"
)

// minimum sentence length to be considered a useful bullet
const minBulletLen = 40

// Heuristic is the default summarizer collaborator
type Heuristic struct{}

// Bullets extracts up to maxBullets sentences from text. Short sentences are
// skipped unless nothing substantial is found; for news the leading bullet is
// dropped when it just repeats the title.
func (Heuristic) Bullets(itemType domain.ItemType, title, text string, maxBullets int) []string {
	sentences := htmltext.SplitSentences(htmltext.StripTags(text))
	if len(sentences) == 0 {
		return nil
	}

	var bullets []string
	for _, s := range sentences {
		if len(s) < minBulletLen {
			continue
		}
		bullets = append(bullets, s)
		if len(bullets) >= maxBullets {
			break
		}
	}
	if len(bullets) == 0 {
		bullets = sentences
		if len(bullets) > maxBullets {
			bullets = bullets[:maxBullets]
		}
	}

	if itemType == domain.TypeNews && len(bullets) > 0 && title != "" {
		prefix := strings.ToLower(title)
		if len(prefix) > 24 {
			prefix = prefix[:24]
		}
		if strings.HasPrefix(strings.ToLower(bullets[0]), prefix) && len(bullets) > 1 {
			bullets = bullets[1:]
		}
	}

	if len(bullets) > maxBullets {
		bullets = bullets[:maxBullets]
	}
	return bullets
}

// WhyItMatters returns a short relevance hint for papers, empty for
// everything else
func (Heuristic) WhyItMatters(itemType domain.ItemType, title, text string) string {
	if itemType != domain.TypePaper {
		return ""
	}
	t := strings.ToLower(title + "\n" + text)
	switch {
	case strings.Contains(t, "open source") || strings.Contains(t, "code") || strings.Contains(t, "github"):
		return "Provides an implementable result with released code, making follow-up experimentation faster."
	case strings.Contains(t, "benchmark") || strings.Contains(t, "dataset"):
		return "Adds a new benchmark signal that can shift evaluation and model selection decisions."
	case strings.Contains(t, "theorem") || strings.Contains(t, "proof"):
		return "Clarifies a theoretical mechanism that can inform architecture and training choices."
	default:
		return "Useful signal for tracking where research effort is moving."
	}
}

// MarketImpact returns a short market hint for news, empty for everything
// else
func (Heuristic) MarketImpact(itemType domain.ItemType, title, text string) string {
	if itemType != domain.TypeNews {
		return ""
	}
	t := strings.ToLower(title + "\n" + text)
	switch {
	case containsAny(t, "regulat", "policy", "law", "ban", "compliance"):
		return "Likely impacts compliance expectations and deployment timelines for AI products."
	case containsAny(t, "funding", "acquisition", "valuation", "ipo"):
		return "Signals capital allocation and competitive pressure in the AI ecosystem."
	case containsAny(t, "launch", "release", "product", "api", "model"):
		return "May shift the baseline for features or pricing in AI tooling and platforms."
	default:
		return "Potentially relevant for product strategy and competitive monitoring."
	}
}

func containsAny(text string, cues ...string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}
