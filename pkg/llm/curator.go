// Package llm refines stored editions with an LLM editor pass: per-section
// top picks, rewritten tags and bullets, and importance-based rank scores.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"github.com/YuqingLong18/aidaily/pkg/config"
	"github.com/YuqingLong18/aidaily/pkg/domain"
)

// candidates sent per section; the two high-volume news sections get a
// slightly smaller batch to keep prompts within budget
const (
	defaultCandidateLimit = 24
	newsCandidateLimit    = 22
)

// sectionLimits is how many top picks the editor declares per section
var sectionLimits = map[domain.Section]int{
	domain.SectionAIForScience: 5,
	domain.SectionAITheoryArch: 5,
	domain.SectionAIEducation:  5,
	domain.SectionProductTech:  6,
	domain.SectionMarketPolicy: 5,
}

const systemPrompt = `You are the editor for a daily AI intelligence dashboard.
You must return STRICT JSON that matches the requested schema. No markdown, no extra keys.
Be factual and conservative: do not invent details beyond the provided text snippet.
If info is missing/uncertain, keep bullets generic and set timestamp_confidence='low'.
Keep output concise and skimmable.`

// chatClient is the slice of the OpenAI client the curator uses
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Curator runs the LLM editor pass over an edition's items
type Curator struct {
	client chatClient
	cfg    config.LLMConfig
}

// NewCurator creates a curator from the LLM configuration
func NewCurator(cfg config.LLMConfig) *Curator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &Curator{client: openai.NewClientWithConfig(clientConfig), cfg: cfg}
}

// curationItem is one item's curated fields as returned by the LLM
type curationItem struct {
	ID                  string   `json:"id"`
	Tags                []string `json:"tags"`
	SummaryBullets      []string `json:"summary_bullets"`
	WhyItMatters        string   `json:"why_it_matters"`
	MarketImpact        string   `json:"market_impact"`
	Difficulty          string   `json:"difficulty"`
	SourceReliability   string   `json:"source_reliability"`
	ImportanceScore     float64  `json:"importance_score"`
	TimestampConfidence string   `json:"timestamp_confidence"`
}

// curationResponse is the per-section response shape
type curationResponse struct {
	Section string         `json:"section"`
	TopIDs  []string       `json:"top_ids"`
	Items   []curationItem `json:"items"`
}

// itemPayload is one candidate as presented to the LLM
type itemPayload struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at_utc"`
	Snippet     string `json:"snippet"`
}

// Curate runs the editor pass section by section and returns the items whose
// curated fields changed, ready to be written back. A failing section is
// logged and skipped so one bad response does not lose the whole pass.
func (c *Curator) Curate(ctx context.Context, items []*domain.Item) ([]*domain.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	byID := make(map[string]*domain.Item, len(items))
	bySection := make(map[domain.Section][]*domain.Item)
	for _, item := range items {
		byID[item.ID.String()] = item
		bySection[item.Section] = append(bySection[item.Section], item)
	}

	var updated []*domain.Item
	for _, section := range domain.Sections() {
		candidates := selectCandidates(bySection[section], candidateLimit(section))
		if len(candidates) == 0 {
			continue
		}

		resp, err := c.curateSection(ctx, section, candidates)
		if err != nil {
			lgr.Printf("[WARN] curation failed for section %s: %v", section, err)
			continue
		}

		changed := applyCuration(section, resp, byID)
		lgr.Printf("[INFO] section %s: curated %d items, %d top picks", section, len(changed), len(resp.TopIDs))
		updated = append(updated, changed...)
	}
	return updated, nil
}

// selectCandidates takes the most recently published items up to the limit
func selectCandidates(items []*domain.Item, limit int) []*domain.Item {
	sorted := make([]*domain.Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func candidateLimit(section domain.Section) int {
	if section == domain.SectionProductTech || section == domain.SectionMarketPolicy {
		return newsCandidateLimit
	}
	return defaultCandidateLimit
}

func (c *Curator) curateSection(ctx context.Context, section domain.Section, candidates []*domain.Item) (*curationResponse, error) {
	prompt, err := buildPrompt(section, candidates)
	if err != nil {
		return nil, err
	}

	// retry on invalid JSON, the model occasionally wraps it in prose
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req := openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Temperature: float32(c.cfg.Temperature),
			MaxTokens:   c.cfg.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		}

		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("llm request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no response from llm")
		}

		var parsed curationResponse
		if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
			lastErr = fmt.Errorf("failed to parse json response: %w", err)
			continue
		}
		return &parsed, nil
	}
	return nil, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

// buildPrompt renders the per-section editor instructions plus the candidate
// items as a JSON array
func buildPrompt(section domain.Section, candidates []*domain.Item) (string, error) {
	payload := make([]itemPayload, 0, len(candidates))
	for _, item := range candidates {
		payload = append(payload, itemPayload{
			ID:          item.ID.String(),
			Type:        string(item.ItemType),
			Title:       item.Title,
			Source:      item.Source,
			URL:         item.SourceURL,
			PublishedAt: item.PublishedAt.Format("2006-01-02T15:04:05Z07:00"),
			Snippet:     snippet(item),
		})
	}
	itemsJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Section: %s\n\n", sectionDisplay(section))
	fmt.Fprintf(&sb, "Goal: pick the top %d items for this section and enrich ALL provided items with:\n", sectionLimits[section])
	sb.WriteString(`- tags (2-6 short keywords)
- summary_bullets (papers: 3-5, news: 2-4)
- why_it_matters (papers only; 1 sentence)
- market_impact (news only; 1 sentence)
- difficulty (papers only; one of: Beginner, Intermediate, Advanced; else null)
- source_reliability (High/Medium/Low based only on source reputation signals in snippet; default Medium)
- importance_score (0-100; higher = more impactful for readers today)
- timestamp_confidence (high/low; if snippet lacks clear time cues or seems ambiguous, use low)

`)
	fmt.Fprintf(&sb, `Return JSON in exactly this shape:
{
  "section": %q,
  "top_ids": ["<id>", "..."],
  "items": [
    {
      "id": "<id>",
      "tags": ["...", "..."],
      "summary_bullets": ["...", "..."],
      "why_it_matters": "..." | null,
      "market_impact": "..." | null,
      "difficulty": "Beginner" | "Intermediate" | "Advanced" | null,
      "source_reliability": "High" | "Medium" | "Low",
      "importance_score": 0,
      "timestamp_confidence": "high" | "low"
    }
  ]
}

Items (JSON array):
%s`, string(section), itemsJSON)
	return sb.String(), nil
}

// snippet picks the most informative short text for an item
func snippet(item *domain.Item) string {
	var text string
	switch {
	case item.ItemType == domain.TypePaper:
		text = strings.Join(item.SummaryBullets, "\n")
	case item.MarketImpact != "":
		text = item.MarketImpact
	default:
		text = strings.Join(item.SummaryBullets, "\n")
	}
	text = strings.TrimSpace(text)
	if len(text) > 1800 {
		text = text[:1800] + "..."
	}
	return text
}

func sectionDisplay(section domain.Section) string {
	switch section {
	case domain.SectionAIForScience:
		return "AI for Science"
	case domain.SectionAITheoryArch:
		return "AI Theory & Architectures"
	case domain.SectionAIEducation:
		return "AI in Education"
	case domain.SectionProductTech:
		return "Product & Technology Watch"
	case domain.SectionMarketPolicy:
		return "Market & Policy Lens"
	}
	return string(section)
}

// applyCuration merges a section response into the items. Unknown ids are
// ignored, scores are clamped to [0,100] and mapped to [0,1], and top picks
// get a position bonus floored at 0.7.
func applyCuration(section domain.Section, resp *curationResponse, byID map[string]*domain.Item) []*domain.Item {
	topBonus := make(map[string]float64, len(resp.TopIDs))
	for idx, id := range resp.TopIDs {
		topBonus[id] = math.Max(0.7, 1.0-float64(idx)*0.03)
	}

	var updated []*domain.Item
	for _, entry := range resp.Items {
		item, ok := byID[entry.ID]
		if !ok {
			continue
		}

		item.Tags = cleanStrings(entry.Tags, 8)
		item.SummaryBullets = cleanStrings(entry.SummaryBullets, 0)
		item.WhyItMatters = strings.TrimSpace(entry.WhyItMatters)
		item.MarketImpact = strings.TrimSpace(entry.MarketImpact)

		switch entry.Difficulty {
		case "Beginner", "Intermediate", "Advanced":
			item.Difficulty = entry.Difficulty
		default:
			item.Difficulty = ""
		}

		switch entry.SourceReliability {
		case domain.ReliabilityHigh, domain.ReliabilityMedium, domain.ReliabilityLow:
			item.SourceReliability = entry.SourceReliability
		default:
			if item.SourceReliability == "" {
				item.SourceReliability = domain.ReliabilityMedium
			}
		}

		score := math.Max(0, math.Min(100, entry.ImportanceScore))
		rank := round4(score / 100.0)
		if bonus, ok := topBonus[entry.ID]; ok {
			rank = round4(math.Max(rank, bonus))
		}
		item.RankScore = rank

		if entry.TimestampConfidence == string(domain.ConfidenceLow) {
			item.TimestampConfidence = domain.ConfidenceLow
		} else {
			item.TimestampConfidence = domain.ConfidenceHigh
		}

		item.Section = section
		updated = append(updated, item)
	}
	return updated
}

// cleanStrings trims, drops empties and optionally caps the slice length
func cleanStrings(values []string, limit int) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
