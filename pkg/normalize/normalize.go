// Package normalize converts adapter output into canonical items: stable
// identity from the dedup key, section assignment, summary bullets, cleaned
// tags and the recency/reliability rank score. Everything here is a pure
// function of (raw item, edition window), which is what makes re-ingestion
// idempotent.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/edition"
	"github.com/YuqingLong18/aidaily/pkg/htmltext"
)

// rank score weighting: recency within the window vs source reliability
const (
	recencyWeight     = 0.65
	reliabilityWeight = 0.35
)

// bullet caps per item type
const (
	paperMaxBullets = 5
	newsMaxBullets  = 4
)

// Classifier is the section classifier collaborator, a pure function total
// over all text
type Classifier interface {
	Classify(itemType domain.ItemType, text string) domain.Section
}

// Summarizer is the summarizer collaborator
type Summarizer interface {
	Bullets(itemType domain.ItemType, title, text string, maxBullets int) []string
	WhyItMatters(itemType domain.ItemType, title, text string) string
	MarketImpact(itemType domain.ItemType, title, text string) string
}

// Normalizer builds canonical items from raw adapter output
type Normalizer struct {
	classifier Classifier
	summarizer Summarizer
}

// New creates a normalizer with the given collaborators
func New(classifier Classifier, summarizer Summarizer) *Normalizer {
	return &Normalizer{classifier: classifier, summarizer: summarizer}
}

// Normalize converts a raw item into a canonical one. It never fails: valid
// adapter output always normalizes.
func (n *Normalizer) Normalize(raw domain.RawItem, w edition.Window) domain.Item {
	title := strings.TrimSpace(raw.Title)
	sourceURL := CanonicalizeURL(raw.SourceURL)
	canonicalURL := ""
	if raw.CanonicalURL != "" {
		canonicalURL = CanonicalizeURL(raw.CanonicalURL)
	}

	combined := title + "\n" + raw.SummaryText + "\n" + raw.ContentText
	section := n.classifier.Classify(raw.ItemType, combined)

	var bullets []string
	if raw.ItemType == domain.TypePaper {
		bullets = n.summarizer.Bullets(domain.TypePaper, title, firstNonEmpty(raw.SummaryText, raw.ContentText), paperMaxBullets)
	} else {
		bullets = n.summarizer.Bullets(raw.ItemType, title, firstNonEmpty(raw.ContentText, raw.SummaryText), newsMaxBullets)
	}

	why := n.summarizer.WhyItMatters(raw.ItemType, title, firstNonEmpty(raw.SummaryText, raw.ContentText))
	market := n.summarizer.MarketImpact(raw.ItemType, title, firstNonEmpty(raw.ContentText, raw.SummaryText))

	difficulty := ""
	if raw.ItemType == domain.TypePaper {
		difficulty = DifficultyHint(combined)
	}

	published := raw.PublishedAt.UTC()
	key := DedupKey(sourceURL, canonicalURL, raw.Source, raw.ExternalID, title, published)

	precision := raw.TimestampPrecision
	if precision == "" {
		precision = domain.PrecisionExact
	}
	confidence := raw.TimestampConfidence
	if confidence == "" {
		confidence = domain.ConfidenceHigh
	}

	return domain.Item{
		ID:                  IDFromDedupKey(key),
		ItemType:            raw.ItemType,
		Section:             section,
		Title:               title,
		Source:              raw.Source,
		SourceURL:           sourceURL,
		CanonicalURL:        canonicalURL,
		ExternalID:          raw.ExternalID,
		PublishedAt:         published,
		EditionDateLocal:    w.EditionDateLocal,
		EditionTimezone:     w.Timezone,
		Tags:                CleanTags(raw.Tags),
		Difficulty:          difficulty,
		SummaryBullets:      bullets,
		WhyItMatters:        why,
		MarketImpact:        market,
		SourceReliability:   raw.SourceReliability,
		TimestampPrecision:  precision,
		TimestampConfidence: confidence,
		RankScore:           RankScore(published, w, raw.SourceReliability),
	}
}

// DedupKey picks the identity string for an item: source URL first, then
// canonical URL, then a composite of source, external id, title and publish
// time
func DedupKey(sourceURL, canonicalURL, source, externalID, title string, published time.Time) string {
	if sourceURL != "" {
		return sourceURL
	}
	if canonicalURL != "" {
		return canonicalURL
	}
	return fmt.Sprintf("%s:%s:%s:%s", source, externalID, title, published.Format(time.RFC3339))
}

// IDFromDedupKey derives a stable UUID from the dedup key: first 16 bytes of
// the key's SHA-256. Identical keys always yield identical identities, across
// runs and across systems.
func IDFromDedupKey(key string) uuid.UUID {
	sum := sha256.Sum256([]byte(key))
	id, err := uuid.FromBytes(sum[:16])
	if err != nil { // unreachable, FromBytes only rejects wrong lengths
		panic(err)
	}
	return id
}

// RankScore blends recency within the window with source reliability,
// rounded to 4 decimals. Recency is 0 at window start, 1 at window end,
// clamped for out-of-window timestamps.
func RankScore(published time.Time, w edition.Window, reliability string) float64 {
	pos := published.Sub(w.UTCStart).Seconds()
	recency := pos / w.Span()
	if recency < 0 {
		recency = 0
	}
	if recency > 1 {
		recency = 1
	}
	score := recencyWeight*recency + reliabilityWeight*reliabilityValue(reliability)
	return math.Round(score*10000) / 10000
}

func reliabilityValue(label string) float64 {
	switch strings.ToLower(label) {
	case "high":
		return 1.0
	case "medium":
		return 0.7
	case "low":
		return 0.4
	default:
		return 0.5
	}
}

// CleanTags strips markup from each tag, trims, drops empties and
// de-duplicates preserving first-seen order
func CleanTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(htmltext.StripTags(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// difficulty cue sets for papers
var (
	advancedCues     = []string{"theorem", "proof", "convergence", "optimality", "complexity bound"}
	intermediateCues = []string{"ablation", "benchmark", "dataset", "experiment"}
)

// DifficultyHint guesses a difficulty label from paper text, empty when no
// cue matches
func DifficultyHint(text string) string {
	t := strings.ToLower(text)
	for _, cue := range advancedCues {
		if strings.Contains(t, cue) {
			return "Advanced"
		}
	}
	for _, cue := range intermediateCues {
		if strings.Contains(t, cue) {
			return "Intermediate"
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
