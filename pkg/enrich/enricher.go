// Package enrich optionally replaces news items' body text with scraped
// full-text. Enrichment degrades, never fails: a scrape error keeps the item
// and lowers its timestamp confidence.
package enrich

import (
	"context"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/YuqingLong18/aidaily/pkg/domain"
)

// Scraper retrieves readable article text for a URL; implemented by
// pkg/content
type Scraper interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Config holds enrichment settings
type Config struct {
	Enabled       bool
	MaxToProcess  int
	MaxConcurrent int
}

// Enricher applies full-text scraping to a capped number of news items
type Enricher struct {
	scraper Scraper
	cfg     Config
}

// New creates an enricher
func New(scraper Scraper, cfg Config) *Enricher {
	if cfg.MaxToProcess == 0 {
		cfg.MaxToProcess = 40
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = 5
	}
	return &Enricher{scraper: scraper, cfg: cfg}
}

// Enrich returns items with full-text content where scraping succeeded. Only
// non-paper items are processed, at most MaxToProcess of them in input
// order; everything else passes through unchanged. Scrapes run concurrently
// in a bounded pool, each writing its own slot.
func (e *Enricher) Enrich(ctx context.Context, items []domain.RawItem) []domain.RawItem {
	if !e.cfg.Enabled || len(items) == 0 {
		return items
	}

	out := make([]domain.RawItem, len(items))
	copy(out, items)

	var selected []int
	for i, item := range items {
		if item.ItemType == domain.TypePaper {
			continue
		}
		selected = append(selected, i)
		if len(selected) >= e.cfg.MaxToProcess {
			break
		}
	}
	if len(selected) == 0 {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for _, idx := range selected {
		g.Go(func() error {
			text, err := e.scraper.Extract(gctx, out[idx].SourceURL)
			switch {
			case err != nil:
				// scrape failures are common; keep the item, lower confidence
				lgr.Printf("[DEBUG] enrichment failed for %s: %v", out[idx].SourceURL, err)
				out[idx].TimestampConfidence = domain.ConfidenceLow
			case text != "":
				out[idx].ContentText = text
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return out
}
