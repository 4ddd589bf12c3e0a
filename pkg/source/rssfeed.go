package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/edition"
	"github.com/YuqingLong18/aidaily/pkg/normalize"
)

// FeedConfig configures one generic RSS/Atom feed adapter
type FeedConfig struct {
	Name        string
	URL         string
	MaxItems    int
	Reliability string
	ItemType    domain.ItemType
}

// FeedAdapter maps a generic RSS/Atom feed to RawItems. Entries missing a
// title or link are dropped, publish time falls back to the updated
// timestamp, and everything outside the window is filtered out.
type FeedAdapter struct {
	fetcher Fetcher
	cfg     FeedConfig
}

// NewFeed creates a generic feed adapter
func NewFeed(fetcher Fetcher, cfg FeedConfig) *FeedAdapter {
	if cfg.MaxItems == 0 {
		cfg.MaxItems = 100
	}
	if cfg.ItemType == "" {
		cfg.ItemType = domain.TypeNews
	}
	return &FeedAdapter{fetcher: fetcher, cfg: cfg}
}

// Name returns the configured source name
func (f *FeedAdapter) Name() string { return f.cfg.Name }

// Fetch retrieves the feed and maps up to MaxItems in-window entries
func (f *FeedAdapter) Fetch(ctx context.Context, w edition.Window) ([]domain.RawItem, error) {
	body, err := f.fetcher.Text(ctx, f.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", f.cfg.Name, err)
	}

	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.cfg.Name, err)
	}

	entries := feed.Items
	if len(entries) > f.cfg.MaxItems {
		entries = entries[:f.cfg.MaxItems]
	}

	items := make([]domain.RawItem, 0, len(entries))
	for _, entry := range entries {
		title := strings.Join(strings.Fields(entry.Title), " ")
		if title == "" || entry.Link == "" {
			continue
		}

		published := publishedTime(entry)
		if published == nil {
			continue
		}
		if !w.Contains(*published) {
			continue
		}

		var tags []string
		for _, c := range entry.Categories {
			if c = strings.TrimSpace(c); c != "" {
				tags = append(tags, c)
			}
		}

		text := strings.TrimSpace(entry.Description)
		if text == "" {
			text = strings.TrimSpace(entry.Content)
		}

		sourceURL := normalize.CanonicalizeURL(entry.Link)
		items = append(items, domain.RawItem{
			ItemType:            f.cfg.ItemType,
			Source:              f.cfg.Name,
			SourceURL:           sourceURL,
			CanonicalURL:        sourceURL,
			Title:               title,
			PublishedAt:         published.UTC(),
			SummaryText:         text,
			Tags:                tags,
			SourceReliability:   f.cfg.Reliability,
			TimestampPrecision:  domain.PrecisionExact,
			TimestampConfidence: domain.ConfidenceHigh,
		})
	}
	return items, nil
}
