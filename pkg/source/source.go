// Package source contains the feed adapters that turn external feeds into
// RawItems scoped to an edition window.
//
// All adapters share a known completeness limitation: they fetch one
// fixed-size page of results and filter it by the window afterwards, so
// in-window entries beyond the page boundary are missed. Callers get the
// filtered page, not a guaranteed "everything in window".
package source

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/edition"
)

// Fetcher retrieves a URL body as text; implemented by pkg/fetch
type Fetcher interface {
	Text(ctx context.Context, url string) (string, error)
}

// Adapter converts one external feed into RawItems within the window. An
// adapter returns an error only for whole-feed failures (fetch or parse);
// individual malformed entries are dropped silently.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, w edition.Window) ([]domain.RawItem, error)
}

// publishedTime resolves an entry's publish time, falling back to the
// updated timestamp when published is absent
func publishedTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed
	}
	return entry.UpdatedParsed
}
