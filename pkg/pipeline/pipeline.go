// Package pipeline runs one ingestion pass: fetch all adapters, de-duplicate
// the batch, enrich news bodies, normalize and upsert. Adapter failures are
// collected as warnings while the run continues; store failures abort it.
package pipeline

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/edition"
	"github.com/YuqingLong18/aidaily/pkg/normalize"
	"github.com/YuqingLong18/aidaily/pkg/source"
)

// Store persists normalized items; implemented by pkg/repository
type Store interface {
	Upsert(ctx context.Context, item *domain.Item) (*domain.Item, error)
}

// Enricher optionally replaces news bodies with scraped full-text
type Enricher interface {
	Enrich(ctx context.Context, items []domain.RawItem) []domain.RawItem
}

// Normalizer converts raw items into canonical ones
type Normalizer interface {
	Normalize(raw domain.RawItem, w edition.Window) domain.Item
}

// Result reports what one ingestion run did
type Result struct {
	Fetched  int      // raw items returned by all adapters combined
	Deduped  int      // raw items dropped as in-batch duplicates
	Written  int      // items upserted (zero on dry runs)
	Warnings []string // per-adapter failures that did not abort the run
}

// Pipeline orchestrates one edition's ingestion
type Pipeline struct {
	adapters   []source.Adapter
	enricher   Enricher
	normalizer Normalizer
	store      Store
	dryRun     bool
}

// New creates a pipeline over the given adapters and collaborators
func New(adapters []source.Adapter, enricher Enricher, normalizer Normalizer, store Store, dryRun bool) *Pipeline {
	return &Pipeline{adapters: adapters, enricher: enricher, normalizer: normalizer, store: store, dryRun: dryRun}
}

// Run ingests one edition window. A failing adapter contributes a warning and
// zero items; a failing upsert aborts the whole run with the partial result.
func (p *Pipeline) Run(ctx context.Context, w edition.Window) (Result, error) {
	var res Result

	var batch []domain.RawItem
	for _, adapter := range p.adapters {
		items, err := adapter.Fetch(ctx, w)
		if err != nil {
			warning := fmt.Sprintf("adapter %s: %v", adapter.Name(), err)
			lgr.Printf("[WARN] %s", warning)
			res.Warnings = append(res.Warnings, warning)
			continue
		}
		lgr.Printf("[DEBUG] adapter %s returned %d items for %s", adapter.Name(), len(items), w.EditionDateLocal)
		batch = append(batch, items...)
	}
	res.Fetched = len(batch)

	deduped := dedupe(batch)
	res.Deduped = len(batch) - len(deduped)

	if p.enricher != nil {
		deduped = p.enricher.Enrich(ctx, deduped)
	}

	for _, raw := range deduped {
		item := p.normalizer.Normalize(raw, w)
		if p.dryRun {
			lgr.Printf("[INFO] dry run: would upsert %s (%s, rank %.4f)", item.Title, item.Section, item.RankScore)
			continue
		}
		if _, err := p.store.Upsert(ctx, &item); err != nil {
			return res, fmt.Errorf("ingest %s: %w", w.EditionDateLocal, err)
		}
		res.Written++
	}

	lgr.Printf("[INFO] edition %s (%s): fetched %d, deduped %d, written %d, warnings %d",
		w.EditionDateLocal, w.Timezone, res.Fetched, res.Deduped, res.Written, len(res.Warnings))
	return res, nil
}

// dedupe drops in-batch duplicates by dedup key, first occurrence wins. The
// store resolves cross-run duplicates; this only keeps one run from upserting
// the same item twice.
func dedupe(batch []domain.RawItem) []domain.RawItem {
	seen := make(map[string]bool, len(batch))
	out := make([]domain.RawItem, 0, len(batch))
	for _, raw := range batch {
		key := normalize.DedupKey(
			normalize.CanonicalizeURL(raw.SourceURL),
			normalize.CanonicalizeURL(raw.CanonicalURL),
			raw.Source, raw.ExternalID, raw.Title, raw.PublishedAt.UTC(),
		)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, raw)
	}
	return out
}
