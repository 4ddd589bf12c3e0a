package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuqingLong18/aidaily/pkg/classify"
	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/edition"
	"github.com/YuqingLong18/aidaily/pkg/normalize"
	"github.com/YuqingLong18/aidaily/pkg/summarize"
)

type stubAdapter struct {
	name  string
	items []domain.RawItem
	err   error
}

func (a *stubAdapter) Name() string { return a.name }
func (a *stubAdapter) Fetch(_ context.Context, _ edition.Window) ([]domain.RawItem, error) {
	return a.items, a.err
}

type memStore struct {
	upserts []domain.Item
	err     error
}

func (s *memStore) Upsert(_ context.Context, item *domain.Item) (*domain.Item, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.upserts = append(s.upserts, *item)
	return item, nil
}

func testWindow(t *testing.T) edition.Window {
	t.Helper()
	w, err := edition.WindowFor("2024-03-02", "Asia/Shanghai")
	require.NoError(t, err)
	return w
}

func rawNews(url, title string) domain.RawItem {
	return domain.RawItem{
		ItemType:          domain.TypeNews,
		Title:             title,
		Source:            "example-news",
		SourceURL:         url,
		SummaryText:       "A product launch announcement with enough detail to summarize properly.",
		PublishedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceReliability: domain.ReliabilityMedium,
	}
}

func TestPipeline_Run(t *testing.T) {
	store := &memStore{}
	normalizer := normalize.New(classify.Keyword{}, summarize.Heuristic{})
	p := New(nil, nil, normalizer, store, false)
	p.adapters = append(p.adapters,
		&stubAdapter{name: "a", items: []domain.RawItem{
			rawNews("https://example.com/one?utm_source=rss", "First story"),
			rawNews("https://example.com/two", "Second story"),
		}},
		&stubAdapter{name: "b", items: []domain.RawItem{
			rawNews("https://example.com/one", "First story again"),
		}},
	)

	res, err := p.Run(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 1, res.Deduped, "canonicalized URLs collapse tracking-param variants")
	assert.Equal(t, 2, res.Written)
	assert.Empty(t, res.Warnings)

	require.Len(t, store.upserts, 2)
	assert.Equal(t, "First story", store.upserts[0].Title)
	assert.Equal(t, "2024-03-02", store.upserts[0].EditionDateLocal)
	assert.Equal(t, "Asia/Shanghai", store.upserts[0].EditionTimezone)
}

func TestPipeline_Run_AdapterFailureIsWarning(t *testing.T) {
	store := &memStore{}
	normalizer := normalize.New(classify.Keyword{}, summarize.Heuristic{})
	p := New(nil, nil, normalizer, store, false)
	p.adapters = append(p.adapters,
		&stubAdapter{name: "broken", err: errors.New("boom")},
		&stubAdapter{name: "fine", items: []domain.RawItem{rawNews("https://example.com/x", "Survivor")}},
	)

	res, err := p.Run(context.Background(), testWindow(t))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "broken")
	assert.Equal(t, 1, res.Written)
}

func TestPipeline_Run_StoreFailureAborts(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	normalizer := normalize.New(classify.Keyword{}, summarize.Heuristic{})
	p := New(nil, nil, normalizer, store, false)
	p.adapters = append(p.adapters,
		&stubAdapter{name: "a", items: []domain.RawItem{rawNews("https://example.com/x", "Doomed")}},
	)

	_, err := p.Run(context.Background(), testWindow(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPipeline_Run_DryRunWritesNothing(t *testing.T) {
	store := &memStore{}
	normalizer := normalize.New(classify.Keyword{}, summarize.Heuristic{})
	p := New(nil, nil, normalizer, store, true)
	p.adapters = append(p.adapters,
		&stubAdapter{name: "a", items: []domain.RawItem{rawNews("https://example.com/x", "Preview only")}},
	)

	res, err := p.Run(context.Background(), testWindow(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 0, res.Written)
	assert.Empty(t, store.upserts)
}
