package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuqingLong18/aidaily/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := New(context.Background(), Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeTestItem(title string) *domain.Item {
	return &domain.Item{
		ID:                  uuid.New(),
		ItemType:            domain.TypeNews,
		Section:             domain.SectionProductTech,
		Title:               title,
		Source:              "example-news",
		SourceURL:           "https://example.com/" + uuid.NewString(),
		CanonicalURL:        "https://example.com/canonical/" + uuid.NewString(),
		PublishedAt:         time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		EditionDateLocal:    "2024-03-02",
		EditionTimezone:     "Asia/Shanghai",
		Tags:                []string{"ai"},
		Difficulty:          "Beginner",
		SummaryBullets:      []string{"a first bullet about the item"},
		SourceReliability:   domain.ReliabilityMedium,
		TimestampPrecision:  domain.PrecisionExact,
		TimestampConfidence: domain.ConfidenceHigh,
		RankScore:           0.5,
	}
}

func TestStore_UpsertInsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := makeTestItem("fresh item")
	stored, err := store.Upsert(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, item.ID, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Equal(t, stored.CreatedAt, stored.UpdatedAt)

	got, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh item", got.Title)
	assert.Equal(t, []string{"ai"}, got.Tags)
	assert.Equal(t, []string{"a first bullet about the item"}, got.SummaryBullets)
}

func TestStore_UpsertMergePreservesIdentityAndEdition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := makeTestItem("original title")
	stored, err := store.Upsert(ctx, first)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	// same source_url, new identity and different edition assignment
	second := makeTestItem("updated title")
	second.SourceURL = first.SourceURL
	second.EditionDateLocal = "2024-03-05"
	second.EditionTimezone = "UTC"
	second.RankScore = 0.9

	merged, err := store.Upsert(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, stored.ID, merged.ID, "merge keeps the existing id")
	assert.Equal(t, stored.CreatedAt, merged.CreatedAt, "merge keeps created_at")
	assert.Equal(t, "2024-03-02", merged.EditionDateLocal, "edition assignment is immutable")
	assert.Equal(t, "Asia/Shanghai", merged.EditionTimezone)
	assert.Equal(t, "updated title", merged.Title)
	assert.True(t, merged.UpdatedAt.After(stored.UpdatedAt))

	count, err := store.CountEdition(ctx, "2024-03-02", "Asia/Shanghai")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "merge must not create a second row")
}

func TestStore_UpsertResolvesByExternalID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := makeTestItem("arxiv paper v1")
	first.ItemType = domain.TypePaper
	first.Source = "arxiv"
	first.ExternalID = "2403.01234"
	_, err := store.Upsert(ctx, first)
	require.NoError(t, err)

	second := makeTestItem("arxiv paper v2")
	second.ItemType = domain.TypePaper
	second.Source = "arxiv"
	second.ExternalID = "2403.01234"
	// different source_url and canonical_url, external id still matches
	merged, err := store.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)

	count, err := store.CountEdition(ctx, "2024-03-02", "Asia/Shanghai")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_UpsertResolvesByCanonicalURL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := makeTestItem("syndicated story")
	_, err := store.Upsert(ctx, first)
	require.NoError(t, err)

	second := makeTestItem("syndicated story, other mirror")
	second.CanonicalURL = first.CanonicalURL
	merged, err := store.Upsert(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
}

func TestStore_ListEditionOrderingAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	low := makeTestItem("low rank")
	low.RankScore = 0.2
	mid := makeTestItem("mid rank")
	mid.RankScore = 0.5
	high := makeTestItem("high rank")
	high.RankScore = 0.8
	other := makeTestItem("other section")
	other.Section = domain.SectionMarketPolicy
	other.RankScore = 0.9

	for _, item := range []*domain.Item{low, mid, high, other} {
		_, err := store.Upsert(ctx, item)
		require.NoError(t, err)
	}

	items, err := store.ListEdition(ctx, "2024-03-02", "Asia/Shanghai", ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, "other section", items[0].Title)
	assert.Equal(t, "high rank", items[1].Title)
	assert.Equal(t, "mid rank", items[2].Title)
	assert.Equal(t, "low rank", items[3].Title)

	filtered, err := store.ListEdition(ctx, "2024-03-02", "Asia/Shanghai",
		ListOptions{Section: domain.SectionProductTech, Limit: 2})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, "high rank", filtered[0].Title)
	assert.Equal(t, "mid rank", filtered[1].Title)
}

func TestStore_ListEditionTimezoneEquivalence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	shanghai := makeTestItem("shanghai row")
	hongkong := makeTestItem("hong kong row")
	hongkong.EditionTimezone = "Asia/Hong_Kong"
	berlin := makeTestItem("berlin row")
	berlin.EditionTimezone = "Europe/Berlin"

	for _, item := range []*domain.Item{shanghai, hongkong, berlin} {
		_, err := store.Upsert(ctx, item)
		require.NoError(t, err)
	}

	items, err := store.ListEdition(ctx, "2024-03-02", "Asia/Shanghai", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 2, "UTC+8 identifiers are interchangeable on reads")

	items, err = store.ListEdition(ctx, "2024-03-02", "Europe/Berlin", ListOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "berlin row", items[0].Title)
}

func TestStore_ListEditionDates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := makeTestItem("older edition")
	older.EditionDateLocal = "2024-03-01"
	newer := makeTestItem("newer edition")
	hk := makeTestItem("hong kong edition")
	hk.EditionDateLocal = "2024-03-03"
	hk.EditionTimezone = "Asia/Hong_Kong"
	foreign := makeTestItem("foreign edition")
	foreign.EditionDateLocal = "2024-03-04"
	foreign.EditionTimezone = "Europe/Berlin"

	for _, item := range []*domain.Item{older, newer, hk, foreign} {
		_, err := store.Upsert(ctx, item)
		require.NoError(t, err)
	}

	dates, err := store.ListEditionDates(ctx, "Asia/Shanghai", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-03", "2024-03-02", "2024-03-01"}, dates)

	dates, err = store.ListEditionDates(ctx, "Asia/Shanghai", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-03", "2024-03-02"}, dates)
}

func TestStore_UpdateCuration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := makeTestItem("to curate")
	stored, err := store.Upsert(ctx, item)
	require.NoError(t, err)

	stored.Section = domain.SectionMarketPolicy
	stored.RankScore = 0.95
	stored.Tags = []string{"policy", "regulation"}
	stored.Title = "renamed, must not stick"
	require.NoError(t, store.UpdateCuration(ctx, stored))

	got, err := store.GetItem(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SectionMarketPolicy, got.Section)
	assert.InDelta(t, 0.95, got.RankScore, 1e-9)
	assert.Equal(t, []string{"policy", "regulation"}, got.Tags)
	assert.Equal(t, "to curate", got.Title, "curation never rewrites titles")
}

func TestStore_GetItemNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetItem(context.Background(), uuid.New())
	assert.Error(t, err)
}
