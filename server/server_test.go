package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuqingLong18/aidaily/pkg/domain"
	"github.com/YuqingLong18/aidaily/pkg/repository"
)

type stubStore struct {
	items   []*domain.Item
	dates   []string
	pingErr error

	listDate string
	listTZ   string
}

func (s *stubStore) ListEdition(_ context.Context, date, tz string, _ repository.ListOptions) ([]*domain.Item, error) {
	s.listDate, s.listTZ = date, tz
	return s.items, nil
}

func (s *stubStore) ListEditionDates(_ context.Context, _ string, _ int) ([]string, error) {
	return s.dates, nil
}

func (s *stubStore) CountEdition(_ context.Context, _, _ string) (int, error) {
	return len(s.items), nil
}

func (s *stubStore) Ping(_ context.Context) error { return s.pingErr }

type stubConfig struct{}

func (stubConfig) GetServerConfig() (string, time.Duration) { return ":0", time.Second }

func sectionItem(title string, section domain.Section) *domain.Item {
	return &domain.Item{
		ItemType:  domain.TypeNews,
		Section:   section,
		Title:     title,
		Source:    "example-news",
		SourceURL: "https://example.com/" + title,
	}
}

func newTestServer(store Store) *httptest.Server {
	s := New(stubConfig{}, store, "Asia/Hong_Kong", "test", false)
	return httptest.NewServer(s.router)
}

func TestServer_Health(t *testing.T) {
	store := &stubStore{}
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_Health_StorageDown(t *testing.T) {
	store := &stubStore{pingErr: errors.New("no database")}
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_Editions(t *testing.T) {
	store := &stubStore{
		dates: []string{"2024-03-03", "2024-03-02"},
		items: []*domain.Item{sectionItem("counted", domain.SectionProductTech)},
	}
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/editions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Timezone string `json:"timezone"`
		Editions []struct {
			EditionDateLocal string `json:"edition_date_local"`
			UTCDate          string `json:"utc_date"`
			UTCStart         string `json:"utc_start"`
			UTCEnd           string `json:"utc_end"`
			Items            int    `json:"items"`
		} `json:"editions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Asia/Hong_Kong", body.Timezone)
	require.Len(t, body.Editions, 2)
	assert.Equal(t, "2024-03-03", body.Editions[0].EditionDateLocal)
	assert.Equal(t, "2024-03-02", body.Editions[0].UTCDate, "window spans the prior UTC day")
	assert.Equal(t, "2024-03-02T00:00:00Z", body.Editions[0].UTCStart)
	assert.Equal(t, "2024-03-02T23:59:59Z", body.Editions[0].UTCEnd)
	assert.Equal(t, 1, body.Editions[0].Items)
}

func TestServer_Edition(t *testing.T) {
	store := &stubStore{items: []*domain.Item{
		sectionItem("paper one", domain.SectionAIForScience),
		sectionItem("news one", domain.SectionProductTech),
		sectionItem("news two", domain.SectionProductTech),
	}}
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/editions/2024-03-02")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		EditionDateLocal string `json:"edition_date_local"`
		Timezone         string `json:"timezone"`
		TotalItems       int    `json:"total_items"`
		Sections         []struct {
			Section string        `json:"section"`
			Items   []domain.Item `json:"items"`
		} `json:"sections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "2024-03-02", body.EditionDateLocal)
	assert.Equal(t, 3, body.TotalItems)
	require.Len(t, body.Sections, 5, "all sections present even when empty")
	assert.Equal(t, "ai_for_science", body.Sections[0].Section)
	require.Len(t, body.Sections[0].Items, 1)
	assert.Len(t, body.Sections[3].Items, 2)
	assert.Empty(t, body.Sections[2].Items)

	assert.Equal(t, "2024-03-02", store.listDate)
	assert.Equal(t, "Asia/Hong_Kong", store.listTZ)
}

func TestServer_Edition_TimezoneOverride(t *testing.T) {
	store := &stubStore{}
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/editions/2024-03-02?tz=Asia/Shanghai")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Asia/Shanghai", store.listTZ)
}

func TestServer_Edition_BadDate(t *testing.T) {
	store := &stubStore{}
	ts := newTestServer(store)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/editions/03-02-2024")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
