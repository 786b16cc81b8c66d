package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/models"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		EngineID:     "test-cx",
		Timeout:      2 * time.Second,
		MaxResults:   5,
		MinRelevance: 1.0,
	}
}

func testRequest() provider.Request {
	return provider.Request{
		Provider: provider.IDWebSearch,
		Query: models.NormalizedQuery{
			Point:        geo.Point{Lat: 30.7046, Lon: 76.7179},
			Category:     "cafe",
			RadiusMeters: 3000,
		},
	}
}

func TestFetch_RanksAndDedupesSources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "test-cx", r.URL.Query().Get("cx"))
		w.Write([]byte(`{
			"items": [
				{"link": "https://blog.example.com/cafes", "title": "Best cafes", "snippet": "Cafe culture is growing."},
				{"link": "https://census.gov/retail", "title": "Retail statistics", "snippet": "Official retail data."},
				{"link": "https://blog.example.com/cafes", "title": "Best cafes", "snippet": "Duplicate link."},
				{"link": "https://example.com/report.pdf", "title": "PDF report", "snippet": "n/a", "mime": "application/pdf"}
			]
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(testConfig(server.URL), logger.NewNoOpLogger())

	resp, err := adapter.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	// PDF skipped, duplicate collapsed, .gov ranked first.
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "https://census.gov/retail", resp.Sources[0].URL)
	assert.Equal(t, "https://blog.example.com/cafes", resp.Sources[1].URL)
	assert.Empty(t, resp.Evidence)
	assert.Equal(t, "Official retail data.", resp.Narrative)
}

func TestFetch_MinRelevanceFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"items": [
				{"link": "https://blog.example.com/a", "title": "A", "snippet": "a"},
				{"link": "https://city.gov/zoning", "title": "Official zoning", "snippet": "z"}
			]
		}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MinRelevance = 1.2
	adapter := NewAdapter(cfg, logger.NewNoOpLogger())

	resp, err := adapter.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://city.gov/zoning", resp.Sources[0].URL)
}

func TestFetch_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewAdapter(testConfig(server.URL), logger.NewNoOpLogger())

	_, err := adapter.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderUnavailable))
}

func TestFetch_SlowServerIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	adapter := NewAdapter(cfg, logger.NewNoOpLogger())

	_, err := adapter.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderTimeout))
}

func TestFetch_EmptyResultsIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	adapter := NewAdapter(testConfig(server.URL), logger.NewNoOpLogger())

	resp, err := adapter.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Sources)
	assert.Empty(t, resp.Narrative)
}
