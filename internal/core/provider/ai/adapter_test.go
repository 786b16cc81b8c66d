package ai

import (
	"context"
	"encoding/json"
	"fmt"
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
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		Timeout:     2 * time.Second,
		Temperature: 0.3,
	}
}

func testRequest() provider.Request {
	return provider.Request{
		Provider: provider.IDAI,
		Query: models.NormalizedQuery{
			Point:        geo.Point{Lat: 30.7046, Lon: 76.7179},
			Category:     "cafe",
			RadiusMeters: 3000,
		},
	}
}

func chatReply(content string) string {
	reply := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

func TestFetch_RendersValidatedVerdict(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, chatReply(`{
			"pros": ["High footfall", "Growing area"],
			"cons": ["Two competitors nearby"],
			"suggestions": ["Open near the tech park"],
			"recommendation": "Favorable with differentiation.",
			"sources": ["https://example.com/retail-study"]
		}`))
	}))
	defer server.Close()

	adapter := NewAdapter(testConfig(server.URL), logger.NewNoOpLogger())

	resp, err := adapter.Fetch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	assert.Equal(t, "json_object", gotBody.ResponseFormat.Type)
	assert.InDelta(t, 0.3, gotBody.Temperature, 1e-9)

	assert.Contains(t, resp.Narrative, "Favorable with differentiation.")
	assert.Contains(t, resp.Narrative, "Pros:")
	assert.Contains(t, resp.Narrative, "- High footfall")
	assert.Contains(t, resp.Narrative, "Cons:")
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://example.com/retail-study", resp.Sources[0].URL)
	assert.Equal(t, provider.IDAI, resp.Sources[0].Provider)
}

func TestFetch_SchemaViolationIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Missing required "recommendation".
		fmt.Fprint(w, chatReply(`{"pros": ["a"], "cons": ["b"]}`))
	}))
	defer server.Close()

	adapter := NewAdapter(testConfig(server.URL), logger.NewNoOpLogger())

	_, err := adapter.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderInvalidResponse))
}

func TestFetch_NonJSONContentIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(`I think it is a great idea!`))
	}))
	defer server.Close()

	adapter := NewAdapter(testConfig(server.URL), logger.NewNoOpLogger())

	_, err := adapter.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderInvalidResponse))
}

func TestFetch_RateLimitedUpstreamIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
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
		fmt.Fprint(w, chatReply(`{"pros": [], "cons": [], "recommendation": "x"}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	adapter := NewAdapter(cfg, logger.NewNoOpLogger())

	_, err := adapter.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProviderTimeout))
}
