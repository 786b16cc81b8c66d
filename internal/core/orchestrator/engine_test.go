package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-advisor/internal/common/config"
	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/metrics"
	"business-advisor/internal/core/cachestore"
	"business-advisor/internal/core/evidence"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/core/normalize"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/core/ratelimit"
	"business-advisor/internal/core/report"
	"business-advisor/internal/models"
)

var mohali = geo.Point{Lat: 30.7046, Lon: 76.7179}

type stubGeocoder struct{}

func (stubGeocoder) Resolve(ctx context.Context, location string) (geo.Point, error) {
	return mohali, nil
}

// stubAdapter scripts per-call outcomes and counts invocations.
type stubAdapter struct {
	id    string
	calls int64
	fn    func(attempt int) (*provider.Response, error)
}

func (s *stubAdapter) ID() string { return s.id }

func (s *stubAdapter) Fetch(ctx context.Context, req provider.Request) (*provider.Response, error) {
	n := atomic.AddInt64(&s.calls, 1)
	return s.fn(int(n))
}

func (s *stubAdapter) callCount() int { return int(atomic.LoadInt64(&s.calls)) }

// hangingAdapter blocks until the run context expires.
type hangingAdapter struct{ id string }

func (h *hangingAdapter) ID() string { return h.id }

func (h *hangingAdapter) Fetch(ctx context.Context, req provider.Request) (*provider.Response, error) {
	<-ctx.Done()
	return nil, apperrors.NewProviderTimeoutError(h.id)
}

func okResponse(id string, entities ...models.Evidence) *provider.Response {
	return &provider.Response{
		Provider:    id,
		Evidence:    entities,
		RetrievedAt: time.Now().UTC(),
	}
}

func placeAt(name string, lat, lon float64) models.Evidence {
	return models.Evidence{
		Provider: provider.IDPlaces,
		Name:     name,
		Point:    geo.Point{Lat: lat, Lon: lon},
		Citations: []models.Citation{{
			Provider: provider.IDPlaces,
			URL:      "https://places.example.com/" + name,
			Title:    name,
		}},
		RetrievedAt: time.Now().UTC(),
	}
}

func testDedupConfig() config.DedupConfig {
	return config.DedupConfig{
		NameSimilarity:            0.82,
		CoordinateToleranceMeters: 30,
		ProviderPriority:          []string{"places", "property", "websearch", "ai"},
		CoordinateExempt:          []string{"property"},
	}
}

func newTestEngine(t *testing.T, adapters ...provider.Adapter) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	return newTestEngineFull(t, 5*time.Second, nil, adapters...)
}

func newTestEngineFull(t *testing.T, deadline time.Duration, limits map[string]config.RateLimitConfig, adapters ...provider.Adapter) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewTestLogger(t)
	registry := provider.NewRegistry(nil)
	for _, a := range adapters {
		registry.Register(a)
	}

	cacheCfg := config.CacheConfig{DefaultTTLMs: 60000, KeyPrefix: "advisor"}

	engine := NewEngine(
		normalize.New(stubGeocoder{}, log),
		registry,
		cachestore.New(rdb, log),
		ratelimit.New(limits, log),
		evidence.NewProcessor(testDedupConfig(), log),
		report.NewAssembler(log),
		cacheCfg,
		deadline,
		log,
	)
	return engine, mr
}

func testQuery() models.Query {
	return models.Query{Location: "Mohali", Category: "cafe", RadiusMeters: 3000}
}

func TestAnalyze_InvalidRadiusIsFatal(t *testing.T) {
	engine, _ := newTestEngine(t, &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces), nil
	}})

	q := testQuery()
	q.RadiusMeters = 0

	_, err := engine.Analyze(context.Background(), q)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidRadius))
}

func TestAnalyze_PartialFailureStillProducesReport(t *testing.T) {
	places := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)), nil
	}}
	ai := &stubAdapter{id: provider.IDAI, fn: func(int) (*provider.Response, error) {
		return nil, apperrors.NewProviderUnavailableError(provider.IDAI, assert.AnError)
	}}
	engine, _ := newTestEngine(t, places, ai)

	got, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	require.Len(t, got.Evidence, 1)
	assert.True(t, got.ProviderStatus[provider.IDPlaces].Ok)
	failed := got.ProviderStatus[provider.IDAI]
	assert.False(t, failed.Ok)
	assert.Equal(t, string(apperrors.ErrCodeProviderUnavailable), failed.ErrorCode)
	// AI down with only one other success caps confidence at LOW.
	assert.Equal(t, models.ConfidenceLow, got.Confidence)
}

func TestAnalyze_AllProvidersFailedIsFatal(t *testing.T) {
	boom := func(int) (*provider.Response, error) {
		return nil, apperrors.NewProviderUnavailableError(provider.IDPlaces, assert.AnError)
	}
	engine, _ := newTestEngine(t,
		&stubAdapter{id: provider.IDPlaces, fn: boom},
		&stubAdapter{id: provider.IDWebSearch, fn: boom},
	)

	_, err := engine.Analyze(context.Background(), testQuery())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAllProvidersFailed))
}

func TestAnalyze_TimeoutRetriesOnce(t *testing.T) {
	flaky := &stubAdapter{id: provider.IDPlaces, fn: func(call int) (*provider.Response, error) {
		if call == 1 {
			return nil, apperrors.NewProviderTimeoutError(provider.IDPlaces)
		}
		return okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)), nil
	}}
	engine, _ := newTestEngine(t, flaky)

	got, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, 2, flaky.callCount())
	st := got.ProviderStatus[provider.IDPlaces]
	assert.True(t, st.Ok)
	assert.Equal(t, 2, st.Attempts)
}

func TestAnalyze_UnavailableIsNotRetried(t *testing.T) {
	down := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return nil, apperrors.NewProviderUnavailableError(provider.IDPlaces, assert.AnError)
	}}
	ok := &stubAdapter{id: provider.IDWebSearch, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDWebSearch), nil
	}}
	engine, _ := newTestEngine(t, down, ok)

	got, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Equal(t, 1, down.callCount())
	assert.Equal(t, 1, got.ProviderStatus[provider.IDPlaces].Attempts)
}

func TestAnalyze_SecondRunServedFromCache(t *testing.T) {
	places := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)), nil
	}}
	engine, _ := newTestEngine(t, places)

	first, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)
	second, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	// The upstream was consulted exactly once across both runs.
	assert.Equal(t, 1, places.callCount())
	assert.False(t, first.ProviderStatus[provider.IDPlaces].CacheHit)
	assert.True(t, second.ProviderStatus[provider.IDPlaces].CacheHit)
	// Cached payload reproduces the same evidence.
	require.Len(t, second.Evidence, 1)
	assert.Equal(t, first.Evidence[0].Name, second.Evidence[0].Name)
}

func TestAnalyze_FreshnessForcesRefetch(t *testing.T) {
	places := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)), nil
	}}
	engine, _ := newTestEngine(t, places)

	_, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	q := testQuery()
	q.Freshness = time.Nanosecond
	_, err = engine.Analyze(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 2, places.callCount())
}

// A realistic mixed run: AI times out on both attempts, the places provider
// returns twelve entities of which nine sit inside the 3 km radius, and web
// search contributes context. The report degrades but still delivers.
func TestAnalyze_MixedRunDegrades(t *testing.T) {
	var entities []models.Evidence
	// Nine close to center, roughly inside 3 km.
	inside := []geo.Point{
		{Lat: 30.7046, Lon: 76.7179}, {Lat: 30.7100, Lon: 76.7200},
		{Lat: 30.6990, Lon: 76.7150}, {Lat: 30.7080, Lon: 76.7100},
		{Lat: 30.7150, Lon: 76.7250}, {Lat: 30.6950, Lon: 76.7220},
		{Lat: 30.7046, Lon: 76.7400}, {Lat: 30.7200, Lon: 76.7179},
		{Lat: 30.6900, Lon: 76.7179},
	}
	names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel", "India"}
	for i, p := range inside {
		entities = append(entities, placeAt(names[i]+" Cafe", p.Lat, p.Lon))
	}
	// Three well outside the radius.
	entities = append(entities,
		placeAt("Juliet Cafe", 30.7800, 76.7179),
		placeAt("Kilo Cafe", 30.6200, 76.7179),
		placeAt("Lima Cafe", 30.7046, 76.8200),
	)

	places := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces, entities...), nil
	}}
	web := &stubAdapter{id: provider.IDWebSearch, fn: func(int) (*provider.Response, error) {
		resp := okResponse(provider.IDWebSearch)
		resp.Sources = []models.Citation{{
			Provider: provider.IDWebSearch,
			URL:      "https://city.gov/retail",
			Title:    "Retail overview",
		}}
		return resp, nil
	}}
	ai := &stubAdapter{id: provider.IDAI, fn: func(int) (*provider.Response, error) {
		return nil, apperrors.NewProviderTimeoutError(provider.IDAI)
	}}
	engine, _ := newTestEngine(t, places, web, ai)

	got, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	assert.Len(t, got.Evidence, 9)
	assert.Equal(t, 2, ai.callCount())
	aiStatus := got.ProviderStatus[provider.IDAI]
	assert.False(t, aiStatus.Ok)
	assert.Equal(t, string(apperrors.ErrCodeProviderTimeout), aiStatus.ErrorCode)
	assert.Equal(t, 2, aiStatus.Attempts)
	// AI failed but two other providers answered.
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
	// Web search citation survives into the report.
	found := false
	for _, c := range got.Citations {
		if c.URL == "https://city.gov/retail" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyze_RunDeadlineDegradesHungProvider(t *testing.T) {
	places := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)), nil
	}}
	ai := &hangingAdapter{id: provider.IDAI}
	engine, _ := newTestEngineFull(t, 300*time.Millisecond, nil, places, ai)

	start := time.Now()
	got, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)
	// The run returns at the deadline, not whenever the hung provider does.
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.True(t, got.ProviderStatus[provider.IDPlaces].Ok)
	st := got.ProviderStatus[provider.IDAI]
	assert.False(t, st.Ok)
	assert.Equal(t, string(apperrors.ErrCodeProviderTimeout), st.ErrorCode)

	require.Len(t, got.Evidence, 1)
	assert.Equal(t, models.ConfidenceLow, got.Confidence)
}

func TestCollect_BufferedResultBeatsDeadline(t *testing.T) {
	engine, _ := newTestEngine(t)
	adapters := []provider.Adapter{
		&stubAdapter{id: provider.IDPlaces},
		&stubAdapter{id: provider.IDAI},
	}

	// One result is already buffered when the context is long expired.
	results := make(chan providerResult, len(adapters))
	results <- providerResult{
		id:     provider.IDPlaces,
		resp:   okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)),
		status: models.ProviderStatus{Provider: provider.IDPlaces, Ok: true},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, responses := engine.collect(ctx, adapters, results)

	// The buffered success is kept; only the silent provider is charged.
	assert.True(t, status[provider.IDPlaces].Ok)
	require.Contains(t, responses, provider.IDPlaces)
	assert.Equal(t, string(apperrors.ErrCodeProviderTimeout), status[provider.IDAI].ErrorCode)
	assert.NotContains(t, responses, provider.IDAI)
}

func TestAnalyze_RateLimitRejectionCountedOnce(t *testing.T) {
	places := &stubAdapter{id: provider.IDPlaces, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDPlaces, placeAt("Cafe Nirvana", 30.7046, 76.7179)), nil
	}}
	web := &stubAdapter{id: provider.IDWebSearch, fn: func(int) (*provider.Response, error) {
		return okResponse(provider.IDWebSearch), nil
	}}
	limits := map[string]config.RateLimitConfig{
		provider.IDPlaces: {Rate: 0.001, Burst: 1, MaxWaitMs: 1},
	}
	engine, _ := newTestEngineFull(t, 5*time.Second, limits, places, web)

	// Drain the only token so the run's acquire is rejected outright.
	require.True(t, engine.limiter.Allow(provider.IDPlaces))

	before := testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues(provider.IDPlaces))
	got, err := engine.Analyze(context.Background(), testQuery())
	require.NoError(t, err)

	st := got.ProviderStatus[provider.IDPlaces]
	assert.False(t, st.Ok)
	assert.Equal(t, string(apperrors.ErrCodeRateLimitExceeded), st.ErrorCode)
	assert.Equal(t, 0, places.callCount())

	after := testutil.ToFloat64(metrics.RateLimitRejections.WithLabelValues(provider.IDPlaces))
	assert.Equal(t, float64(1), after-before)
}
