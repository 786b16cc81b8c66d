// Package orchestrator fans a normalized query out to every applicable
// provider, funnels each fetch through the rate limiter and the cache, and
// degrades per-provider failures into report status instead of aborting.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"business-advisor/internal/common/config"
	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/metrics"
	"business-advisor/internal/core/cachestore"
	"business-advisor/internal/core/evidence"
	"business-advisor/internal/core/normalize"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/core/ratelimit"
	"business-advisor/internal/core/report"
	"business-advisor/internal/models"
)

const (
	// maxAttempts bounds the per-provider fetch loop: one retry, and only
	// after a timeout.
	maxAttempts = 2
	baseBackoff = 200 * time.Millisecond
	jitterSpan  = 100 * time.Millisecond
)

type Engine struct {
	normalizer *normalize.Normalizer
	registry   *provider.Registry
	cache      *cachestore.Store
	limiter    *ratelimit.Limiter
	processor  *evidence.Processor
	assembler  *report.Assembler
	cacheCfg   config.CacheConfig
	deadline   time.Duration
	logger     logger.Logger
}

func NewEngine(
	normalizer *normalize.Normalizer,
	registry *provider.Registry,
	cache *cachestore.Store,
	limiter *ratelimit.Limiter,
	processor *evidence.Processor,
	assembler *report.Assembler,
	cacheCfg config.CacheConfig,
	deadline time.Duration,
	log logger.Logger,
) *Engine {
	return &Engine{
		normalizer: normalizer,
		registry:   registry,
		cache:      cache,
		limiter:    limiter,
		processor:  processor,
		assembler:  assembler,
		cacheCfg:   cacheCfg,
		deadline:   deadline,
		logger:     log.With(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Analyze runs the full pipeline for a raw query. Validation failures are
// fatal; provider failures degrade into the report's status section. The
// only post-normalization fatal outcome is every provider failing.
func (e *Engine) Analyze(ctx context.Context, q models.Query) (*models.FeasibilityReport, error) {
	nq, err := e.normalizer.Normalize(ctx, q)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, q, nq)
}

// providerResult is one adapter's contribution to a run.
type providerResult struct {
	id     string
	resp   *provider.Response
	status models.ProviderStatus
}

func (e *Engine) run(ctx context.Context, q models.Query, nq models.NormalizedQuery) (*models.FeasibilityReport, error) {
	if e.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deadline)
		defer cancel()
	}

	adapters := e.registry.Select(nq.Category)
	if len(adapters) == 0 {
		return nil, apperrors.NewAllProvidersFailedError("no providers registered for category " + nq.Category)
	}

	results := make(chan providerResult, len(adapters))
	for _, a := range adapters {
		go func(a provider.Adapter) {
			results <- e.fetchOne(ctx, a, q, nq)
		}(a)
	}

	status, responses := e.collect(ctx, adapters, results)
	return e.finish(q, nq, status, responses)
}

// collect gathers one result per adapter until the run context expires.
// On expiry, results already buffered still count; only providers that
// truly never reported are charged a timeout.
func (e *Engine) collect(ctx context.Context, adapters []provider.Adapter, results <-chan providerResult) (map[string]models.ProviderStatus, map[string]*provider.Response) {
	status := make(map[string]models.ProviderStatus, len(adapters))
	responses := make(map[string]*provider.Response, len(adapters))
	record := func(r providerResult) {
		status[r.id] = r.status
		if r.resp != nil {
			responses[r.id] = r.resp
		}
	}

	for len(status) < len(adapters) {
		select {
		case r := <-results:
			record(r)
		case <-ctx.Done():
			drained := true
			for drained && len(status) < len(adapters) {
				select {
				case r := <-results:
					record(r)
				default:
					drained = false
				}
			}
			for _, a := range adapters {
				if _, reported := status[a.ID()]; !reported {
					status[a.ID()] = models.ProviderStatus{
						Provider:  a.ID(),
						ErrorCode: string(apperrors.ErrCodeProviderTimeout),
						Message:   "run deadline exceeded",
						Attempts:  1,
					}
				}
			}
			return status, responses
		}
	}

	return status, responses
}

// fetchOne runs one provider through the cache and, on a miss, the rate
// limiter and the bounded retry loop. It never returns an error: failures
// become the status entry.
func (e *Engine) fetchOne(ctx context.Context, a provider.Adapter, q models.Query, nq models.NormalizedQuery) providerResult {
	id := a.ID()
	start := time.Now()
	key := fmt.Sprintf("%s:%s:%s", e.cacheCfg.KeyPrefix, id, nq.CacheKey)
	attempts := 0

	fetch := func(fctx context.Context) ([]byte, error) {
		var lastErr error
		for attempt := 0; attempt < maxAttempts; attempt++ {
			attempts = attempt + 1
			if attempt > 0 {
				select {
				case <-time.After(backoff(attempt)):
				case <-fctx.Done():
					return nil, apperrors.NewProviderTimeoutError(id)
				}
			}

			if err := e.limiter.Acquire(fctx, id); err != nil {
				return nil, apperrors.Normalize(id, err)
			}

			resp, err := a.Fetch(fctx, provider.Request{Provider: id, Query: nq, Attempt: attempt})
			if err == nil {
				return json.Marshal(resp)
			}

			lastErr = apperrors.Normalize(id, err)
			if !apperrors.ShouldRetry(lastErr, attempt, maxAttempts) {
				break
			}
			e.logger.Warn("provider fetch retrying", map[string]interface{}{
				"provider": id,
				"attempt":  attempt + 1,
				"error":    lastErr.Error(),
			})
		}
		return nil, lastErr
	}

	payload, cacheHit, err := e.cache.GetOrFetch(ctx, id, key, e.cacheCfg.ProviderTTL(id), q.Freshness, fetch)
	duration := time.Since(start)
	metrics.ProviderFetchDuration.WithLabelValues(id).Observe(duration.Seconds())

	if cacheHit {
		attempts = 0
	}

	if err != nil {
		std := apperrors.Normalize(id, err)
		metrics.ProviderFetches.WithLabelValues(id, strings.ToLower(string(std.Code))).Inc()
		e.logger.Warn("provider degraded", map[string]interface{}{
			"provider":  id,
			"errorCode": string(std.Code),
			"attempts":  attempts,
		})
		return providerResult{id: id, status: models.ProviderStatus{
			Provider:  id,
			ErrorCode: string(std.Code),
			Message:   std.Message,
			Attempts:  attempts,
			Duration:  duration,
		}}
	}

	var resp provider.Response
	if uerr := json.Unmarshal(payload, &resp); uerr != nil {
		std := apperrors.NewProviderInvalidResponseError(id, uerr.Error())
		metrics.ProviderFetches.WithLabelValues(id, "invalid_payload").Inc()
		return providerResult{id: id, status: models.ProviderStatus{
			Provider:  id,
			ErrorCode: string(std.Code),
			Message:   std.Message,
			Attempts:  attempts,
			CacheHit:  cacheHit,
			Duration:  duration,
		}}
	}

	metrics.ProviderFetches.WithLabelValues(id, "success").Inc()
	return providerResult{
		id:   id,
		resp: &resp,
		status: models.ProviderStatus{
			Provider: id,
			Ok:       true,
			Attempts: attempts,
			CacheHit: cacheHit,
			Duration: duration,
		},
	}
}

// finish aggregates whatever the providers produced into the report, or
// fails the run when nothing succeeded.
func (e *Engine) finish(q models.Query, nq models.NormalizedQuery, status map[string]models.ProviderStatus, responses map[string]*provider.Response) (*models.FeasibilityReport, error) {
	if len(responses) == 0 {
		codes := make([]string, 0, len(status))
		for id, s := range status {
			codes = append(codes, id+"="+s.ErrorCode)
		}
		return nil, apperrors.NewAllProvidersFailedError(strings.Join(codes, ", "))
	}

	var raw []models.Evidence
	var sources []models.Citation
	narrative := ""
	for _, id := range []string{provider.IDAI, provider.IDWebSearch, provider.IDPlaces, provider.IDProperty} {
		resp, ok := responses[id]
		if !ok {
			continue
		}
		raw = append(raw, resp.Evidence...)
		sources = append(sources, resp.Sources...)
		if narrative == "" && resp.Narrative != "" {
			narrative = resp.Narrative
		}
	}
	// Adapters outside the well-known set still contribute evidence.
	for id, resp := range responses {
		switch id {
		case provider.IDAI, provider.IDWebSearch, provider.IDPlaces, provider.IDProperty:
			continue
		default:
			raw = append(raw, resp.Evidence...)
			sources = append(sources, resp.Sources...)
		}
	}

	processed := e.processor.Process(raw, nq.Point, nq.RadiusMeters)

	return e.assembler.Assemble(report.Input{
		Query:     q,
		Center:    nq.Point,
		Evidence:  processed,
		Narrative: narrative,
		Sources:   sources,
		Status:    status,
	}), nil
}

func backoff(attempt int) time.Duration {
	d := baseBackoff * time.Duration(1<<(attempt-1))
	return d + time.Duration(rand.Int63n(int64(jitterSpan)))
}
