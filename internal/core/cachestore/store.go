// Package cachestore provides the TTL cache with single-flight semantics
// that every provider fetch goes through. At most one fetch per key is in
// flight at any time; concurrent callers for the same key share its result.
package cachestore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/metrics"
)

// FetchFunc performs the real (rate-limited, paid) provider call.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Entry is the envelope persisted in redis. FetchedAt lets callers apply a
// freshness requirement tighter than the stored TTL.
type Entry struct {
	ProviderID string    `json:"provider_id"`
	FetchedAt  time.Time `json:"fetched_at"`
	Payload    []byte    `json:"payload"`
}

type flight struct {
	done    chan struct{}
	payload []byte
	err     error
}

// Store owns all cache entries; callers hold no mutable reference to them.
// Safe for concurrent use from multiple orchestrator runs.
type Store struct {
	rdb    *redis.Client
	logger logger.Logger

	mu      sync.Mutex
	flights map[string]*flight
}

func New(rdb *redis.Client, log logger.Logger) *Store {
	return &Store{
		rdb:     rdb,
		logger:  log.With(map[string]interface{}{"component": "cachestore"}),
		flights: make(map[string]*flight),
	}
}

// GetOrFetch returns the cached payload for key, or runs fetch under the
// single-flight discipline and caches its result for ttl. maxAge, when
// positive, treats entries older than it as misses. The returned bool is
// true when the payload was served from cache.
//
// A fetch failure caches nothing; the next caller retries. A cache backend
// failure degrades to a direct (still in-process single-flighted) fetch.
func (s *Store) GetOrFetch(ctx context.Context, providerID, key string, ttl, maxAge time.Duration, fetch FetchFunc) ([]byte, bool, error) {
	payload, found, degraded := s.lookup(ctx, providerID, key, maxAge)
	if found {
		metrics.CacheHits.WithLabelValues(providerID).Inc()
		return payload, true, nil
	}
	metrics.CacheMisses.WithLabelValues(providerID).Inc()

	s.mu.Lock()
	if f, inFlight := s.flights[key]; inFlight {
		s.mu.Unlock()
		metrics.CacheCoalesced.WithLabelValues(providerID).Inc()
		select {
		case <-f.done:
			return f.payload, false, f.err
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	s.flights[key] = f
	s.mu.Unlock()

	f.payload, f.err = fetch(ctx)

	if f.err == nil && !degraded {
		s.persist(ctx, providerID, key, ttl, f.payload)
	}

	s.mu.Lock()
	delete(s.flights, key)
	s.mu.Unlock()
	close(f.done)

	return f.payload, false, f.err
}

// lookup reads the envelope from redis. degraded is true when the backend
// itself failed, in which case the caller skips the write-back as well.
func (s *Store) lookup(ctx context.Context, providerID, key string, maxAge time.Duration) (payload []byte, found, degraded bool) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, false
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, false
		}
		degErr := apperrors.NewCacheUnavailableError(err)
		s.logger.Warn("cache read failed, degrading to direct fetch", map[string]interface{}{
			"provider": providerID,
			"error":    degErr.Error(),
		})
		return nil, false, true
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt entry: drop it and refetch.
		s.rdb.Del(ctx, key)
		return nil, false, false
	}

	if maxAge > 0 && time.Since(entry.FetchedAt) > maxAge {
		return nil, false, false
	}

	return entry.Payload, true, false
}

func (s *Store) persist(ctx context.Context, providerID, key string, ttl time.Duration, payload []byte) {
	entry := Entry{
		ProviderID: providerID,
		FetchedAt:  time.Now().UTC(),
		Payload:    payload,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, ttl).Err(); err != nil && ctx.Err() == nil {
		s.logger.Warn("cache write failed", map[string]interface{}{
			"provider": providerID,
			"error":    err.Error(),
		})
	}
}

// Invalidate removes an entry explicitly.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
