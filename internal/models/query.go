// Package models holds the shared data structures exchanged between the
// normalizer, providers, evidence pipeline and report assembler.
package models

import (
	"time"

	"business-advisor/internal/core/geo"
)

// Query is the raw caller input before validation.
type Query struct {
	Location     string `json:"location"`
	Category     string `json:"category"`
	RadiusMeters int    `json:"radius_meters"`
	// Freshness, when positive, rejects cached provider payloads older
	// than this even if their TTL has not expired.
	Freshness time.Duration `json:"freshness,omitempty"`
}

// NormalizedQuery is the validated, geocoded form every downstream component
// operates on. CacheKey is deterministic for semantically equal queries.
type NormalizedQuery struct {
	Point        geo.Point `json:"point"`
	Category     string    `json:"category"`
	RadiusMeters int       `json:"radius_meters"`
	CacheKey     string    `json:"cache_key"`
}
