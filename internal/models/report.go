package models

import (
	"time"

	"business-advisor/internal/core/geo"
)

// Confidence tiers for an assembled report.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// ProviderStatus records per-provider outcome for the report's transparency
// section. Exactly one of Ok or ErrorCode is meaningful.
type ProviderStatus struct {
	Provider  string        `json:"provider"`
	Ok        bool          `json:"ok"`
	ErrorCode string        `json:"error_code,omitempty"`
	Message   string        `json:"message,omitempty"`
	Attempts  int           `json:"attempts"`
	CacheHit  bool          `json:"cache_hit"`
	Duration  time.Duration `json:"duration"`
}

// Summary aggregates the merged evidence for quick reading: how crowded the
// radius is, how the incumbents are rated and how many are chain branches.
type Summary struct {
	EntityCount      int     `json:"entity_count"`
	RatedCount       int     `json:"rated_count"`
	AverageRating    float64 `json:"average_rating,omitempty"`
	TotalReviews     int     `json:"total_reviews"`
	ChainCount       int     `json:"chain_count"`
	IndependentCount int     `json:"independent_count"`
}

// FeasibilityReport is the final deliverable: deduplicated evidence, the AI
// narrative with citation markers, and a confidence tier derived from which
// providers answered.
type FeasibilityReport struct {
	ID             string                    `json:"id"`
	Query          Query                     `json:"query"`
	Center         geo.Point                 `json:"center"`
	Summary        Summary                   `json:"summary"`
	Evidence       []Evidence                `json:"evidence"`
	Narrative      string                    `json:"narrative,omitempty"`
	Citations      []Citation                `json:"citations,omitempty"`
	ProviderStatus map[string]ProviderStatus `json:"provider_status"`
	Confidence     string                    `json:"confidence"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}
