// Package provider defines the uniform fetch contract every external data
// source is adapted to, and the registry that selects which adapters apply
// to a query category.
package provider

import (
	"context"
	"time"

	"business-advisor/internal/models"
)

// Well-known provider ids.
const (
	IDAI        = "ai"
	IDWebSearch = "websearch"
	IDPlaces    = "places"
	IDProperty  = "property"
)

// Request is created per adapter invocation and owned by the orchestrator
// for the lifetime of one fetch.
type Request struct {
	Provider string
	Query    models.NormalizedQuery
	Attempt  int
}

// Response is what an adapter returns. Evidence carries geo entities;
// Narrative and Sources carry the AI/search contribution. Responses are
// JSON-marshaled into the cache, so identical queries within TTL yield
// byte-identical payloads.
type Response struct {
	Provider    string            `json:"provider"`
	Narrative   string            `json:"narrative,omitempty"`
	Evidence    []models.Evidence `json:"evidence,omitempty"`
	Sources     []models.Citation `json:"sources,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// Adapter is the single capability each concrete provider implements. An
// adapter translates its source's native failures into the shared taxonomy
// (PROVIDER_TIMEOUT / PROVIDER_INVALID_RESPONSE / PROVIDER_UNAVAILABLE) and
// never lets source-specific errors escape.
type Adapter interface {
	ID() string
	Fetch(ctx context.Context, req Request) (*Response, error)
}
