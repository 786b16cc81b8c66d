package models

import (
	"time"

	"business-advisor/internal/core/geo"
)

// AttrChainBrand marks an entity recognized as a branch of a known chain;
// the value is the normalized brand name.
const AttrChainBrand = "chain_brand"

// Citation records where a piece of evidence or narrative claim came from.
type Citation struct {
	Provider    string    `json:"provider"`
	URL         string    `json:"url,omitempty"`
	Title       string    `json:"title,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Evidence is one geo-located business entity as reported by a provider.
// Optional fields stay zero-valued when the source does not carry them.
type Evidence struct {
	Provider    string            `json:"provider"`
	EntityID    string            `json:"entity_id,omitempty"`
	Name        string            `json:"name"`
	Point       geo.Point         `json:"point"`
	Category    string            `json:"category,omitempty"`
	Address     string            `json:"address,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	ReviewCount int               `json:"review_count,omitempty"`
	PriceTier   string            `json:"price_tier,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Citations   []Citation        `json:"citations,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}
