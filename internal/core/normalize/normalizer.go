// Package normalize canonicalizes raw feasibility queries into stable cache
// keys and validated geo-points.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/models"
)

const (
	// latLonGridDegrees snaps coordinates to roughly a 50 m grid so nearby
	// queries share cache entries.
	latLonGridDegrees = 0.0005
	// radiusGridMeters rounds radii to the nearest 100 m.
	radiusGridMeters = 100
)

// Geocoder resolves free-form location text to coordinates. Implementations
// live outside the core.
type Geocoder interface {
	Resolve(ctx context.Context, location string) (geo.Point, error)
}

type Normalizer struct {
	geocoder Geocoder
	logger   logger.Logger
}

func New(geocoder Geocoder, log logger.Logger) *Normalizer {
	return &Normalizer{
		geocoder: geocoder,
		logger:   log.With(map[string]interface{}{"component": "normalizer"}),
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize validates the query, resolves its location and derives the
// deterministic cache key.
func (n *Normalizer) Normalize(ctx context.Context, q models.Query) (models.NormalizedQuery, error) {
	if q.RadiusMeters <= 0 {
		return models.NormalizedQuery{}, apperrors.NewInvalidRadiusError(q.RadiusMeters)
	}

	location := strings.TrimSpace(q.Location)
	if location == "" {
		return models.NormalizedQuery{}, apperrors.NewInvalidLocationError(location, "empty location")
	}

	point, err := n.geocoder.Resolve(ctx, location)
	if err != nil {
		return models.NormalizedQuery{}, apperrors.NewInvalidLocationError(location, err.Error())
	}
	if !point.Valid() {
		return models.NormalizedQuery{}, apperrors.NewInvalidLocationError(location, "geocoder returned invalid coordinates")
	}

	category := CanonicalCategory(q.Category)
	radius := roundRadius(q.RadiusMeters)

	nq := models.NormalizedQuery{
		Point:        point,
		Category:     category,
		RadiusMeters: q.RadiusMeters,
		CacheKey:     cacheKey(category, point, radius),
	}

	n.logger.Debug("query normalized", map[string]interface{}{
		"location": location,
		"category": category,
		"cacheKey": nq.CacheKey,
	})

	return nq, nil
}

// CanonicalCategory lower-cases the category and maps it through the synonym
// table so semantically identical queries collide on the same cache key.
func CanonicalCategory(category string) string {
	c := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(category)), " ")
	if canonical, ok := categorySynonyms[c]; ok {
		return canonical
	}
	return c
}

func cacheKey(category string, p geo.Point, radiusMeters int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%.4f|%.4f|%d",
		category, snap(p.Lat), snap(p.Lon), radiusMeters)))
	return hex.EncodeToString(h[:])
}

func snap(degrees float64) float64 {
	return math.Round(degrees/latLonGridDegrees) * latLonGridDegrees
}

func roundRadius(radiusMeters int) int {
	r := (radiusMeters + radiusGridMeters/2) / radiusGridMeters * radiusGridMeters
	if r < radiusGridMeters {
		r = radiusGridMeters
	}
	return r
}
