// Package property adapts the internal places dataset in Postgres to the
// provider contract. A radius query becomes a bounding-box range scan; the
// evidence processor applies the exact distance filter downstream.
package property

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/models"
)

type Adapter struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewAdapter(config *Config, db *sql.DB, log logger.Logger) *Adapter {
	return &Adapter{
		config: config,
		db:     db,
		logger: log.With(map[string]interface{}{"provider": provider.IDProperty}),
	}
}

func (a *Adapter) ID() string { return provider.IDProperty }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	box := geo.BoundsAround(req.Query.Point, float64(req.Query.RadiusMeters))

	query := fmt.Sprintf(`SELECT name, address, latitude, longitude, place_type,
		rating, reviews_count, price_level
		FROM %s
		WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4
		ORDER BY name
		LIMIT $5`, a.config.Table)

	limit := a.config.MaxResults
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, query, box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, limit)
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewProviderTimeoutError(provider.IDProperty)
		}
		return nil, apperrors.NewProviderUnavailableError(provider.IDProperty, err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var entities []models.Evidence
	for rows.Next() {
		var (
			name      string
			address   sql.NullString
			lat, lon  float64
			placeType sql.NullString
			rating    sql.NullFloat64
			reviews   sql.NullInt64
			price     sql.NullString
		)
		if err := rows.Scan(&name, &address, &lat, &lon, &placeType, &rating, &reviews, &price); err != nil {
			return nil, apperrors.NewProviderInvalidResponseError(provider.IDProperty, err.Error())
		}

		entities = append(entities, models.Evidence{
			Provider:    provider.IDProperty,
			Name:        name,
			Point:       geo.Point{Lat: lat, Lon: lon},
			Category:    placeType.String,
			Address:     address.String,
			Rating:      rating.Float64,
			ReviewCount: int(reviews.Int64),
			PriceTier:   price.String,
			Citations: []models.Citation{{
				Provider:    provider.IDProperty,
				URL:         fmt.Sprintf("dataset://%s/%s", a.config.Table, name),
				Title:       name,
				RetrievedAt: now,
			}},
			RetrievedAt: now,
		})
	}
	if err := rows.Err(); err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewProviderTimeoutError(provider.IDProperty)
		}
		return nil, apperrors.NewProviderUnavailableError(provider.IDProperty, err)
	}

	a.logger.Info("property lookup completed", map[string]interface{}{
		"entityCount": len(entities),
	})

	return &provider.Response{
		Provider:    provider.IDProperty,
		Evidence:    entities,
		RetrievedAt: now,
	}, nil
}
