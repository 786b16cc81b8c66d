// Package places adapts a SerpApi-compatible maps search engine to the
// provider contract. It is the primary source of geo-located evidence.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/httpclient"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/models"
)

// TokenGate admits outbound searches. The orchestrator charges one token
// per fetch; that covers the category search only, so each amenity search
// acquires its own. A nil gate leaves the extra searches ungated.
type TokenGate interface {
	Acquire(ctx context.Context, providerID string) error
}

type Adapter struct {
	config *Config
	client *http.Client
	gate   TokenGate
	logger logger.Logger
}

func NewAdapter(config *Config, gate TokenGate, log logger.Logger) *Adapter {
	return &Adapter{
		config: config,
		client: httpclient.New(config.Timeout),
		gate:   gate,
		logger: log.With(map[string]interface{}{"provider": provider.IDPlaces}),
	}
}

func (a *Adapter) ID() string { return provider.IDPlaces }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (*provider.Response, error) {
	entities, err := a.search(ctx, req.Query.Category, req.Query.Point, req.Query.RadiusMeters)
	if err != nil {
		return nil, err
	}

	resp := &provider.Response{
		Provider:    provider.IDPlaces,
		Evidence:    entities,
		RetrievedAt: time.Now().UTC(),
	}

	// Amenity enrichment is best-effort context, never a fetch failure.
	for _, amenity := range a.config.AmenityTypes {
		if a.gate != nil {
			if gerr := a.gate.Acquire(ctx, provider.IDPlaces); gerr != nil {
				a.logger.Warn("amenity lookup skipped", map[string]interface{}{
					"amenity": amenity,
					"error":   gerr.Error(),
				})
				continue
			}
		}
		hits, aerr := a.search(ctx, amenity, req.Query.Point, req.Query.RadiusMeters)
		if aerr != nil {
			a.logger.Warn("amenity lookup skipped", map[string]interface{}{
				"amenity": amenity,
				"error":   aerr.Error(),
			})
			continue
		}
		for _, h := range hits {
			if h.Attributes == nil {
				h.Attributes = map[string]string{}
			}
			h.Attributes["amenity_type"] = amenity
			resp.Evidence = append(resp.Evidence, h)
		}
	}

	a.logger.Info("places fetch completed", map[string]interface{}{
		"category":    req.Query.Category,
		"entityCount": len(resp.Evidence),
	})

	return resp, nil
}

func (a *Adapter) search(ctx context.Context, query string, center geo.Point, radiusMeters int) ([]models.Evidence, error) {
	endpoint, err := url.Parse(a.config.BaseURL + "/search")
	if err != nil {
		return nil, apperrors.NewProviderUnavailableError(provider.IDPlaces, err)
	}
	params := url.Values{}
	params.Add("engine", "google_maps")
	params.Add("q", query)
	params.Add("ll", fmt.Sprintf("@%f,%f,%dm", center.Lat, center.Lon, radiusMeters))
	params.Add("type", "search")
	params.Add("api_key", a.config.APIKey)
	endpoint.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, apperrors.NewProviderUnavailableError(provider.IDPlaces, err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewProviderTimeoutError(provider.IDPlaces)
		}
		return nil, apperrors.NewProviderUnavailableError(provider.IDPlaces, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderUnavailableError(provider.IDPlaces,
			fmt.Errorf("places API returned %d", resp.StatusCode))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewProviderInvalidResponseError(provider.IDPlaces, err.Error())
	}

	now := time.Now().UTC()
	entities := make([]models.Evidence, 0, len(decoded.LocalResults))
	for i, item := range decoded.LocalResults {
		if a.config.MaxResults > 0 && i >= a.config.MaxResults {
			break
		}
		if item.Title == "" {
			continue
		}
		entityID := item.DataID
		if entityID == "" {
			entityID = item.PlaceID
		}
		citeURL := item.Website
		if citeURL == "" && item.PlaceID != "" {
			citeURL = "https://www.google.com/maps/place/?q=place_id:" + item.PlaceID
		}
		entities = append(entities, models.Evidence{
			Provider:    provider.IDPlaces,
			EntityID:    entityID,
			Name:        item.Title,
			Point:       geo.Point{Lat: item.GPSCoordinates.Latitude, Lon: item.GPSCoordinates.Longitude},
			Category:    item.Type,
			Address:     item.Address,
			Rating:      item.Rating,
			ReviewCount: item.Reviews,
			PriceTier:   item.Price,
			Citations: []models.Citation{{
				Provider:    provider.IDPlaces,
				URL:         citeURL,
				Title:       item.Title,
				RetrievedAt: now,
			}},
			RetrievedAt: now,
		})
	}

	return entities, nil
}
