// Package geocode implements the geocoding collaborator against a
// Nominatim-compatible endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"business-advisor/internal/common/config"
	"business-advisor/internal/common/httpclient"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
)

// NominatimGeocoder resolves free-form location text through Nominatim's
// /search endpoint.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
	logger    logger.Logger
}

func NewNominatim(cfg config.GeocoderConfig, log logger.Logger) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		client:    httpclient.New(config.GetDuration(cfg.TimeoutMs)),
		logger:    log.With(map[string]interface{}{"component": "geocoder"}),
	}
}

func (g *NominatimGeocoder) Resolve(ctx context.Context, location string) (geo.Point, error) {
	endpoint, err := url.Parse(g.baseURL + "/search")
	if err != nil {
		return geo.Point{}, err
	}
	params := url.Values{}
	params.Add("q", location)
	params.Add("format", "json")
	params.Add("limit", "1")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return geo.Point{}, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return geo.Point{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, fmt.Errorf("geocoder returned %d", resp.StatusCode)
	}

	var results []struct {
		Lat         string `json:"lat"`
		Lon         string `json:"lon"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geo.Point{}, err
	}
	if len(results) == 0 {
		return geo.Point{}, fmt.Errorf("no match for %q", location)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad latitude %q", results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad longitude %q", results[0].Lon)
	}

	g.logger.Debug("location resolved", map[string]interface{}{
		"location": location,
		"match":    results[0].DisplayName,
	})

	return geo.Point{Lat: lat, Lon: lon}, nil
}
