// Package websearch adapts a custom-search API to the provider contract.
// It contributes market-context citations and a short narrative snippet,
// never geo evidence.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/httpclient"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/models"
)

type Adapter struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewAdapter(config *Config, log logger.Logger) *Adapter {
	return &Adapter{
		config: config,
		client: httpclient.New(config.Timeout),
		logger: log.With(map[string]interface{}{"provider": provider.IDWebSearch}),
	}
}

func (a *Adapter) ID() string { return provider.IDWebSearch }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (*provider.Response, error) {
	query := fmt.Sprintf("%s market demand %.4f,%.4f",
		req.Query.Category, req.Query.Point.Lat, req.Query.Point.Lon)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.buildSearchURL(query), nil)
	if err != nil {
		return nil, apperrors.NewProviderUnavailableError(provider.IDWebSearch, err)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewProviderTimeoutError(provider.IDWebSearch)
		}
		return nil, apperrors.NewProviderUnavailableError(provider.IDWebSearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderUnavailableError(provider.IDWebSearch,
			fmt.Errorf("search API returned %d", resp.StatusCode))
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewProviderInvalidResponseError(provider.IDWebSearch, err.Error())
	}

	sources := a.processResults(decoded.Items)

	now := time.Now().UTC()
	citations := make([]models.Citation, 0, len(sources))
	for _, s := range sources {
		citations = append(citations, models.Citation{
			Provider:    provider.IDWebSearch,
			URL:         s.URL,
			Title:       s.Title,
			RetrievedAt: now,
		})
	}

	a.logger.Info("web search completed", map[string]interface{}{
		"query":       query,
		"resultCount": len(sources),
	})

	return &provider.Response{
		Provider:    provider.IDWebSearch,
		Narrative:   summarize(sources),
		Sources:     citations,
		RetrievedAt: now,
	}, nil
}

func (a *Adapter) buildSearchURL(query string) string {
	baseURL, _ := url.Parse(a.config.BaseURL)
	params := url.Values{}
	params.Add("key", a.config.APIKey)
	params.Add("cx", a.config.EngineID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", a.config.MaxResults))
	baseURL.RawQuery = params.Encode()
	return baseURL.String()
}

func (a *Adapter) processResults(items []searchItem) []source {
	seen := make(map[string]bool)
	var sources []source

	for _, item := range items {
		// Skip non-HTML
		if item.Mime != "" && !strings.Contains(item.Mime, "html") {
			continue
		}

		// Dedupe by URL
		if seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		relevance := 1.0
		if strings.Contains(item.Link, ".gov") || strings.Contains(item.Link, ".edu") {
			relevance += 0.2
		}
		if strings.Contains(strings.ToLower(item.Title), "official") {
			relevance += 0.1
		}

		if relevance >= a.config.MinRelevance {
			sources = append(sources, source{
				URL:       item.Link,
				Title:     item.Title,
				Snippet:   item.Snippet,
				Relevance: relevance,
			})
		}
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Relevance > sources[j].Relevance
	})

	if a.config.MaxResults > 0 && len(sources) > a.config.MaxResults {
		sources = sources[:a.config.MaxResults]
	}

	return sources
}

func summarize(sources []source) string {
	if len(sources) == 0 {
		return ""
	}
	return sources[0].Snippet
}
