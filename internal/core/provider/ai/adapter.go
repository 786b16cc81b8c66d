// Package ai adapts a chat-completions endpoint to the provider contract.
// The model is prompted for a structured feasibility verdict which is
// schema-validated before it becomes a narrative.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "business-advisor/internal/common/errors"
	"business-advisor/internal/common/httpclient"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/validation"
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
		logger: log.With(map[string]interface{}{"provider": provider.IDAI}),
	}
}

func (a *Adapter) ID() string { return provider.IDAI }

func (a *Adapter) Fetch(ctx context.Context, req provider.Request) (*provider.Response, error) {
	body := chatRequest{
		Model: a.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}
	body.ResponseFormat.Type = "json_object"

	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/chat/completions", bytes.NewBuffer(payload))
	if err != nil {
		return nil, apperrors.NewProviderUnavailableError(provider.IDAI, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if apperrors.IsTimeout(err) {
			return nil, apperrors.NewProviderTimeoutError(provider.IDAI)
		}
		return nil, apperrors.NewProviderUnavailableError(provider.IDAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProviderUnavailableError(provider.IDAI,
			fmt.Errorf("chat API returned %d", resp.StatusCode))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.NewProviderInvalidResponseError(provider.IDAI, err.Error())
	}
	if len(decoded.Choices) == 0 {
		return nil, apperrors.NewProviderInvalidResponseError(provider.IDAI, "empty choices")
	}

	content := []byte(decoded.Choices[0].Message.Content)
	if err := validation.ValidateRecommendation(content); err != nil {
		return nil, apperrors.NewProviderInvalidResponseError(provider.IDAI, err.Error())
	}

	var verdict recommendation
	if err := json.Unmarshal(content, &verdict); err != nil {
		return nil, apperrors.NewProviderInvalidResponseError(provider.IDAI, err.Error())
	}

	now := time.Now().UTC()
	citations := make([]models.Citation, 0, len(verdict.Sources))
	for _, src := range verdict.Sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		citations = append(citations, models.Citation{
			Provider:    provider.IDAI,
			URL:         src,
			RetrievedAt: now,
		})
	}

	a.logger.Info("recommendation generated", map[string]interface{}{
		"prosCount":   len(verdict.Pros),
		"consCount":   len(verdict.Cons),
		"sourceCount": len(citations),
	})

	return &provider.Response{
		Provider:    provider.IDAI,
		Narrative:   renderNarrative(verdict),
		Sources:     citations,
		RetrievedAt: now,
	}, nil
}

const systemPrompt = "You are a business feasibility advisor. Answer ONLY with a JSON object " +
	`with keys "pros", "cons", "suggestions" (arrays of strings), "recommendation" ` +
	`(a short paragraph) and optionally "sources" (array of URLs). Base the verdict ` +
	"only on the supplied query. Keep each point concise and professional."

func buildPrompt(req provider.Request) string {
	var parts []string
	parts = append(parts, fmt.Sprintf(
		"Assess opening a %s near %.4f,%.4f within a %d m radius.",
		req.Query.Category, req.Query.Point.Lat, req.Query.Point.Lon, req.Query.RadiusMeters))
	parts = append(parts, "Consider competition density, demand drivers and local amenities.")
	return strings.Join(parts, "\n")
}

// renderNarrative flattens the structured verdict into the report narrative.
func renderNarrative(v recommendation) string {
	var b strings.Builder
	b.WriteString(v.Recommendation)
	writeSection(&b, "Pros", v.Pros)
	writeSection(&b, "Cons", v.Cons)
	writeSection(&b, "Suggestions", v.Suggestions)
	return b.String()
}

func writeSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n\n" + heading + ":")
	for _, item := range items {
		b.WriteString("\n- " + item)
	}
}
