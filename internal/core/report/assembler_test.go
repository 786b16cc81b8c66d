package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/models"
)

func okStatus(id string) models.ProviderStatus {
	return models.ProviderStatus{Provider: id, Ok: true, Attempts: 1}
}

func failedStatus(id, code string) models.ProviderStatus {
	return models.ProviderStatus{Provider: id, Ok: false, ErrorCode: code, Attempts: 1}
}

func allOk() map[string]models.ProviderStatus {
	return map[string]models.ProviderStatus{
		provider.IDAI:        okStatus(provider.IDAI),
		provider.IDWebSearch: okStatus(provider.IDWebSearch),
		provider.IDPlaces:    okStatus(provider.IDPlaces),
		provider.IDProperty:  okStatus(provider.IDProperty),
	}
}

func sampleInput() Input {
	now := time.Now().UTC()
	return Input{
		Query:  models.Query{Location: "Mohali", Category: "cafe", RadiusMeters: 3000},
		Center: geo.Point{Lat: 30.7046, Lon: 76.7179},
		Evidence: []models.Evidence{
			{
				Provider: provider.IDPlaces,
				Name:     "Cafe Nirvana",
				Point:    geo.Point{Lat: 30.7046, Lon: 76.7179},
				Citations: []models.Citation{{
					Provider:    provider.IDPlaces,
					URL:         "https://cafenirvana.example.com",
					Title:       "Cafe Nirvana",
					RetrievedAt: now,
				}},
			},
		},
		Narrative: "Competition is modest; Cafe Nirvana dominates the area.",
		Sources: []models.Citation{{
			Provider:    provider.IDAI,
			URL:         "https://example.com/study",
			RetrievedAt: now,
		}},
		Status: allOk(),
	}
}

func TestAssemble_AllProvidersOkIsHigh(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	got := a.Assemble(sampleInput())

	assert.Equal(t, models.ConfidenceHigh, got.Confidence)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.GeneratedAt.IsZero())
}

func TestAssemble_AIOkWithFailuresIsMedium(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Status[provider.IDWebSearch] = failedStatus(provider.IDWebSearch, "PROVIDER_TIMEOUT")

	got := a.Assemble(in)
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
}

func TestAssemble_AIFailedWithTwoOthersIsMedium(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Status[provider.IDAI] = failedStatus(provider.IDAI, "PROVIDER_TIMEOUT")
	in.Status[provider.IDWebSearch] = failedStatus(provider.IDWebSearch, "PROVIDER_TIMEOUT")
	in.Narrative = ""

	got := a.Assemble(in)
	assert.Equal(t, models.ConfidenceMedium, got.Confidence)
}

func TestAssemble_AIFailedWithOneOtherIsLow(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Status = map[string]models.ProviderStatus{
		provider.IDAI:     failedStatus(provider.IDAI, "PROVIDER_TIMEOUT"),
		provider.IDPlaces: okStatus(provider.IDPlaces),
	}

	got := a.Assemble(in)
	assert.Equal(t, models.ConfidenceLow, got.Confidence)
}

func TestAssemble_NarrativeGetsCitationMarkers(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	got := a.Assemble(sampleInput())

	// The evidence citation follows the narrative source, so it is [2].
	assert.Contains(t, got.Narrative, "Cafe Nirvana [2]")
	require.Len(t, got.Citations, 2)
	assert.Equal(t, "https://example.com/study", got.Citations[0].URL)
	assert.Equal(t, "https://cafenirvana.example.com", got.Citations[1].URL)
}

func TestAssemble_MarkerInsertedOnlyOnce(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Narrative = "Cafe Nirvana is popular. Visitors love Cafe Nirvana."

	got := a.Assemble(in)
	assert.Equal(t, "Cafe Nirvana [2] is popular. Visitors love Cafe Nirvana.", got.Narrative)
}

func TestAssemble_CitationsDeduplicated(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	dup := in.Evidence[0].Citations[0]
	in.Evidence = append(in.Evidence, models.Evidence{
		Provider:  provider.IDPlaces,
		Name:      "Cafe Nirvana",
		Citations: []models.Citation{dup},
	})

	got := a.Assemble(in)
	assert.Len(t, got.Citations, 2)
}

func TestAssemble_SummaryAggregatesRatings(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Evidence[0].Rating = 4.5
	in.Evidence[0].ReviewCount = 812
	in.Evidence = append(in.Evidence,
		models.Evidence{Provider: provider.IDPlaces, Name: "Brew Lab", Rating: 4.1, ReviewCount: 204},
		models.Evidence{Provider: provider.IDProperty, Name: "Unrated Spot"},
	)

	got := a.Assemble(in)

	assert.Equal(t, 3, got.Summary.EntityCount)
	assert.Equal(t, 2, got.Summary.RatedCount)
	assert.InDelta(t, 4.3, got.Summary.AverageRating, 1e-9)
	assert.Equal(t, 1016, got.Summary.TotalReviews)
}

func TestAssemble_SummarySplitsChainsFromIndependents(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Evidence = append(in.Evidence,
		models.Evidence{
			Provider:   provider.IDPlaces,
			Name:       "Starbucks Phase 7",
			Attributes: map[string]string{models.AttrChainBrand: "starbucks"},
		},
		models.Evidence{Provider: provider.IDPlaces, Name: "Brew Lab"},
	)

	got := a.Assemble(in)

	assert.Equal(t, 3, got.Summary.EntityCount)
	assert.Equal(t, 1, got.Summary.ChainCount)
	assert.Equal(t, 2, got.Summary.IndependentCount)
}

func TestAssemble_EmptyStatusIsLow(t *testing.T) {
	a := NewAssembler(logger.NewNoOpLogger())

	in := sampleInput()
	in.Status = nil
	in.Narrative = ""

	got := a.Assemble(in)
	assert.Equal(t, models.ConfidenceLow, got.Confidence)
}
