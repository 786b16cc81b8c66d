// Package report assembles the final feasibility report: deduplicated
// evidence, the narrative with citation markers, per-provider status and a
// confidence tier.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"business-advisor/internal/common/logger"
	"business-advisor/internal/common/metrics"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/core/provider"
	"business-advisor/internal/models"
)

type Assembler struct {
	logger logger.Logger
}

func NewAssembler(log logger.Logger) *Assembler {
	return &Assembler{
		logger: log.With(map[string]interface{}{"component": "report"}),
	}
}

// Input carries everything a single analyze run produced.
type Input struct {
	Query     models.Query
	Center    geo.Point
	Evidence  []models.Evidence
	Narrative string
	// Sources are the AI and web-search citations backing the narrative.
	Sources []models.Citation
	Status  map[string]models.ProviderStatus
}

// Assemble builds the report. It is pure apart from the report id and
// timestamp, so identical inputs yield identical content.
func (a *Assembler) Assemble(in Input) *models.FeasibilityReport {
	citations := a.collectCitations(in)
	narrative := insertMarkers(in.Narrative, in.Evidence, citationIndex(citations))
	confidence := computeConfidence(in.Status)

	report := &models.FeasibilityReport{
		ID:             uuid.New().String(),
		Query:          in.Query,
		Center:         in.Center,
		Summary:        summarize(in.Evidence),
		Evidence:       in.Evidence,
		Narrative:      narrative,
		Citations:      citations,
		ProviderStatus: in.Status,
		Confidence:     confidence,
		GeneratedAt:    time.Now().UTC(),
	}

	metrics.ReportsAssembled.WithLabelValues(confidence).Inc()
	a.logger.Info("report assembled", map[string]interface{}{
		"reportId":      report.ID,
		"entityCount":   len(report.Evidence),
		"citationCount": len(report.Citations),
		"confidence":    confidence,
	})

	return report
}

// collectCitations unions narrative sources with every evidence citation,
// ordered deterministically and deduplicated by provider and URL.
func (a *Assembler) collectCitations(in Input) []models.Citation {
	seen := make(map[string]bool)
	var citations []models.Citation

	add := func(c models.Citation) {
		key := c.Provider + "|" + c.URL
		if seen[key] {
			return
		}
		seen[key] = true
		citations = append(citations, c)
	}

	for _, c := range in.Sources {
		add(c)
	}
	for _, e := range in.Evidence {
		for _, c := range e.Citations {
			add(c)
		}
	}

	return citations
}

// summarize aggregates ratings, review volume and the chain/independent
// split over the merged evidence.
func summarize(entities []models.Evidence) models.Summary {
	s := models.Summary{EntityCount: len(entities)}
	var ratingSum float64
	for _, e := range entities {
		s.TotalReviews += e.ReviewCount
		if e.Rating > 0 {
			s.RatedCount++
			ratingSum += e.Rating
		}
		if e.Attributes[models.AttrChainBrand] != "" {
			s.ChainCount++
		}
	}
	s.IndependentCount = s.EntityCount - s.ChainCount
	if s.RatedCount > 0 {
		s.AverageRating = ratingSum / float64(s.RatedCount)
	}
	return s
}

// citationIndex maps a citation's title to its 1-based position in the
// report citation list.
func citationIndex(citations []models.Citation) map[string]int {
	idx := make(map[string]int, len(citations))
	for i, c := range citations {
		title := strings.ToLower(strings.TrimSpace(c.Title))
		if title == "" {
			continue
		}
		if _, ok := idx[title]; !ok {
			idx[title] = i + 1
		}
	}
	return idx
}

// insertMarkers appends a [n] marker after the first mention of each
// entity's name in the narrative. Longer names are processed first so
// "Cafe Nirvana Express" wins over "Cafe Nirvana" when both occur.
func insertMarkers(narrative string, entities []models.Evidence, index map[string]int) string {
	if narrative == "" || len(entities) == 0 {
		return narrative
	}

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	marked := make(map[string]bool)
	for _, name := range names {
		key := strings.ToLower(name)
		if marked[key] {
			continue
		}
		n, ok := index[key]
		if !ok {
			continue
		}

		pos := strings.Index(strings.ToLower(narrative), key)
		if pos < 0 {
			continue
		}
		end := pos + len(name)
		marker := fmt.Sprintf(" [%d]", n)
		if strings.HasPrefix(narrative[end:], marker) {
			continue
		}
		narrative = narrative[:end] + marker + narrative[end:]
		marked[key] = true
	}

	return narrative
}

// computeConfidence derives the tier from which providers answered. The AI
// narrative is the strongest signal: without it a report never rates HIGH.
func computeConfidence(status map[string]models.ProviderStatus) string {
	total := len(status)
	if total == 0 {
		return models.ConfidenceLow
	}

	aiStatus, aiPresent := status[provider.IDAI]
	aiOk := aiPresent && aiStatus.Ok

	othersOk := 0
	failures := 0
	for id, s := range status {
		if !s.Ok {
			failures++
			continue
		}
		if id != provider.IDAI {
			othersOk++
		}
	}

	if failures == 0 && aiOk {
		return models.ConfidenceHigh
	}
	if aiOk {
		return models.ConfidenceMedium
	}
	if othersOk >= 2 {
		return models.ConfidenceMedium
	}
	return models.ConfidenceLow
}
