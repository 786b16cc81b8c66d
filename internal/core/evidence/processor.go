// Package evidence post-processes raw provider entities: radius filtering,
// cross-provider deduplication, chain-brand tagging and deterministic
// ordering.
package evidence

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"business-advisor/internal/common/config"
	"business-advisor/internal/common/logger"
	"business-advisor/internal/core/geo"
	"business-advisor/internal/models"
)

type Processor struct {
	cfg    config.DedupConfig
	logger logger.Logger
}

func NewProcessor(cfg config.DedupConfig, log logger.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		logger: log.With(map[string]interface{}{"component": "evidence"}),
	}
}

// Process filters entities to the query radius, merges duplicates reported
// by multiple providers and returns them ordered by distance from center,
// name breaking ties. The input slice is not mutated.
func (p *Processor) Process(raw []models.Evidence, center geo.Point, radiusMeters int) []models.Evidence {
	kept := p.filterRadius(raw, center, radiusMeters)
	merged := p.dedupe(kept)
	p.classifyChains(merged)

	sort.SliceStable(merged, func(i, j int) bool {
		di, dj := p.sortDistance(merged[i], center), p.sortDistance(merged[j], center)
		if di != dj {
			return di < dj
		}
		return merged[i].Name < merged[j].Name
	})

	p.logger.Debug("evidence processed", map[string]interface{}{
		"raw":    len(raw),
		"kept":   len(kept),
		"merged": len(merged),
	})

	return merged
}

func (p *Processor) filterRadius(raw []models.Evidence, center geo.Point, radiusMeters int) []models.Evidence {
	kept := make([]models.Evidence, 0, len(raw))
	for _, e := range raw {
		if !e.Point.Valid() {
			// Coordinate-less entities survive only for providers that
			// cannot geocode; anything with a point gets the exact filter.
			if p.coordinateExempt(e.Provider) {
				kept = append(kept, e)
			}
			continue
		}
		if geo.Distance(center, e.Point) > float64(radiusMeters) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// classifyChains tags entities whose name matches a configured chain brand
// so the report can split competitors into chains and independents.
func (p *Processor) classifyChains(entities []models.Evidence) {
	if len(p.cfg.ChainBrands) == 0 {
		return
	}
	for i := range entities {
		brand := p.matchBrand(entities[i].Name)
		if brand == "" {
			continue
		}
		if entities[i].Attributes == nil {
			entities[i].Attributes = map[string]string{}
		}
		entities[i].Attributes[models.AttrChainBrand] = brand
	}
}

// matchBrand returns the first configured brand the name matches, either as
// a whole-word substring or by the dedup similarity threshold.
func (p *Processor) matchBrand(name string) string {
	n := normalizeName(name)
	if n == "" {
		return ""
	}
	for _, brand := range p.cfg.ChainBrands {
		b := normalizeName(brand)
		if b == "" {
			continue
		}
		if strings.Contains(" "+n+" ", " "+b+" ") {
			return b
		}
		if nameSimilarity(n, b) >= p.cfg.NameSimilarity {
			return b
		}
	}
	return ""
}

// dedupe greedily clusters entities. Two entities merge when their
// normalized names are close enough and, if both carry valid coordinates,
// the points sit within the coordinate tolerance.
func (p *Processor) dedupe(entities []models.Evidence) []models.Evidence {
	var clusters [][]models.Evidence

next:
	for _, e := range entities {
		for i, cluster := range clusters {
			if p.sameEntity(cluster[0], e) {
				clusters[i] = append(cluster, e)
				continue next
			}
		}
		clusters = append(clusters, []models.Evidence{e})
	}

	merged := make([]models.Evidence, 0, len(clusters))
	for _, cluster := range clusters {
		merged = append(merged, p.merge(cluster))
	}
	return merged
}

func (p *Processor) sameEntity(a, b models.Evidence) bool {
	if nameSimilarity(a.Name, b.Name) < p.cfg.NameSimilarity {
		return false
	}
	if a.Point.Valid() && b.Point.Valid() {
		return geo.Distance(a.Point, b.Point) < p.cfg.CoordinateToleranceMeters
	}
	return true
}

// merge collapses a cluster into one entity. The representative comes from
// the highest-priority provider; citations are unioned and missing optional
// fields are backfilled from the other members, newest first.
func (p *Processor) merge(cluster []models.Evidence) models.Evidence {
	sort.SliceStable(cluster, func(i, j int) bool {
		pi, pj := p.priority(cluster[i].Provider), p.priority(cluster[j].Provider)
		if pi != pj {
			return pi < pj
		}
		return cluster[i].RetrievedAt.After(cluster[j].RetrievedAt)
	})

	out := cluster[0]
	out.Citations = append([]models.Citation(nil), out.Citations...)
	seen := make(map[string]bool, len(out.Citations))
	for _, c := range out.Citations {
		seen[c.Provider+"|"+c.URL] = true
	}

	for _, e := range cluster[1:] {
		for _, c := range e.Citations {
			key := c.Provider + "|" + c.URL
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Citations = append(out.Citations, c)
		}
		if out.Address == "" {
			out.Address = e.Address
		}
		if out.Rating == 0 {
			out.Rating = e.Rating
		}
		if out.ReviewCount == 0 {
			out.ReviewCount = e.ReviewCount
		}
		if out.PriceTier == "" {
			out.PriceTier = e.PriceTier
		}
		if out.Category == "" {
			out.Category = e.Category
		}
		if !out.Point.Valid() && e.Point.Valid() {
			out.Point = e.Point
		}
		for k, v := range e.Attributes {
			if out.Attributes == nil {
				out.Attributes = map[string]string{}
			}
			if _, ok := out.Attributes[k]; !ok {
				out.Attributes[k] = v
			}
		}
	}

	return out
}

func (p *Processor) priority(provider string) int {
	for i, id := range p.cfg.ProviderPriority {
		if id == provider {
			return i
		}
	}
	return len(p.cfg.ProviderPriority)
}

func (p *Processor) coordinateExempt(provider string) bool {
	for _, id := range p.cfg.CoordinateExempt {
		if id == provider {
			return true
		}
	}
	return false
}

// sortDistance keeps coordinate-less entities at the end of the report.
func (p *Processor) sortDistance(e models.Evidence, center geo.Point) float64 {
	if !e.Point.Valid() {
		return float64(1 << 30)
	}
	return geo.Distance(center, e.Point)
}

// nameSimilarity is 1 minus the normalized Levenshtein distance over
// lower-cased, whitespace-collapsed names.
func nameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(longest)
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
