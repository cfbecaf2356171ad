// Package analysis attaches domain-specific statistics to a CollectionResult.
package analysis

import (
	"sort"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// Processor computes the domain_analysis of a result. The input is never mutated.
type Processor interface {
	Process(res *domain.CollectionResult) *domain.CollectionResult
}

// variant adds its own keys on top of the generic summary.
type variant func(records []domain.Record, out map[string]any)

type processor struct {
	name    string
	variant variant
}

func (p processor) Process(res *domain.CollectionResult) *domain.CollectionResult {
	out := *res
	analysis := summary(res)
	analysis["processor"] = p.name
	if p.variant != nil {
		p.variant(res.Records, analysis)
	}
	out.DomainAnalysis = analysis
	return &out
}

type Options struct {
	Now func() time.Time
	// Specialized false keeps every domain on the generic summary.
	Specialized bool
}

// Analyzer picks the processor for a domain.
type Analyzer struct {
	processors map[string]Processor
	generic    Processor
}

func New(opts Options) *Analyzer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &Analyzer{
		processors: make(map[string]Processor),
		generic:    processor{name: "generic"},
	}
	if opts.Specialized {
		a.processors["cybersecurity"] = processor{name: "cybersecurity", variant: cybersecurity(opts.Now)}
		a.processors["real_estate"] = processor{name: "real_estate", variant: realEstate}
		a.processors["social_media"] = processor{name: "social_media", variant: socialMedia}
		a.processors["healthcare"] = processor{name: "healthcare", variant: healthcare}
	}
	return a
}

// For returns the processor of a domain, falling back to the generic one.
func (a *Analyzer) For(domainName string) Processor {
	if p, ok := a.processors[domain.NormalizeDomain(domainName)]; ok {
		return p
	}
	return a.generic
}

// Process runs the processor matching res.Domain.
func (a *Analyzer) Process(res *domain.CollectionResult) *domain.CollectionResult {
	return a.For(res.Domain).Process(res)
}

func summary(res *domain.CollectionResult) map[string]any {
	perSource := make(map[string]int)
	for _, r := range res.Records {
		perSource[r.SourceName]++
	}
	facetCounts := make(map[string]int, len(res.AvailableFilters))
	for facet, values := range res.AvailableFilters {
		facetCounts[facet] = len(values)
	}
	return map[string]any{
		"total_records":      len(res.Records),
		"records_per_source": perSource,
		"facet_counts":       facetCounts,
	}
}

// Count is one entry of a ranked list.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// topN ranks counts by count, then name, and keeps n.
func topN(counts map[string]int, n int) []Count {
	ranked := make([]Count, 0, len(counts))
	for name, c := range counts {
		ranked = append(ranked, Count{Name: name, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
