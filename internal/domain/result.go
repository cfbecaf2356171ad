package domain

import (
	"sort"
	"strings"
	"time"
)

// Record is one unit of collected intelligence. Fields is a loose union:
// each domain populates its own keys.
type Record struct {
	SourceName  string            `json:"source_name"`
	CollectedAt time.Time         `json:"collected_at"`
	Domain      string            `json:"domain"`
	Fields      map[string]string `json:"fields"`
}

// Field returns a field value or "" when absent.
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// Source outcome statuses reported per source.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// SourceReport summarizes what happened to one source during a collection.
type SourceReport struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Status  string `json:"status"`
	Records int    `json:"records"`
	Reason  string `json:"reason,omitempty"`
	Stage   Stage  `json:"stage,omitempty"`
}

// CollectionResult is the only thing callers of the engine ever see.
type CollectionResult struct {
	RunID            string              `json:"run_id"`
	Domain           string              `json:"domain"`
	Location         string              `json:"location"`
	Filters          map[string]string   `json:"filters,omitempty"`
	CollectedAt      time.Time           `json:"collected_at"`
	Records          []Record            `json:"records"`
	SourcesAttempted int                 `json:"sources_attempted"`
	SourcesSucceeded int                 `json:"sources_succeeded"`
	AvailableFilters map[string][]string `json:"available_filters"`
	Degraded         bool                `json:"degraded"`
	Warnings         []string            `json:"warnings,omitempty"`
	Sources          []SourceReport      `json:"sources,omitempty"`
	DomainAnalysis   map[string]any      `json:"domain_analysis,omitempty"`

	FromCache bool `json:"-"`
}

// FacetFields are the record keys mined for UI filter values.
var FacetFields = []string{
	"severity", "vendor", "product", "category", "type", "tag",
	"location", "city", "state", "author", "date",
}

// SourceFacet holds the distinct source names of the records.
const SourceFacet = "source"

// SetRecords replaces the records and recomputes AvailableFilters.
func (r *CollectionResult) SetRecords(records []Record) {
	if records == nil {
		records = []Record{}
	}
	r.Records = records
	r.AvailableFilters = Facets(records)
}

// Facets collects the sorted distinct values of every facet field present in records.
func Facets(records []Record) map[string][]string {
	sets := make(map[string]map[string]struct{})
	add := func(facet, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if sets[facet] == nil {
			sets[facet] = make(map[string]struct{})
		}
		sets[facet][value] = struct{}{}
	}

	for _, rec := range records {
		for _, f := range FacetFields {
			add(f, rec.Fields[f])
		}
		add(SourceFacet, rec.SourceName)
	}

	out := make(map[string][]string, len(sets))
	for facet, set := range sets {
		values := make([]string, 0, len(set))
		for v := range set {
			values = append(values, v)
		}
		sort.Strings(values)
		out[facet] = values
	}
	return out
}

// ComputeDegraded applies the single loud failure rule.
func (r *CollectionResult) ComputeDegraded() {
	r.Degraded = r.SourcesSucceeded == 0 && r.SourcesAttempted > 0
}

// CacheEntry is a stored CollectionResult plus its fetch time.
type CacheEntry struct {
	Key       string           `json:"key"`
	Payload   CollectionResult `json:"payload"`
	FetchedAt time.Time        `json:"fetched_at"`
}
