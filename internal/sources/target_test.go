package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetExpand(t *testing.T) {
	tests := []struct {
		name     string
		target   Target
		template string
		params   map[string]string
		want     string
	}{
		{
			name:     "location slug",
			target:   Target{Domain: "real_estate", Location: "Austin, TX"},
			template: "https://www.zillow.com/homes/{location_slug}_rb/",
			want:     "https://www.zillow.com/homes/austin-tx_rb/",
		},
		{
			name:     "generic search",
			target:   Target{Domain: "widgets", Location: "New York"},
			template: GenericSearchLocation,
			want:     "https://html.duckduckgo.com/html/?q=widgets+New+York",
		},
		{
			name:     "query falls back to location",
			target:   Target{Domain: "social_media", Location: "skin care"},
			template: "https://x.test/search?q={query}",
			want:     "https://x.test/search?q=skin+care",
		},
		{
			name:     "query filter wins",
			target:   Target{Domain: "social_media", Location: "Paris", Filters: map[string]string{"query": "Street Food"}},
			template: "https://x.test/tags/{query_compact}/",
			want:     "https://x.test/tags/streetfood/",
		},
		{
			name:     "unresolved placeholder removed",
			target:   Target{Domain: "cybersecurity"},
			template: "https://x.test/feed?vendor={vendor}",
			want:     "https://x.test/feed?vendor=",
		},
		{
			name:     "filter params appended",
			target:   Target{Domain: "cybersecurity", Filters: map[string]string{"vendor": "Cisco", "since": ""}},
			template: "https://x.test/feed?format=json",
			params:   map[string]string{"vendor": "v", "since": "after"},
			want:     "https://x.test/feed?format=json&v=Cisco",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.target.Expand(tt.template, tt.params))
		})
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "san-francisco-ca", Slug("  San Francisco, CA "))
	assert.Equal(t, "", Slug(""))
}
