package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

const listingsPage = `<html><head><title>Homes in Austin</title></head><body>
<div data-testid="property-card" data-id="z1">
  <span data-testid="price">$425,000</span>
  <address data-testid="property-card-addr">12 Oak St, Austin, TX</address>
  <a href="/homedetails/12-oak">details</a>
</div>
<div data-testid="property-card" data-id="z2">
  <span data-testid="price">$1.2M</span>
  <address data-testid="property-card-addr">  7   Elm   Ave </address>
  <a href="https://www.zillow.com/homedetails/7-elm">details</a>
</div>
<div data-testid="property-card"></div>
</body></html>`

func TestHTMLItems(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(listingsPage), "text/html; charset=utf-8")
	require.NoError(t, err)
	page, _ := url.Parse("https://www.zillow.com/homes/austin_rb/")

	rules := domain.ExtractionRules{
		Items: `[data-testid="property-card"]`,
		ID:    "zid",
		Fields: map[string]string{
			"price":   `[data-testid="price"]`,
			"address": `[data-testid="property-card-addr"]`,
			"link":    "a",
			"zid":     "@data-id",
		},
	}

	items := New().HTMLItems(doc, rules, page)

	require.Len(t, items, 2, "empty card must be dropped")
	assert.Equal(t, "z1", items[0].ID)
	assert.Equal(t, "$425,000", items[0].Fields["price"])
	assert.Equal(t, "https://www.zillow.com/homedetails/12-oak", items[0].Fields["link"])
	assert.Equal(t, "7 Elm Ave", items[1].Fields["address"])
}

func TestHTMLItemsHashIDWithoutIDRule(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(listingsPage), "text/html")
	require.NoError(t, err)

	rules := domain.ExtractionRules{Items: `[data-testid="property-card"]`, Fields: map[string]string{"price": `[data-testid="price"]`}}
	items := New().HTMLItems(doc, rules, nil)

	require.Len(t, items, 2)
	assert.NotEmpty(t, items[0].ID)
	assert.NotEqual(t, items[0].ID, items[1].ID)
}

func TestParseHTMLDecodesLatin1(t *testing.T) {
	body := "<html><body><p class=\"t\">Caf\xe9</p></body></html>"
	doc, err := ParseHTML(strings.NewReader(body), "text/html; charset=iso-8859-1")
	require.NoError(t, err)

	items := New().HTMLItems(doc, domain.ExtractionRules{Items: "p.t"}, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "Café", items[0].Fields["text"])
}

func TestPage(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(`<html><head><title> CDC </title></head><body><h1>Outbreak update</h1><p>Measles cases rising.</p></body></html>`), "text/html")
	require.NoError(t, err)
	page, _ := url.Parse("https://www.cdc.gov")

	item, err := New().Page(doc, page)
	require.NoError(t, err)
	assert.Equal(t, "CDC", item.Fields["title"])
	assert.Contains(t, item.Fields["content"], "# Outbreak update")
	assert.Contains(t, item.Fields["content"], "Measles cases rising.")
	assert.Equal(t, "https://www.cdc.gov", item.Fields["url"])
}

func TestPageDropsScripts(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(`<html><body><h2>Advisory</h2><script>steal()</script><p onclick="x()">Patch now.</p></body></html>`), "text/html")
	require.NoError(t, err)

	item, err := New().Page(doc, nil)
	require.NoError(t, err)
	assert.Contains(t, item.Fields["content"], "Patch now.")
	assert.NotContains(t, item.Fields["content"], "steal()")
	assert.NotContains(t, item.Fields["content"], "onclick")
}

func TestTagLikeTextIsKept(t *testing.T) {
	const advisories = `<html><body>
<div class="row"><p class="title">Filter bypass via &lt;iframe&gt; element</p><a title="Handles &lt;script&gt; tags" href="/a/1">more</a></div>
<div class="row"><p class="title">Widget<script>track()</script> update</p></div>
</body></html>`
	doc, err := ParseHTML(strings.NewReader(advisories), "text/html")
	require.NoError(t, err)

	items := New().HTMLItems(doc, domain.ExtractionRules{
		Items:  "div.row",
		Fields: map[string]string{"title": "p.title", "hint": "a@title"},
	}, nil)

	require.Len(t, items, 2)
	assert.Equal(t, "Filter bypass via <iframe> element", items[0].Fields["title"])
	assert.Equal(t, "Handles <script> tags", items[0].Fields["hint"])
	assert.Equal(t, "Widget update", items[1].Fields["title"], "script bodies are not text")

	feed := `{"vulnerabilities":[{"cveID":"CVE-2026-0003","shortDescription":"Stored XSS: input rendered inside <script> and <img src=x> tags"}]}`
	jsonItems, err := New().JSONItems(strings.NewReader(feed), domain.ExtractionRules{
		Fields: map[string]string{"description": "shortDescription"},
	})
	require.NoError(t, err)
	require.Len(t, jsonItems, 1)
	assert.Equal(t, "Stored XSS: input rendered inside <script> and <img src=x> tags", jsonItems[0].Fields["description"])
}

func TestSplitSpec(t *testing.T) {
	tests := []struct {
		spec, selector, attr string
	}{
		{spec: "a@href", selector: "a", attr: "href"},
		{spec: "@data-urn", selector: "", attr: "data-urn"},
		{spec: `[data-testid="price"]`, selector: `[data-testid="price"]`, attr: ""},
		{spec: `a[href*="@"]`, selector: `a[href*="@"]`, attr: ""},
	}
	for _, tt := range tests {
		sel, attr := splitSpec(tt.spec)
		assert.Equal(t, tt.selector, sel, tt.spec)
		assert.Equal(t, tt.attr, attr, tt.spec)
	}
}

const kevFeed = `{
  "title": "CISA Catalog of Known Exploited Vulnerabilities",
  "count": 2,
  "vulnerabilities": [
    {"cveID": "CVE-2026-0001", "vendorProject": "Microsoft", "product": "Windows", "dateAdded": "2026-05-01", "knownRansomwareCampaignUse": "Known", "cwes": ["CWE-787", "CWE-20"]},
    {"cveID": "CVE-2026-0002", "vendorProject": "Ivanti", "product": "Connect <b>Secure</b>", "dateAdded": "2026-05-02", "knownRansomwareCampaignUse": "Unknown", "cvss": 9.8}
  ]
}`

func TestJSONItemsWithMapping(t *testing.T) {
	rules := domain.ExtractionRules{
		Items: "vulnerabilities",
		ID:    "cve",
		Fields: map[string]string{
			"cve":     "cveID",
			"vendor":  "vendorProject",
			"product": "product",
			"cwes":    "cwes",
			"missing": "nope",
		},
	}

	items, err := New().JSONItems(strings.NewReader(kevFeed), rules)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "CVE-2026-0001", items[0].ID)
	assert.Equal(t, "CWE-787, CWE-20", items[0].Fields["cwes"])
	assert.Equal(t, "Connect <b>Secure</b>", items[1].Fields["product"], "json strings are data, not markup")
	assert.NotContains(t, items[0].Fields, "missing")
}

func TestJSONItemsProbesListKeys(t *testing.T) {
	items, err := New().JSONItems(strings.NewReader(kevFeed), domain.ExtractionRules{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "9.8", items[1].Fields["cvss"], "numbers keep their literal form")
	assert.Equal(t, "Ivanti", items[1].Fields["vendorProject"])
}

func TestJSONItemsShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		rules   domain.ExtractionRules
		want    int
		wantErr bool
	}{
		{name: "root array", body: `[{"a":"1"},{"a":"2"},{"a":"3"}]`, want: 3},
		{name: "single object", body: `{"headline":"x"}`, want: 1},
		{name: "nested path", body: `{"data":{"rows":[{"a":"1"}]}}`, rules: domain.ExtractionRules{Items: "data.rows"}, want: 1},
		{name: "path not array", body: `{"data":{"rows":"x"}}`, rules: domain.ExtractionRules{Items: "data.rows"}, wantErr: true},
		{name: "missing path", body: `{"data":{}}`, rules: domain.ExtractionRules{Items: "data.rows"}, wantErr: true},
		{name: "malformed", body: `{"data":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := New().JSONItems(strings.NewReader(tt.body), tt.rules)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
		})
	}
}
