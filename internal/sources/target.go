package sources

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Target is what one collection is aimed at.
type Target struct {
	Domain   string
	Location string
	Filters  map[string]string
}

var (
	placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
)

// Expand substitutes the target into a location template and appends
// filterParams (filter name -> query parameter) for filters that are set.
// Placeholders with no value are removed.
func (t Target) Expand(template string, filterParams map[string]string) string {
	values := t.values()
	out := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		return values[m[1:len(m)-1]]
	})

	if len(filterParams) == 0 {
		return out
	}
	u, err := url.Parse(out)
	if err != nil {
		return out
	}
	q := u.Query()
	names := make([]string, 0, len(filterParams))
	for name := range filterParams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := t.Filters[name]; v != "" {
			q.Set(filterParams[name], v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (t Target) values() map[string]string {
	values := make(map[string]string, len(t.Filters)+5)
	for k, v := range t.Filters {
		values[k] = url.QueryEscape(v)
	}

	query := t.Filters["query"]
	if query == "" {
		query = t.Location
	}
	values["location"] = url.QueryEscape(t.Location)
	values["location_slug"] = Slug(t.Location)
	values["domain"] = url.QueryEscape(strings.ReplaceAll(t.Domain, "_", " "))
	values["query"] = url.QueryEscape(query)
	values["query_compact"] = url.PathEscape(strings.ToLower(strings.Join(strings.Fields(query), "")))
	return values
}

// Slug lowercases s and joins its alphanumeric runs with hyphens: "Austin, TX" -> "austin-tx".
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
