package analysis

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

var amount = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*([kmb]\b)?`)

// ParseAmount reads "$1.2M", "$350K", "$425,000", "1.2K likes" or "245".
func ParseAmount(s string) (float64, bool) {
	m := amount.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1e3
	case "m":
		v *= 1e6
	case "b":
		v *= 1e9
	}
	return v, true
}

func amounts(records []domain.Record, field string) []float64 {
	var out []float64
	for _, r := range records {
		if v, ok := ParseAmount(r.Field(field)); ok {
			out = append(out, v)
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func realEstate(records []domain.Record, out map[string]any) {
	prices := amounts(records, "price")
	out["total_listings"] = len(records)
	if len(prices) == 0 {
		return
	}
	sort.Float64s(prices)

	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	n := len(prices)
	median := prices[n/2]
	if n%2 == 0 {
		median = (prices[n/2-1] + prices[n/2]) / 2
	}
	out["price_stats"] = map[string]any{
		"avg":    round2(sum / float64(n)),
		"min":    prices[0],
		"max":    prices[n-1],
		"median": round2(median),
		"count":  n,
	}
}

func socialMedia(records []domain.Record, out map[string]any) {
	authors := make(map[string]int)
	total, maxV, n := 0.0, 0.0, 0
	for _, r := range records {
		if a := r.Field("author"); a != "" {
			authors[a]++
		}
		v, ok := ParseAmount(r.Field("engagement"))
		if !ok {
			continue
		}
		total += v
		maxV = math.Max(maxV, v)
		n++
	}

	out["total_posts_analyzed"] = n
	out["top_authors"] = topN(authors, 10)
	if n > 0 {
		out["engagement_stats"] = map[string]any{
			"average": round2(total / float64(n)),
			"total":   total,
			"max":     maxV,
		}
	}
}

var healthTopics = []string{"outbreak", "disease", "vaccine", "treatment", "symptoms"}

func healthcare(records []domain.Record, out map[string]any) {
	topics := make(map[string]int, len(healthTopics))
	for _, t := range healthTopics {
		topics[t] = 0
	}
	var alerts []string

	for _, r := range records {
		text := strings.ToLower(r.Field("title") + " " + r.Field("content") + " " + r.Field("description"))
		for _, t := range healthTopics {
			if strings.Contains(text, t) {
				topics[t]++
			}
		}
		if strings.Contains(text, "outbreak") {
			label := r.Field("title")
			if label == "" {
				label = r.SourceName
			}
			alerts = append(alerts, label)
		}
	}

	out["topic_counts"] = topics
	if alerts == nil {
		alerts = []string{}
	}
	out["health_alerts"] = alerts
}
