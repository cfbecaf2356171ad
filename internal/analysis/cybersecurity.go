package analysis

import (
	"strings"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
)

var (
	criticalKeywords = []string{
		"critical infrastructure", "nation-state", "ransomware", "zero-day",
		"active exploitation", "remote code execution", "privilege escalation",
		"authentication bypass",
	}
	// "vulnerability" and "attack" are left out: every KEV description has them.
	highKeywords = []string{
		"compromise", "breach", "malware", "phishing", "scam", "fraud",
		"backdoor", "trojan", "botnet",
	}
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "January 2, 2006", "Jan 2, 2006", "01/02/2006"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return ""
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Severity uses the record's own severity when it has one, otherwise the
// KEV urgency rules: ransomware use, due date, date added and keywords.
func Severity(r domain.Record, now time.Time) string {
	if s := normalizeSeverity(r.Field("severity")); s != "" {
		return s
	}

	const day = 24 * time.Hour
	dueIn, sinceAdded := time.Duration(1<<62), time.Duration(1<<62)
	if due, ok := parseDate(r.Field("due_date")); ok {
		dueIn = due.Sub(now)
	}
	if added, ok := parseDate(r.Field("date")); ok {
		sinceAdded = now.Sub(added)
	}
	text := strings.ToLower(r.Field("title") + " " + r.Field("description"))

	switch {
	case strings.EqualFold(r.Field("ransomware"), "known"),
		dueIn <= 7*day, sinceAdded <= 3*day, containsAny(text, criticalKeywords):
		return SeverityCritical
	case dueIn <= 21*day, sinceAdded <= 7*day, containsAny(text, highKeywords):
		return SeverityHigh
	case dueIn <= 45*day:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func cybersecurity(now func() time.Time) variant {
	return func(records []domain.Record, out map[string]any) {
		t := now()
		dist := map[string]int{SeverityCritical: 0, SeverityHigh: 0, SeverityMedium: 0, SeverityLow: 0}
		vendors := make(map[string]int)
		cves := make(map[string]struct{})
		ransomware := 0

		for _, r := range records {
			dist[Severity(r, t)]++
			if strings.EqualFold(r.Field("ransomware"), "known") {
				ransomware++
			}
			if v := r.Field("vendor"); v != "" {
				vendors[v]++
			}
			// the same CVE from two feeds is counted once here only
			if id := strings.ToUpper(r.Field("cve")); id != "" {
				cves[id] = struct{}{}
			}
		}

		out["severity_distribution"] = dist
		out["ransomware_flagged"] = ransomware
		out["unique_cves"] = len(cves)
		out["top_vendors"] = topN(vendors, 10)
	}
}
