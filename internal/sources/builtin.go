package sources

import "github.com/MrSnakeDoc/datascope/internal/domain"

// GenericSearchLocation is templated with the domain and location for unknown domains.
const GenericSearchLocation = "https://html.duckduckgo.com/html/?q={domain}+{location}"

// genericDescriptor is the synthetic fallback for domains without configured sources.
func genericDescriptor(domainName string) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Name:     "Web search: " + domainName,
		Location: GenericSearchLocation,
		Kind:     domain.KindScrape,
		Rules: domain.ExtractionRules{
			Items: ".result",
			Fields: map[string]string{
				"title":   ".result__title",
				"link":    ".result__a",
				"snippet": ".result__snippet",
			},
		},
	}
}

// builtinStrategies are the default domain strategies.
func builtinStrategies() map[string][]domain.SourceDescriptor {
	return map[string][]domain.SourceDescriptor{
		"cybersecurity": {
			{
				Name:     "CISA KEV",
				Location: "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json",
				Kind:     domain.KindAPI,
				Rules: domain.ExtractionRules{
					Items: "vulnerabilities",
					Fields: map[string]string{
						"cve":             "cveID",
						"vendor":          "vendorProject",
						"product":         "product",
						"title":           "vulnerabilityName",
						"date":            "dateAdded",
						"description":     "shortDescription",
						"required_action": "requiredAction",
						"due_date":        "dueDate",
						"ransomware":      "knownRansomwareCampaignUse",
					},
				},
			},
			{
				Name:     "FBI IC3",
				Location: "https://www.ic3.gov/PSA",
				Kind:     domain.KindScrape,
				Rules: domain.ExtractionRules{
					Items: ".view-content .views-row",
					Fields: map[string]string{
						"title": ".field-content a",
						"date":  ".date-display-single",
						"link":  ".field-content a",
					},
				},
			},
			{
				Name:     "CISA Advisories",
				Location: "https://www.cisa.gov/news-events/cybersecurity-advisories",
				Kind:     domain.KindScrape,
				MaxItems: 10,
				Rules: domain.ExtractionRules{
					Items: ".view-content .views-row",
					Fields: map[string]string{
						"title": "h3 a",
						"link":  "h3 a",
						"date":  "time",
						"type":  ".c-teaser__meta",
					},
				},
			},
		},
		"real_estate": {
			{
				Name:             "Zillow",
				Location:         "https://www.zillow.com/homes/{location_slug}_rb/",
				Kind:             domain.KindScrape,
				RequiresLocation: true,
				Rules: domain.ExtractionRules{
					Items: `[data-testid="property-card"]`,
					Fields: map[string]string{
						"price":   `[data-testid="price"]`,
						"address": `[data-testid="property-card-addr"]`,
						"beds":    `[data-testid="property-card-specification"]`,
						"link":    "a",
					},
				},
			},
		},
		"social_media": {
			{
				Name:          "Lemon8",
				Location:      "https://www.lemon8-app.com/search?q={query}",
				LoginLocation: "https://www.lemon8-app.com/login",
				Kind:          domain.KindInteractive,
				AuthRequired:  true,
				Rules: domain.ExtractionRules{
					Items: `[data-testid="post-item"]`,
					Fields: map[string]string{
						"content":    ".post-content",
						"author":     ".author-name",
						"engagement": ".engagement-stats",
						"link":       "a",
					},
					UsernameField: `input[type="email"]`,
					PasswordField: `input[type="password"]`,
					LoginButton:   `[data-testid="login-button"]`,
					LoadMore:      `[data-testid="load-more"]`,
				},
			},
			{
				Name:          "Instagram",
				Location:      "https://www.instagram.com/explore/tags/{query_compact}/",
				LoginLocation: "https://www.instagram.com/accounts/login/",
				Kind:          domain.KindInteractive,
				AuthRequired:  true,
				Rules: domain.ExtractionRules{
					Items: "article",
					Fields: map[string]string{
						"content": `[data-testid="post-content"]`,
						"link":    "a",
					},
					UsernameField: `input[name="username"]`,
					PasswordField: `input[name="password"]`,
					LoginButton:   `button[type="submit"]`,
				},
			},
			{
				Name:          "LinkedIn",
				Location:      "https://www.linkedin.com/search/results/content/?keywords={query}",
				LoginLocation: "https://www.linkedin.com/login",
				Kind:          domain.KindInteractive,
				AuthRequired:  true,
				Rules: domain.ExtractionRules{
					Items: ".feed-shared-update-v2",
					ID:    "urn",
					Fields: map[string]string{
						"urn":     "@data-urn",
						"content": ".feed-shared-text",
					},
					UsernameField: "#username",
					PasswordField: "#password",
					LoginButton:   `button[type="submit"]`,
				},
			},
		},
		"healthcare": {
			{
				Name:     "CDC",
				Location: "https://www.cdc.gov",
				Kind:     domain.KindScrape,
			},
		},
	}
}
