package domain

import (
	"fmt"
	"strings"
)

// Kind tells the orchestrator which collector executes a source.
type Kind string

const (
	KindAPI         Kind = "api"
	KindScrape      Kind = "scrape"
	KindInteractive Kind = "interactive"
)

// ParseKind validates a kind read from configuration.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAPI, KindScrape, KindInteractive:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// ExtractionRules describes how items and fields are pulled out of a response.
// For api sources Items and Fields hold JSON dot paths, otherwise CSS selectors.
type ExtractionRules struct {
	Items  string            `yaml:"items" json:"items,omitempty"`
	Fields map[string]string `yaml:"fields" json:"fields,omitempty"`
	ID     string            `yaml:"id" json:"id,omitempty"`

	// Interactive only
	UsernameField    string `yaml:"username_field" json:"username_field,omitempty"`
	PasswordField    string `yaml:"password_field" json:"password_field,omitempty"`
	LoginButton      string `yaml:"login_button" json:"login_button,omitempty"`
	LoggedInMarker   string `yaml:"logged_in_marker" json:"logged_in_marker,omitempty"`
	LoginErrorMarker string `yaml:"login_error_marker" json:"login_error_marker,omitempty"`
	LoadMore         string `yaml:"load_more" json:"load_more,omitempty"`
	ErrorMarker      string `yaml:"error_marker" json:"error_marker,omitempty"`
}

// SourceDescriptor is one configured data origin. Loaded once, never mutated.
type SourceDescriptor struct {
	Name             string            `yaml:"name" json:"name"`
	Location         string            `yaml:"location" json:"location"`
	Kind             Kind              `yaml:"kind" json:"kind"`
	Rules            ExtractionRules   `yaml:"rules" json:"rules"`
	AuthRequired     bool              `yaml:"auth_required" json:"auth_required"`
	LoginLocation    string            `yaml:"login_location" json:"login_location,omitempty"`
	RequiresLocation bool              `yaml:"requires_location" json:"requires_location,omitempty"`
	FilterParams     map[string]string `yaml:"filter_params" json:"filter_params,omitempty"`
	// MaxItems caps this source below the engine-wide limit; 0 means no own cap.
	MaxItems int `yaml:"max_items" json:"max_items,omitempty"`
}

// Validate reports configuration mistakes that must stop startup.
func (d SourceDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidSource)
	}
	if strings.TrimSpace(d.Location) == "" {
		return fmt.Errorf("%w: source %q has no location", ErrInvalidSource, d.Name)
	}
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return fmt.Errorf("source %q: %w", d.Name, err)
	}
	if d.MaxItems < 0 {
		return fmt.Errorf("%w: source %q has a negative max_items", ErrInvalidSource, d.Name)
	}
	if d.Kind == KindInteractive {
		if d.Rules.Items == "" {
			return fmt.Errorf("%w: interactive source %q needs an items selector", ErrInvalidSource, d.Name)
		}
		if d.AuthRequired && (d.LoginLocation == "" || d.Rules.UsernameField == "" ||
			d.Rules.PasswordField == "" || d.Rules.LoginButton == "") {
			return fmt.Errorf("%w: source %q requires login but login rules are incomplete", ErrInvalidSource, d.Name)
		}
	}
	return nil
}

// Credentials are supplied per call and never stored by the engine.
type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// NormalizeDomain maps "Real Estate", "real-estate" and "real_estate" to the same key.
func NormalizeDomain(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "_", " ", "_").Replace(n)
	return n
}
