package store

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

func TestIsFresh(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := &domain.CacheEntry{FetchedAt: fetched}
	ttl := 24 * time.Hour
	eps := time.Millisecond

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "just written", now: fetched, want: true},
		{name: "before ttl", now: fetched.Add(ttl - eps), want: true},
		{name: "at ttl", now: fetched.Add(ttl), want: false},
		{name: "after ttl", now: fetched.Add(ttl + eps), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(entry, ttl, tt.now); got != tt.want {
				t.Errorf("IsFresh() = %v, want %v", got, tt.want)
			}
		})
	}

	if IsFresh(nil, ttl, fetched) {
		t.Error("IsFresh(nil) should be false")
	}
}

func TestKey(t *testing.T) {
	a, err := Key("Cyber-Security", " Austin ", map[string]string{"vendor": "microsoft", "severity": "high"})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, _ := Key("cyber_security", "austin", map[string]string{"severity": "high", "vendor": "microsoft"})
	if a != b {
		t.Errorf("Key() not stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, DomainPrefix("cyber_security")) {
		t.Errorf("Key() %q does not start with domain prefix", a)
	}

	c, _ := Key("cyber_security", "austin", map[string]string{"severity": "low"})
	if a == c {
		t.Error("different filters produced the same key")
	}

	d, _ := Key("cyber_security", "austin", map[string]string{"vendor": "x=y"})
	e, _ := Key("cyber_security", "austin", map[string]string{"vendor=x": "y"})
	if d == e {
		t.Error("filters differing only in where \"=\" sits produced the same key")
	}

	noFilters, _ := Key("cyber_security", "austin", nil)
	emptyFilters, _ := Key("cyber_security", "austin", map[string]string{})
	if noFilters != emptyFilters {
		t.Errorf("nil and empty filters differ: %q vs %q", noFilters, emptyFilters)
	}

	if _, err := Key("  ", "", nil); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("Key() with empty domain error = %v", err)
	}
}
