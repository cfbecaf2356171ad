package domain

import (
	"errors"
	"testing"
)

func TestSessionStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []Stage
		wantErr bool
	}{
		{name: "login path", path: []Stage{StageLoggingIn, StageAuthenticated, StageExtracting, StageDone}},
		{name: "public path", path: []Stage{StageExtracting, StageDone}},
		{name: "skip authentication", path: []Stage{StageLoggingIn, StageExtracting}, wantErr: true},
		{name: "leave done", path: []Stage{StageExtracting, StageDone, StageExtracting}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSessionState()
			var err error
			for _, next := range tt.path {
				if err = s.Advance(next); err != nil {
					break
				}
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Advance() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionStateFail(t *testing.T) {
	s := NewSessionState()
	if err := s.Advance(StageLoggingIn); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	s.Fail(ReasonLoginRejected)
	if s.Stage != StageFailed || s.Reason != ReasonLoginRejected {
		t.Errorf("Fail() state = %+v", s)
	}

	// terminal state keeps its first reason
	s.Fail(ReasonSessionDropped)
	if s.Reason != ReasonLoginRejected {
		t.Errorf("Fail() overwrote reason: %s", s.Reason)
	}
	if err := s.Advance(StageFailed); err == nil {
		t.Error("Advance(failed) should be rejected")
	}
}

func TestFacets(t *testing.T) {
	records := []Record{
		{SourceName: "CISA KEV", Fields: map[string]string{"severity": "High", "vendor": "Microsoft"}},
		{SourceName: "CISA KEV", Fields: map[string]string{"severity": "Critical", "vendor": "Microsoft"}},
		{SourceName: "IC3", Fields: map[string]string{"severity": " High ", "title": "PSA"}},
	}

	got := Facets(records)

	want := map[string][]string{
		"severity":  {"Critical", "High"},
		"vendor":    {"Microsoft"},
		SourceFacet: {"CISA KEV", "IC3"},
	}
	if len(got) != len(want) {
		t.Fatalf("Facets() = %v, want %v", got, want)
	}
	for facet, values := range want {
		if len(got[facet]) != len(values) {
			t.Errorf("facet %s = %v, want %v", facet, got[facet], values)
			continue
		}
		for i := range values {
			if got[facet][i] != values[i] {
				t.Errorf("facet %s[%d] = %s, want %s", facet, i, got[facet][i], values[i])
			}
		}
	}
}

func TestSetRecordsRecomputesFilters(t *testing.T) {
	var r CollectionResult
	r.SetRecords([]Record{{SourceName: "a", Fields: map[string]string{"category": "x"}}})
	if len(r.AvailableFilters["category"]) != 1 {
		t.Fatalf("category facet missing: %v", r.AvailableFilters)
	}

	r.SetRecords(nil)
	if len(r.AvailableFilters) != 0 || r.Records == nil {
		t.Errorf("SetRecords(nil) left stale state: %+v", r)
	}
}

func TestComputeDegraded(t *testing.T) {
	tests := []struct {
		attempted, succeeded int
		want                 bool
	}{
		{0, 0, false},
		{2, 0, true},
		{2, 1, false},
	}
	for _, tt := range tests {
		r := CollectionResult{SourcesAttempted: tt.attempted, SourcesSucceeded: tt.succeeded}
		r.ComputeDegraded()
		if r.Degraded != tt.want {
			t.Errorf("attempted=%d succeeded=%d degraded=%v, want %v", tt.attempted, tt.succeeded, r.Degraded, tt.want)
		}
	}
}

func TestSourceDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    SourceDescriptor
		wantErr error
	}{
		{
			name: "valid api",
			desc: SourceDescriptor{Name: "kev", Location: "https://example.com/feed.json", Kind: KindAPI},
		},
		{
			name:    "missing location",
			desc:    SourceDescriptor{Name: "kev", Kind: KindAPI},
			wantErr: ErrInvalidSource,
		},
		{
			name:    "unknown kind",
			desc:    SourceDescriptor{Name: "kev", Location: "https://example.com", Kind: "rss"},
			wantErr: ErrUnknownKind,
		},
		{
			name: "interactive login rules incomplete",
			desc: SourceDescriptor{
				Name: "lemon8", Location: "https://example.com/feed", Kind: KindInteractive,
				AuthRequired: true, Rules: ExtractionRules{Items: ".post"},
			},
			wantErr: ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	for _, in := range []string{"real-estate", "Real Estate", " real_estate "} {
		if got := NormalizeDomain(in); got != "real_estate" {
			t.Errorf("NormalizeDomain(%q) = %q", in, got)
		}
	}
}
