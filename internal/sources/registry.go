package sources

import (
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// Registry maps a normalized domain name to its ordered source list.
// It is built once at startup and read-only afterwards.
type Registry struct {
	domains map[string][]domain.SourceDescriptor
}

// NewRegistry returns a registry holding only the built-in strategies.
func NewRegistry() *Registry {
	return &Registry{domains: builtinStrategies()}
}

// NewRegistryFromFile merges a registry file over the built-in strategies.
// A domain listed in the file replaces the built-in list for that domain.
func NewRegistryFromFile(path string) (*Registry, error) {
	file, err := NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	return newRegistry(file), nil
}

func newRegistry(file RegistryFile) *Registry {
	domains := builtinStrategies()
	if file.Replace {
		domains = make(map[string][]domain.SourceDescriptor, len(file.Domains))
	}
	for name, descs := range file.Domains {
		domains[name] = descs
	}
	return &Registry{domains: domains}
}

// Resolve returns the ordered sources for a domain, never an empty list.
// Unknown domains get a single synthetic scrape descriptor.
func (r *Registry) Resolve(domainName string) []domain.SourceDescriptor {
	key := domain.NormalizeDomain(domainName)
	if descs, ok := r.domains[key]; ok && len(descs) > 0 {
		out := make([]domain.SourceDescriptor, len(descs))
		copy(out, descs)
		return out
	}
	return []domain.SourceDescriptor{genericDescriptor(key)}
}

// Known reports whether the domain has configured sources.
func (r *Registry) Known(domainName string) bool {
	_, ok := r.domains[domain.NormalizeDomain(domainName)]
	return ok
}

// Domains lists the configured domain names, sorted.
func (r *Registry) Domains() []string {
	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every configured descriptor, including the built-ins.
func (r *Registry) Validate() error {
	for name, descs := range r.domains {
		for _, d := range descs {
			if err := d.Validate(); err != nil {
				return fmt.Errorf("domain %q: %w", name, err)
			}
		}
	}
	return nil
}
