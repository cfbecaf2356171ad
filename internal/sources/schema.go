package sources

import "github.com/MrSnakeDoc/datascope/internal/domain"

// RegistryFile represents the sources.yaml structure:
//
//	domains:
//	  cybersecurity:
//	    - name: CISA KEV
//	      kind: api
//	      location: https://...
//	      rules:
//	        items: vulnerabilities
//	        fields: {cve: cveID}
type RegistryFile struct {
	// Replace drops the built-in strategies instead of merging over them.
	Replace bool                                 `yaml:"replace"`
	Domains map[string][]domain.SourceDescriptor `yaml:"domains"`
}
