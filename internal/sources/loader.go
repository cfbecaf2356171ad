package sources

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/datascope/internal/domain"
)

// Loader handles loading and validation of a sources.yaml registry file
type Loader struct {
	filePath string
}

// NewLoader creates a new registry file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads, parses and validates the registry file.
// Any malformed entry fails the whole load.
func (l *Loader) Load() (RegistryFile, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return RegistryFile{}, fmt.Errorf("failed to read sources file: %w", err)
	}

	// Expand ${VAR} references (API keys, private hosts)
	data = expandEnvVariables(data)

	var file RegistryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RegistryFile{}, fmt.Errorf("failed to parse sources yaml: %w", err)
	}

	if err := normalize(&file); err != nil {
		return RegistryFile{}, fmt.Errorf("invalid sources file %s: %w", l.filePath, err)
	}
	return file, nil
}

// normalize canonicalizes domain names and kinds, then validates every descriptor.
func normalize(file *RegistryFile) error {
	out := make(map[string][]domain.SourceDescriptor, len(file.Domains))
	var errs []error
	for name, descs := range file.Domains {
		key := domain.NormalizeDomain(name)
		if key == "" {
			errs = append(errs, fmt.Errorf("%w: empty domain name", domain.ErrInvalidSource))
			continue
		}
		if len(descs) == 0 {
			errs = append(errs, fmt.Errorf("%w: domain %q lists no sources", domain.ErrInvalidSource, name))
			continue
		}
		for i := range descs {
			kind, err := domain.ParseKind(string(descs[i].Kind))
			if err != nil {
				errs = append(errs, fmt.Errorf("domain %q source %d: %w", name, i, err))
				continue
			}
			descs[i].Kind = kind
			if err := descs[i].Validate(); err != nil {
				errs = append(errs, fmt.Errorf("domain %q: %w", name, err))
			}
		}
		out[key] = append(out[key], descs...)
	}
	file.Domains = out
	return errors.Join(errs...)
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVariables replaces ${VAR} with the environment value.
// Example: ${KEV_MIRROR} -> "https://mirror.internal/kev.json"
func expandEnvVariables(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envVarPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}
