package local

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/piiscan/analyzer/pkg/recognizers"
)

//go:embed registry.yaml
var defaultRegistry []byte

type registryFile struct {
	SupportedLanguages []string                 `yaml:"supported_languages"`
	Recognizers        []recognizers.Definition `yaml:"recognizers"`
}

// registered is a built-in recognizer together with its registry id.
type registered struct {
	id  string
	rec recognizers.AdHocRecognizer
}

// Registry holds the built-in recognizers, grouped by language.
type Registry struct {
	languages   []string
	recognizers []registered
}

// DefaultRegistry returns the registry embedded in the binary.
func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultRegistry)
}

// LoadRegistry reads a registry file from disk.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recognizer registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses a YAML registry. Recognizers go through the same normalization as
// ad-hoc recognizers in requests.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("recognizer registry contains invalid yaml: %w", err)
	}
	if len(file.SupportedLanguages) == 0 {
		return nil, errors.New("recognizer registry must list supported_languages")
	}

	recs, err := recognizers.Normalize(file.Recognizers).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("recognizer registry is invalid: %w", err)
	}

	reg := &Registry{
		languages:   append([]string(nil), file.SupportedLanguages...),
		recognizers: make([]registered, len(recs)),
	}
	for i, rec := range recs {
		if rec.SupportedLanguage != "" && !reg.Supports(rec.SupportedLanguage) {
			return nil, fmt.Errorf(
				"recognizer %s uses language %s which is not in supported_languages",
				rec.Name, rec.SupportedLanguage,
			)
		}
		reg.recognizers[i] = registered{id: uuid.NewString(), rec: rec}
	}
	return reg, nil
}

// Languages returns the supported languages in registry order.
func (r *Registry) Languages() []string {
	return append([]string(nil), r.languages...)
}

// Supports reports whether language is served by the registry.
func (r *Registry) Supports(language string) bool {
	for _, l := range r.languages {
		if l == language {
			return true
		}
	}
	return false
}

// forLanguage returns the built-ins that apply to language, in registry order.
func (r *Registry) forLanguage(language string) []registered {
	var out []registered
	for _, e := range r.recognizers {
		if e.rec.SupportedLanguage == "" || e.rec.SupportedLanguage == language {
			out = append(out, e)
		}
	}
	return out
}
