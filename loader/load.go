// Package loader reads Retrofit crew files in JSON or YAML, validates
// them against the tool registry, and returns the typed configuration.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/retrofit/crew"
	"github.com/petal-labs/retrofit/registry"
)

// LoadCrew reads a crew configuration, validates it, and returns the
// parsed result. The path may be a single YAML/JSON crew file or a
// config directory holding agents.yaml and tasks.yaml. Validation
// failures are returned as a *DiagnosticError so callers can render
// every finding.
func LoadCrew(path string, reg *registry.Registry) (*crew.Crew, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return loadCrewDir(path, reg)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return LoadCrewBytes(data, path, reg)
}

// LoadCrewBytes parses and validates crew configuration from bytes.
// The path is only consulted for its extension to pick YAML or JSON.
func LoadCrewBytes(data []byte, path string, reg *registry.Registry) (*crew.Crew, error) {
	c, err := ParseCrew(data, path)
	if err != nil {
		return nil, err
	}

	diags := crew.Validate(c, reg)
	if crew.HasErrors(diags) {
		return nil, &DiagnosticError{Diagnostics: diags}
	}

	return c, nil
}

// ParseCrew decodes crew configuration from bytes without validating it.
// Callers that want the full diagnostic list, warnings included, parse
// first and run crew.Validate themselves.
func ParseCrew(data []byte, path string) (*crew.Crew, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}
	return crew.LoadFromBytes(jsonData)
}

// toJSON converts data to JSON bytes, handling YAML conversion when the
// path indicates a YAML file.
func toJSON(data []byte, path string) ([]byte, error) {
	if isYAML(path) {
		return yamlToJSON(data)
	}
	return data, nil
}

// isYAML reports whether the file path has a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON converts YAML bytes to JSON bytes. This is the canonical
// parsing strategy: YAML -> map[string]any -> JSON bytes -> typed struct.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return json.Marshal(raw)
}

// DiagnosticError wraps validation diagnostics as an error. Warnings
// are carried alongside the errors so the CLI can print them too.
type DiagnosticError struct {
	Diagnostics []crew.Diagnostic
}

func (e *DiagnosticError) Error() string {
	errs := crew.Errors(e.Diagnostics)
	if len(errs) == 1 {
		return fmt.Sprintf("validation error: %s", errs[0].Message)
	}
	return fmt.Sprintf("%d validation errors (first: %s)", len(errs), errs[0].Message)
}
