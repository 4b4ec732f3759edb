package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/petal-labs/retrofit/crew"
	"github.com/petal-labs/retrofit/registry"
)

// loadCrewDir assembles a crew from a config directory holding
// agents.yaml and tasks.yaml, with an optional crew.yaml for the name
// and execution block. Without crew.yaml the crew runs sequentially in
// the order tasks are declared.
func loadCrewDir(dir string, reg *registry.Registry) (*crew.Crew, error) {
	agents, err := decodeConfigFile[map[string]crew.Agent](dir, "agents")
	if err != nil {
		return nil, err
	}
	tasks, err := decodeConfigFile[map[string]crew.Task](dir, "tasks")
	if err != nil {
		return nil, err
	}

	c := &crew.Crew{
		Version: "1",
		Kind:    "crew",
		Name:    filepath.Base(dir),
		Agents:  *agents,
		Tasks:   *tasks,
	}

	taskOrder, err := declaredKeyOrder(configFilePath(dir, "tasks"))
	if err != nil {
		return nil, err
	}
	c.Execution = crew.ExecutionConfig{
		Strategy:  "sequential",
		TaskOrder: taskOrder,
	}

	if overlay, err := decodeOptionalCrewFile(dir); err != nil {
		return nil, err
	} else if overlay != nil {
		if overlay.Name != "" {
			c.Name = overlay.Name
		}
		if overlay.Version != "" {
			c.Version = overlay.Version
		}
		if overlay.Execution.Strategy != "" {
			c.Execution = overlay.Execution
		}
	}

	diags := crew.Validate(c, reg)
	if crew.HasErrors(diags) {
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	return c, nil
}

// configFilePath returns the path of <stem>.yaml under dir, falling
// back to the .yml spelling when that is the one present.
func configFilePath(dir, stem string) string {
	path := filepath.Join(dir, stem+".yaml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(dir, stem+".yml")
}

// decodeConfigFile reads <stem>.yaml from dir through the canonical
// yaml -> json -> typed struct conversion.
func decodeConfigFile[T any](dir, stem string) (*T, error) {
	path := configFilePath(dir, stem)
	data, err := os.ReadFile(path) // #nosec G304 -- path derived from caller's dir
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	jsonData, err := yamlToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	var out T
	if err := json.Unmarshal(jsonData, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &out, nil
}

// crewOverlay is the optional crew.yaml: naming and execution only,
// agents and tasks always come from their own files.
type crewOverlay struct {
	Version   string               `json:"version"`
	Name      string               `json:"name"`
	Execution crew.ExecutionConfig `json:"execution"`
}

func decodeOptionalCrewFile(dir string) (*crewOverlay, error) {
	path := configFilePath(dir, "crew")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	return decodeConfigFile[crewOverlay](dir, "crew")
}

// declaredKeyOrder returns the top-level mapping keys of a YAML file in
// declaration order. encoding/json maps lose ordering, so the order is
// recovered from the YAML node tree.
func declaredKeyOrder(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derived from caller's dir
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: top level must be a mapping", path)
	}

	mapping := doc.Content[0]
	keys := make([]string, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}
	return keys, nil
}
