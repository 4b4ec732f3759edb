package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petal-labs/retrofit/core"
	"github.com/petal-labs/retrofit/registry"
	"github.com/petal-labs/retrofit/tool"
)

const crewYAML = `version: "1"
kind: crew
name: modernization
agents:
  code_analyst:
    role: Code Analyst
    goal: Find legacy patterns
    provider: anthropic
    model: claude-sonnet-4-5
    tools:
      - Node Code Analyzer
tasks:
  analyze:
    description: Analyze the codebase
    agent: code_analyst
    expected_output: Findings report
execution:
  strategy: sequential
  task_order:
    - analyze
`

func testRegistry() *registry.Registry {
	return registry.New([]registry.Registration{
		{Name: "Node Code Analyzer", Factory: func() core.Tool { return tool.NewCodeAnalyzer() }},
	})
}

func TestLoadCrewYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crew.yaml")
	if err := os.WriteFile(path, []byte(crewYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCrew(path, testRegistry())
	if err != nil {
		t.Fatalf("LoadCrew: %v", err)
	}
	if c.Name != "modernization" {
		t.Errorf("Name = %q", c.Name)
	}
	if _, ok := c.Agents["code_analyst"]; !ok {
		t.Error("agent missing after load")
	}
	if len(c.Execution.TaskOrder) != 1 {
		t.Errorf("TaskOrder = %v", c.Execution.TaskOrder)
	}
}

func TestLoadCrewJSON(t *testing.T) {
	data := `{
  "name": "modernization",
  "agents": {
    "code_analyst": {"role": "r", "goal": "g", "provider": "openai", "model": "gpt-4o"}
  },
  "tasks": {
    "analyze": {"description": "d", "agent": "code_analyst", "expected_output": "o"}
  },
  "execution": {"strategy": "sequential", "task_order": ["analyze"]}
}`
	c, err := LoadCrewBytes([]byte(data), "crew.json", testRegistry())
	if err != nil {
		t.Fatalf("LoadCrewBytes: %v", err)
	}
	if c.Name != "modernization" {
		t.Errorf("Name = %q", c.Name)
	}
}

func TestLoadCrewValidationFailure(t *testing.T) {
	bad := strings.Replace(crewYAML, "Node Code Analyzer", "Node Cod Analyzer", 1)
	_, err := LoadCrewBytes([]byte(bad), "crew.yaml", testRegistry())
	if err == nil {
		t.Fatal("misspelled tool should fail validation")
	}
	var derr *DiagnosticError
	if !errors.As(err, &derr) {
		t.Fatalf("error type %T, want *DiagnosticError", err)
	}
	if !strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error should surface the suggestion: %v", err)
	}
}

func TestLoadCrewBadYAML(t *testing.T) {
	if _, err := LoadCrewBytes([]byte(":\n  - ["), "crew.yaml", testRegistry()); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestLoadCrewMissingFile(t *testing.T) {
	if _, err := LoadCrew(filepath.Join(t.TempDir(), "nope.yaml"), testRegistry()); err == nil {
		t.Error("missing file should fail")
	}
}
