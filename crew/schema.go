// Package crew defines the crew configuration schema for Retrofit: the
// agents that plan a Node.js modernization, the tasks they run, and the
// execution order. It validates configurations against the tool
// registry and produces an execution plan for the runtime.
package crew

import (
	"encoding/json"
	"fmt"
	"os"
)

// Crew is the top-level configuration: a named set of agents and tasks
// plus execution settings.
type Crew struct {
	Version   string           `json:"version"`
	Kind      string           `json:"kind"`
	Name      string           `json:"name"`
	Agents    map[string]Agent `json:"agents"`
	Tasks     map[string]Task  `json:"tasks"`
	Execution ExecutionConfig  `json:"execution"`
}

// Agent describes one crew member: its role, the LLM behind it, and the
// analysis tools it may call. Tool names are display names resolved
// through the registry, tolerant of whitespace and Unicode variation.
type Agent struct {
	Role      string         `json:"role"`
	Goal      string         `json:"goal"`
	Backstory string         `json:"backstory,omitempty"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Tools     []string       `json:"tools,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// Task describes a unit of modernization work assigned to an agent.
type Task struct {
	Description    string            `json:"description"`
	Agent          string            `json:"agent"`
	ExpectedOutput string            `json:"expected_output"`
	OutputFile     string            `json:"output_file,omitempty"`
	Inputs         map[string]string `json:"inputs,omitempty"`
	Context        []string          `json:"context,omitempty"`
}

// ExecutionConfig controls task scheduling.
type ExecutionConfig struct {
	Strategy  string                      `json:"strategy"`
	TaskOrder []string                    `json:"task_order,omitempty"`
	Tasks     map[string]TaskDependencies `json:"tasks,omitempty"`
}

// TaskDependencies declares the tasks that must complete before a given
// task can start. Used by the custom strategy.
type TaskDependencies struct {
	DependsOn []string `json:"depends_on"`
}

// LoadFromFile reads and parses a crew JSON file at the given path.
func LoadFromFile(path string) (*Crew, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading crew file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses crew JSON from bytes.
func LoadFromBytes(data []byte) (*Crew, error) {
	var c Crew
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing crew JSON: %w", err)
	}
	return &c, nil
}
