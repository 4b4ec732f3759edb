package crew

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/petal-labs/retrofit/registry"
)

// validStrategies lists the valid execution strategies.
var validStrategies = map[string]bool{
	"sequential": true,
	"parallel":   true,
	"custom":     true,
}

// validProviders lists the known LLM provider names.
var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"google":    true,
	"cohere":    true,
	"mistral":   true,
	"groq":      true,
	"ollama":    true,
}

// idPattern matches slug-format identifiers: lowercase letter, then
// lowercase letters/digits/underscores.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const maxIDLength = 64

// taskRefPattern matches {{tasks.some_task.output}} template references.
var taskRefPattern = regexp.MustCompile(`\{\{tasks\.([a-zA-Z0-9_]+)\.[^}]+\}\}`)

// Validate checks the crew for structural errors against the given tool
// registry and returns a list of diagnostics.
func Validate(c *Crew, reg *registry.Registry) []Diagnostic {
	if c == nil {
		return []Diagnostic{errDiag("RF-010", "crew is nil", "")}
	}

	diags := make([]Diagnostic, 0)

	diags = append(diags, validateIDFormats(c)...)
	diags = append(diags, validateAgents(c, reg)...)
	diags = append(diags, validateTasks(c)...)

	strategy, strategyDiags := validateExecutionStrategy(c)
	diags = append(diags, strategyDiags...)

	switch strategy {
	case "sequential":
		diags = append(diags, validateSequential(c)...)
	case "custom":
		diags = append(diags, validateCustom(c)...)
	}

	diags = append(diags, validateOrphanTasks(c)...)

	return diags
}

func validateIDFormats(c *Crew) []Diagnostic {
	diags := make([]Diagnostic, 0)

	for id := range c.Agents {
		if !isValidID(id) {
			diags = append(diags, errDiag("RF-012",
				fmt.Sprintf("Agent ID %q must match [a-z][a-z0-9_]* and be at most %d characters", id, maxIDLength),
				fmt.Sprintf("agents.%s", id)))
		}
	}
	for id := range c.Tasks {
		if !isValidID(id) {
			diags = append(diags, errDiag("RF-012",
				fmt.Sprintf("Task ID %q must match [a-z][a-z0-9_]* and be at most %d characters", id, maxIDLength),
				fmt.Sprintf("tasks.%s", id)))
		}
	}

	return diags
}

func validateAgents(c *Crew, reg *registry.Registry) []Diagnostic {
	diags := make([]Diagnostic, 0)

	for id, ag := range c.Agents {
		path := fmt.Sprintf("agents.%s", id)
		diags = append(diags, validateAgentRequiredFields(id, path, ag)...)
		diags = append(diags, validateAgentTools(id, path, ag.Tools, reg)...)
	}

	return diags
}

func validateAgentRequiredFields(id, path string, ag Agent) []Diagnostic {
	diags := make([]Diagnostic, 0)

	// RF-010: required fields on agents.
	if ag.Role == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Agent %q is missing required field \"role\"", id), path+".role"))
	}
	if ag.Goal == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Agent %q is missing required field \"goal\"", id), path+".goal"))
	}
	if ag.Provider == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Agent %q is missing required field \"provider\"", id), path+".provider"))
	}
	if ag.Model == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Agent %q is missing required field \"model\"", id), path+".model"))
	}

	// RF-002: provider must be known.
	if ag.Provider != "" && !validProviders[ag.Provider] {
		diags = append(diags, errDiag("RF-002",
			fmt.Sprintf("Agent %q has invalid provider %q", id, ag.Provider), path+".provider"))
	}

	return diags
}

// validateAgentTools resolves every tool reference through the registry.
// A reference that only fuzzy-matches produces an error carrying the
// suggestion; a reference that resolves to a degraded placeholder
// produces a warning so the run can proceed with reduced capability.
func validateAgentTools(agentID, path string, tools []string, reg *registry.Registry) []Diagnostic {
	diags := make([]Diagnostic, 0)

	for i, name := range tools {
		toolPath := fmt.Sprintf("%s.tools[%d]", path, i)

		_, err := reg.Resolve(strings.TrimSpace(name))
		if err != nil {
			var lerr *registry.LookupError
			if errors.As(err, &lerr) && lerr.Suggestion != "" {
				diags = append(diags, errDiag("RF-004",
					fmt.Sprintf("Agent %q references unknown tool %q, did you mean %q?", agentID, name, lerr.Suggestion),
					toolPath))
			} else {
				diags = append(diags, errDiag("RF-004",
					fmt.Sprintf("Agent %q references unknown tool %q", agentID, name),
					toolPath))
			}
			continue
		}

		if canonical := canonicalName(reg, name); canonical != "" && reg.IsStub(canonical) {
			diags = append(diags, warnDiag("RF-014",
				fmt.Sprintf("Agent %q tool %q is registered but unavailable; invocations will return a placeholder result", agentID, canonical),
				toolPath))
		}
	}

	return diags
}

// canonicalName maps a tolerant reference back to the canonical name it
// resolves to.
func canonicalName(reg *registry.Registry, key string) string {
	key = strings.TrimSpace(key)
	for _, name := range reg.Names() {
		if name == key || registry.Normalize(name) == registry.Normalize(key) {
			return name
		}
	}
	return ""
}

func validateTasks(c *Crew) []Diagnostic {
	diags := make([]Diagnostic, 0)

	for id, task := range c.Tasks {
		path := fmt.Sprintf("tasks.%s", id)
		diags = append(diags, validateTaskRequiredFields(id, path, task)...)
		diags = append(diags, validateTaskAgentReference(c, id, path, task)...)
		diags = append(diags, validateTaskInputReferences(c, id, path, task)...)
		diags = append(diags, validateTaskContextReferences(c, id, path, task)...)
	}

	return diags
}

func validateTaskRequiredFields(id, path string, task Task) []Diagnostic {
	diags := make([]Diagnostic, 0)

	if task.Description == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Task %q is missing required field \"description\"", id), path+".description"))
	}
	if task.Agent == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Task %q is missing required field \"agent\"", id), path+".agent"))
	}
	if task.ExpectedOutput == "" {
		diags = append(diags, errDiag("RF-010",
			fmt.Sprintf("Task %q is missing required field \"expected_output\"", id), path+".expected_output"))
	}

	return diags
}

func validateTaskAgentReference(c *Crew, id, path string, task Task) []Diagnostic {
	if task.Agent == "" {
		return nil
	}
	if _, ok := c.Agents[task.Agent]; ok {
		return nil
	}
	return []Diagnostic{
		errDiag("RF-001",
			fmt.Sprintf("Task %q references undefined agent %q", id, task.Agent),
			path+".agent"),
	}
}

func validateTaskInputReferences(c *Crew, id, path string, task Task) []Diagnostic {
	diags := make([]Diagnostic, 0)

	// RF-008: input template references must name defined tasks.
	for param, tmpl := range task.Inputs {
		for _, ref := range extractTaskRefs(tmpl) {
			if _, ok := c.Tasks[ref]; ok {
				continue
			}
			diags = append(diags, errDiag("RF-008",
				fmt.Sprintf("Unresolved reference %q in task %q", tmpl, id),
				fmt.Sprintf("%s.inputs.%s", path, param)))
		}
	}

	return diags
}

func validateTaskContextReferences(c *Crew, id, path string, task Task) []Diagnostic {
	diags := make([]Diagnostic, 0)

	for i, ctxRef := range task.Context {
		if _, ok := c.Tasks[ctxRef]; ok {
			continue
		}
		diags = append(diags, errDiag("RF-008",
			fmt.Sprintf("Task %q context references undefined task %q", id, ctxRef),
			fmt.Sprintf("%s.context[%d]", path, i)))
	}

	return diags
}

func validateExecutionStrategy(c *Crew) (string, []Diagnostic) {
	diags := make([]Diagnostic, 0)
	strategy := c.Execution.Strategy

	if strategy == "" {
		diags = append(diags, errDiag("RF-010",
			"Execution strategy is required", "execution.strategy"))
		return strategy, diags
	}
	if !validStrategies[strategy] {
		diags = append(diags, errDiag("RF-005",
			fmt.Sprintf("Invalid execution strategy %q (must be sequential, parallel, or custom)", strategy),
			"execution.strategy"))
	}

	return strategy, diags
}

// validateSequential requires task_order listing every defined task.
func validateSequential(c *Crew) []Diagnostic {
	var diags []Diagnostic

	if len(c.Execution.TaskOrder) == 0 {
		diags = append(diags, errDiag("RF-006",
			"Sequential strategy requires \"task_order\" listing all task IDs",
			"execution.task_order"))
		return diags
	}

	ordered := make(map[string]bool, len(c.Execution.TaskOrder))
	for _, id := range c.Execution.TaskOrder {
		ordered[id] = true
		if _, ok := c.Tasks[id]; !ok {
			diags = append(diags, errDiag("RF-006",
				fmt.Sprintf("task_order references undefined task %q", id),
				"execution.task_order"))
		}
	}
	for id := range c.Tasks {
		if !ordered[id] {
			diags = append(diags, errDiag("RF-006",
				fmt.Sprintf("Task %q is not listed in task_order", id),
				"execution.task_order"))
		}
	}

	return diags
}

// validateCustom requires depends_on to form a DAG over defined tasks.
func validateCustom(c *Crew) []Diagnostic {
	var diags []Diagnostic

	if c.Execution.Tasks == nil {
		return diags
	}

	inDegree := make(map[string]int)
	successors := make(map[string][]string)
	allTasks := make(map[string]bool)

	for id := range c.Tasks {
		allTasks[id] = true
		inDegree[id] = 0
	}

	for id, deps := range c.Execution.Tasks {
		for _, dep := range deps.DependsOn {
			if !allTasks[dep] {
				diags = append(diags, errDiag("RF-008",
					fmt.Sprintf("Task %q depends_on references undefined task %q", id, dep),
					fmt.Sprintf("execution.tasks.%s.depends_on", id)))
				continue
			}
			successors[dep] = append(successors[dep], id)
			inDegree[id]++
		}
	}

	// Kahn's algorithm for cycle detection
	queue := make([]string, 0)
	for id := range allTasks {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range successors[current] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if visited < len(allTasks) {
		var cycleNodes []string
		for id := range allTasks {
			if inDegree[id] > 0 {
				cycleNodes = append(cycleNodes, id)
			}
		}
		diags = append(diags, errDiag("RF-007",
			fmt.Sprintf("Dependency cycle detected involving tasks: %v", cycleNodes),
			"execution.tasks"))
	}

	return diags
}

// validateOrphanTasks checks that every defined task is reachable from
// the execution block.
func validateOrphanTasks(c *Crew) []Diagnostic {
	var diags []Diagnostic

	switch c.Execution.Strategy {
	case "sequential":
		// covered by RF-006
		return diags
	case "parallel":
		// all tasks implicitly included
		return diags
	case "custom":
		if c.Execution.Tasks == nil {
			for id := range c.Tasks {
				diags = append(diags, errDiag("RF-009",
					fmt.Sprintf("Task %q is not referenced in execution block", id),
					fmt.Sprintf("tasks.%s", id)))
			}
			return diags
		}
		referenced := make(map[string]bool)
		for id, deps := range c.Execution.Tasks {
			referenced[id] = true
			for _, dep := range deps.DependsOn {
				referenced[dep] = true
			}
		}
		for id := range c.Tasks {
			if !referenced[id] {
				diags = append(diags, errDiag("RF-009",
					fmt.Sprintf("Task %q is not referenced in execution block", id),
					fmt.Sprintf("tasks.%s", id)))
			}
		}
	}

	return diags
}

// extractTaskRefs finds all {{tasks.X.output}} references in a template.
func extractTaskRefs(tmpl string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, match := range taskRefPattern.FindAllStringSubmatch(tmpl, -1) {
		if len(match) >= 2 && !seen[match[1]] {
			refs = append(refs, match[1])
			seen[match[1]] = true
		}
	}
	return refs
}

func isValidID(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return idPattern.MatchString(id)
}
