package runtime

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/petal-labs/retrofit/crew"
)

var (
	taskRefPattern  = regexp.MustCompile(`\{\{\s*tasks\.([a-z][a-z0-9_]*)\.output\s*\}\}`)
	inputRefPattern = regexp.MustCompile(`\{\{\s*inputs\.([A-Za-z0-9_]+)\s*\}\}`)
)

// buildSystemPrompt renders the agent's persona as the system prompt.
func buildSystemPrompt(agent crew.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.\n", agent.Role)
	fmt.Fprintf(&b, "\nYour goal: %s\n", agent.Goal)
	if agent.Backstory != "" {
		fmt.Fprintf(&b, "\nBackstory: %s\n", agent.Backstory)
	}
	if len(agent.Tools) > 0 {
		fmt.Fprintf(&b, "\nYou have access to the following tools: %s.\n",
			strings.Join(agent.Tools, ", "))
	}
	return b.String()
}

// buildUserPrompt renders the task prompt: the description with prior
// task outputs and run inputs interpolated, the declared inputs, the
// context blocks from upstream tasks, and the expected output.
func buildUserPrompt(task crew.Task, outputs map[string]TaskResult, inputs map[string]string) string {
	var b strings.Builder
	b.WriteString(interpolate(task.Description, outputs, inputs))
	b.WriteString("\n")

	for _, key := range sortedKeys(task.Inputs) {
		fmt.Fprintf(&b, "\n%s: %s", key, interpolate(task.Inputs[key], outputs, inputs))
	}

	for _, ref := range task.Context {
		prior, ok := outputs[ref]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n--- Output of task %s ---\n%s\n", ref, prior.Output)
	}

	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nExpected output: %s\n", task.ExpectedOutput)
	}
	return b.String()
}

// interpolate replaces {{tasks.<id>.output}} with the recorded output of
// a completed task and {{inputs.<name>}} with a run input. Unresolved
// references are left in place so they are visible in the prompt.
func interpolate(s string, outputs map[string]TaskResult, inputs map[string]string) string {
	s = taskRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		id := taskRefPattern.FindStringSubmatch(match)[1]
		if prior, ok := outputs[id]; ok {
			return prior.Output
		}
		return match
	})
	return inputRefPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := inputRefPattern.FindStringSubmatch(match)[1]
		if value, ok := inputs[name]; ok {
			return value
		}
		return match
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
