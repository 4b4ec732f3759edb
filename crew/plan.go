package crew

import (
	"fmt"
	"sort"
)

// Plan computes the task execution order for a validated crew.
//
// Sequential crews run in their declared task_order. Parallel crews
// have no ordering constraint, so tasks are returned in stable sorted
// order for deterministic runs. Custom crews are ordered topologically
// along depends_on edges, ties broken by task ID.
func Plan(c *Crew) ([]string, error) {
	switch c.Execution.Strategy {
	case "sequential":
		order := make([]string, len(c.Execution.TaskOrder))
		copy(order, c.Execution.TaskOrder)
		return order, nil
	case "parallel":
		order := make([]string, 0, len(c.Tasks))
		for id := range c.Tasks {
			order = append(order, id)
		}
		sort.Strings(order)
		return order, nil
	case "custom":
		return topologicalOrder(c)
	}
	return nil, fmt.Errorf("unknown execution strategy %q", c.Execution.Strategy)
}

func topologicalOrder(c *Crew) ([]string, error) {
	inDegree := make(map[string]int, len(c.Tasks))
	successors := make(map[string][]string)
	for id := range c.Tasks {
		inDegree[id] = 0
	}
	for id, deps := range c.Execution.Tasks {
		for _, dep := range deps.DependsOn {
			if _, ok := inDegree[dep]; !ok {
				return nil, fmt.Errorf("task %q depends on undefined task %q", id, dep)
			}
			successors[dep] = append(successors[dep], id)
			inDegree[id]++
		}
	}

	ready := make([]string, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(c.Tasks))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		order = append(order, current)

		next := make([]string, 0)
		for _, succ := range successors[current] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				next = append(next, succ)
			}
		}
		sort.Strings(next)
		ready = append(ready, next...)
	}

	if len(order) < len(c.Tasks) {
		return nil, fmt.Errorf("dependency cycle prevents ordering %d of %d tasks", len(c.Tasks)-len(order), len(c.Tasks))
	}
	return order, nil
}
