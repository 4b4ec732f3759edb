package crew

import (
	"reflect"
	"testing"
)

func TestPlanSequential(t *testing.T) {
	c := &Crew{
		Tasks: map[string]Task{"a": {}, "b": {}, "c": {}},
		Execution: ExecutionConfig{
			Strategy:  "sequential",
			TaskOrder: []string{"b", "a", "c"},
		},
	}
	order, err := Plan(c)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"b", "a", "c"}) {
		t.Errorf("order = %v, want declared task_order", order)
	}
}

func TestPlanParallelIsDeterministic(t *testing.T) {
	c := &Crew{
		Tasks:     map[string]Task{"z": {}, "a": {}, "m": {}},
		Execution: ExecutionConfig{Strategy: "parallel"},
	}
	order, err := Plan(c)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"a", "m", "z"}) {
		t.Errorf("order = %v, want sorted", order)
	}
}

func TestPlanCustomTopological(t *testing.T) {
	c := &Crew{
		Tasks: map[string]Task{
			"analyze": {}, "migrate": {}, "test": {}, "report": {},
		},
		Execution: ExecutionConfig{
			Strategy: "custom",
			Tasks: map[string]TaskDependencies{
				"migrate": {DependsOn: []string{"analyze"}},
				"test":    {DependsOn: []string{"migrate"}},
				"report":  {DependsOn: []string{"test", "analyze"}},
			},
		},
	}
	order, err := Plan(c)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if !(pos["analyze"] < pos["migrate"] && pos["migrate"] < pos["test"] && pos["test"] < pos["report"]) {
		t.Errorf("order %v violates dependencies", order)
	}
}

func TestPlanCustomCycleFails(t *testing.T) {
	c := &Crew{
		Tasks: map[string]Task{"a": {}, "b": {}},
		Execution: ExecutionConfig{
			Strategy: "custom",
			Tasks: map[string]TaskDependencies{
				"a": {DependsOn: []string{"b"}},
				"b": {DependsOn: []string{"a"}},
			},
		},
	}
	if _, err := Plan(c); err == nil {
		t.Error("cycle should fail planning")
	}
}

func TestPlanUnknownStrategy(t *testing.T) {
	c := &Crew{Execution: ExecutionConfig{Strategy: "mystery"}}
	if _, err := Plan(c); err == nil {
		t.Error("unknown strategy should fail")
	}
}
