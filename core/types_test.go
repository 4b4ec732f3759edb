package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuncTool(t *testing.T) {
	called := false
	ft := NewFuncTool("Echo Tool", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		called = true
		return map[string]any{"echo": args["value"]}, nil
	})

	if ft.Name() != "Echo Tool" {
		t.Errorf("Name = %q", ft.Name())
	}

	out, err := ft.Invoke(context.Background(), map[string]any{"value": "ping"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !called {
		t.Error("function was not called")
	}
	if out["echo"] != "ping" {
		t.Errorf("echo = %v", out["echo"])
	}
}

func TestFuncTool_NilFunction(t *testing.T) {
	ft := NewFuncTool("noop", nil)
	out, err := ft.Invoke(context.Background(), nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out == nil {
		t.Error("expected empty map, got nil")
	}
}

func TestFuncTool_ErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	ft := NewFuncTool("failing", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return nil, boom
	})
	if _, err := ft.Invoke(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestLLMTokenUsage_Add(t *testing.T) {
	a := LLMTokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15, CostUSD: 0.01}
	b := LLMTokenUsage{InputTokens: 20, OutputTokens: 10, TotalTokens: 30, CostUSD: 0.02}

	sum := a.Add(b)
	if sum.InputTokens != 30 || sum.OutputTokens != 15 || sum.TotalTokens != 45 {
		t.Errorf("sum = %+v", sum)
	}
	if sum.CostUSD < 0.029 || sum.CostUSD > 0.031 {
		t.Errorf("CostUSD = %v", sum.CostUSD)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.Backoff != time.Second {
		t.Errorf("Backoff = %v, want 1s", p.Backoff)
	}
}
