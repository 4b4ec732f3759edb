package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/retrofit/core"
	"github.com/petal-labs/retrofit/crew"
	"github.com/petal-labs/retrofit/registry"
)

// Runtime errors
var (
	ErrRunCanceled   = errors.New("run was canceled")
	ErrTaskExecution = errors.New("task execution failed")
)

// ClientFactory produces an LLM client for an agent's provider and model.
// The llmprovider package supplies the production implementation; tests
// substitute scripted clients.
type ClientFactory func(agent crew.Agent) (core.LLMClient, error)

// Runner executes crew plans sequentially.
type Runner struct {
	reg     *registry.Registry
	clients ClientFactory
}

// NewRunner creates a runner that resolves tools through reg and LLM
// clients through the factory.
func NewRunner(reg *registry.Registry, clients ClientFactory) *Runner {
	return &Runner{reg: reg, clients: clients}
}

// RunOptions controls execution behavior.
type RunOptions struct {
	// ContinueOnError records task failures and proceeds instead of aborting.
	ContinueOnError bool

	// Retry configures per-task LLM call retries.
	// Zero value means core.DefaultRetryPolicy.
	Retry core.RetryPolicy

	// MaxToolHops bounds the tool-call round trips per task (default: 8).
	MaxToolHops int

	// Inputs are run-level variables available as {{inputs.<name>}}.
	Inputs map[string]string

	// Now provides the current time (for testing). If nil, uses time.Now.
	Now func() time.Time

	// EventHandler receives events during execution.
	EventHandler EventHandler
}

// DefaultRunOptions returns sensible default options.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		ContinueOnError: false,
		Retry:           core.DefaultRetryPolicy(),
		MaxToolHops:     8,
	}
}

// TaskResult records the outcome of one completed task.
type TaskResult struct {
	TaskID     string
	Agent      string
	Output     string
	OutputFile string
	Usage      core.LLMTokenUsage
	Elapsed    time.Duration
}

// TaskError records a task failure when ContinueOnError is set.
type TaskError struct {
	TaskID  string
	Message string
	At      time.Time
}

// RunResult is the outcome of a full crew run.
type RunResult struct {
	RunID    string
	CrewName string
	Order    []string
	Outputs  map[string]TaskResult
	Errors   []TaskError
	Usage    core.LLMTokenUsage
	Started  time.Time
	Elapsed  time.Duration
}

// Run executes the crew's planned task order. On task failure the run
// aborts with the error wrapped by task ID, unless ContinueOnError is
// set, in which case the failure is recorded and execution proceeds.
func (r *Runner) Run(ctx context.Context, c *crew.Crew, opts RunOptions) (*RunResult, error) {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = core.DefaultRetryPolicy()
	}
	if opts.MaxToolHops <= 0 {
		opts.MaxToolHops = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	order, err := crew.Plan(c)
	if err != nil {
		return nil, fmt.Errorf("planning crew %q: %w", c.Name, err)
	}

	runID := uuid.NewString()
	result := &RunResult{
		RunID:    runID,
		CrewName: c.Name,
		Order:    order,
		Outputs:  make(map[string]TaskResult, len(order)),
		Started:  opts.Now(),
	}

	seq := newSeqGen()
	emit := func(e Event) {
		e.Seq = seq.Next()
		if opts.EventHandler != nil {
			opts.EventHandler(e)
		}
	}

	runStart := result.Started
	emit(NewEvent(EventRunStarted, runID).
		WithPayload("crew", c.Name).
		WithPayload("strategy", c.Execution.Strategy).
		WithPayload("tasks", len(order)))

	var runErr error
	for _, taskID := range order {
		if err := checkRunContext(ctx); err != nil {
			runErr = err
			break
		}

		taskResult, err := r.executeTask(ctx, c, taskID, result.Outputs, opts, emit, runID, runStart)
		if err != nil {
			emit(NewEvent(EventTaskFailed, runID).
				WithTask(taskID, c.Tasks[taskID].Agent).
				WithElapsed(opts.Now().Sub(runStart)).
				WithPayload("error", err.Error()))

			if !opts.ContinueOnError {
				runErr = fmt.Errorf("%w: task %s: %v", ErrTaskExecution, taskID, err)
				break
			}
			result.Errors = append(result.Errors, TaskError{
				TaskID:  taskID,
				Message: err.Error(),
				At:      opts.Now(),
			})
			continue
		}

		result.Outputs[taskID] = taskResult
		result.Usage = result.Usage.Add(taskResult.Usage)
		emit(NewEvent(EventTaskFinished, runID).
			WithTask(taskID, taskResult.Agent).
			WithElapsed(opts.Now().Sub(runStart)).
			WithPayload("usage_total_tokens", taskResult.Usage.TotalTokens))
	}

	result.Elapsed = opts.Now().Sub(runStart)
	finish := NewEvent(EventRunFinished, runID).WithElapsed(result.Elapsed)
	if runErr != nil {
		finish = finish.
			WithPayload("status", "failed").
			WithPayload("error", runErr.Error())
	} else {
		finish = finish.WithPayload("status", "completed")
	}
	emit(finish)

	return result, runErr
}

// executeTask drives one agent conversation to completion, dispatching
// tool calls until the model returns a final text answer.
func (r *Runner) executeTask(
	ctx context.Context,
	c *crew.Crew,
	taskID string,
	outputs map[string]TaskResult,
	opts RunOptions,
	emit EventHandler,
	runID string,
	runStart time.Time,
) (TaskResult, error) {
	task, ok := c.Tasks[taskID]
	if !ok {
		return TaskResult{}, fmt.Errorf("task %q not defined", taskID)
	}
	agent, ok := c.Agents[task.Agent]
	if !ok {
		return TaskResult{}, fmt.Errorf("agent %q not defined", task.Agent)
	}

	client, err := r.clients(agent)
	if err != nil {
		return TaskResult{}, fmt.Errorf("creating client for agent %s: %w", task.Agent, err)
	}

	taskStart := opts.Now()
	emit(NewEvent(EventTaskStarted, runID).
		WithTask(taskID, task.Agent).
		WithElapsed(taskStart.Sub(runStart)).
		WithPayload("model", agent.Model).
		WithPayload("provider", agent.Provider))

	req := core.LLMRequest{
		Model:     agent.Model,
		System:    buildSystemPrompt(agent),
		InputText: buildUserPrompt(task, outputs, opts.Inputs),
	}

	var usage core.LLMTokenUsage
	var finalText string
	ctx = ContextWithEmitter(ctx, emit)

	for hop := 0; ; hop++ {
		resp, err := r.completeWithRetry(ctx, client, req, opts)
		if err != nil {
			return TaskResult{}, err
		}
		usage = usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 || hop >= opts.MaxToolHops {
			finalText = resp.Text
			break
		}

		results := r.dispatchToolCalls(ctx, resp.ToolCalls, opts, emit, runID, taskID, task.Agent, runStart)

		// Continue the conversation: the assistant turn with its tool
		// calls, then a tool turn carrying the results. Clients that do
		// not echo history back get it reconstructed here.
		history := resp.Messages
		if len(history) == 0 {
			history = req.Messages
			if req.InputText != "" {
				history = append(history, core.LLMMessage{Role: "user", Content: req.InputText})
			}
			history = append(history, core.LLMMessage{
				Role:      "assistant",
				Content:   resp.Text,
				ToolCalls: resp.ToolCalls,
			})
		}
		req.Messages = append(history, core.LLMMessage{
			Role:        "tool",
			ToolResults: results,
		})
		req.InputText = ""
	}

	return TaskResult{
		TaskID:     taskID,
		Agent:      task.Agent,
		Output:     finalText,
		OutputFile: task.OutputFile,
		Usage:      usage,
		Elapsed:    opts.Now().Sub(taskStart),
	}, nil
}

// dispatchToolCalls resolves and invokes each requested tool. A failed
// lookup or invocation becomes an error tool result so the model can
// self-correct; it never aborts the task.
func (r *Runner) dispatchToolCalls(
	ctx context.Context,
	calls []core.LLMToolCall,
	opts RunOptions,
	emit EventHandler,
	runID, taskID, agentID string,
	runStart time.Time,
) []core.LLMToolResult {
	results := make([]core.LLMToolResult, 0, len(calls))
	for _, call := range calls {
		emit(NewEvent(EventToolCall, runID).
			WithTask(taskID, agentID).
			WithElapsed(opts.Now().Sub(runStart)).
			WithPayload("tool", call.Name).
			WithPayload("call_id", call.ID))

		out, err := r.invokeTool(ctx, call)
		resultEvent := NewEvent(EventToolResult, runID).
			WithTask(taskID, agentID).
			WithElapsed(opts.Now().Sub(runStart)).
			WithPayload("tool", call.Name).
			WithPayload("call_id", call.ID)

		if err != nil {
			results = append(results, core.LLMToolResult{
				CallID:  call.ID,
				Content: map[string]any{"error": err.Error()},
				IsError: true,
			})
			emit(resultEvent.WithPayload("error", err.Error()))
			continue
		}
		results = append(results, core.LLMToolResult{CallID: call.ID, Content: out})
		emit(resultEvent.WithPayload("keys", len(out)))
	}
	return results
}

func (r *Runner) invokeTool(ctx context.Context, call core.LLMToolCall) (map[string]any, error) {
	factory, err := r.reg.Resolve(call.Name)
	if err != nil {
		return nil, err
	}
	return factory().Invoke(ctx, call.Arguments)
}

// completeWithRetry executes the LLM call with the configured retry
// policy and linear backoff.
func (r *Runner) completeWithRetry(
	ctx context.Context,
	client core.LLMClient,
	req core.LLMRequest,
	opts RunOptions,
) (core.LLMResponse, error) {
	var resp core.LLMResponse
	var lastErr error

	for attempt := 1; attempt <= opts.Retry.MaxAttempts; attempt++ {
		resp, lastErr = client.Complete(ctx, req)
		if lastErr == nil {
			return resp, nil
		}

		if ctx.Err() != nil {
			return core.LLMResponse{}, fmt.Errorf("%w: %v", ErrRunCanceled, ctx.Err())
		}

		// Wait before retry (except on last attempt)
		if attempt < opts.Retry.MaxAttempts {
			select {
			case <-ctx.Done():
				return core.LLMResponse{}, fmt.Errorf("%w: %v", ErrRunCanceled, ctx.Err())
			case <-time.After(opts.Retry.Backoff * time.Duration(attempt)):
			}
		}
	}

	return core.LLMResponse{}, fmt.Errorf("LLM call failed after %d attempts: %w", opts.Retry.MaxAttempts, lastErr)
}

func checkRunContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrRunCanceled, ctx.Err())
	default:
		return nil
	}
}
