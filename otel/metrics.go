package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/petal-labs/retrofit/runtime"
)

// MetricsHandler translates Retrofit runtime events into OpenTelemetry metrics.
// It records counters and histograms for task executions, failures, tool
// invocations, and run durations.
type MetricsHandler struct {
	taskExecutions  metric.Int64Counter
	taskFailures    metric.Int64Counter
	toolInvocations metric.Int64Counter
	taskDuration    metric.Float64Histogram
	runDuration     metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to create
// instruments for recording Retrofit runtime metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	taskExec, err := meter.Int64Counter("retrofit.task.executions",
		metric.WithDescription("Number of task executions"),
	)
	if err != nil {
		return nil, err
	}

	taskFail, err := meter.Int64Counter("retrofit.task.failures",
		metric.WithDescription("Number of task failures"),
	)
	if err != nil {
		return nil, err
	}

	toolInv, err := meter.Int64Counter("retrofit.tool.invocations",
		metric.WithDescription("Number of tool invocations"),
	)
	if err != nil {
		return nil, err
	}

	taskDur, err := meter.Float64Histogram("retrofit.task.duration",
		metric.WithDescription("Duration of task execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("retrofit.run.duration",
		metric.WithDescription("Duration of crew run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		taskExecutions:  taskExec,
		taskFailures:    taskFail,
		toolInvocations: toolInv,
		taskDuration:    taskDur,
		runDuration:     runDur,
	}, nil
}

// Handle processes a runtime event and records the appropriate metrics.
// It implements runtime.EventHandler semantics.
func (h *MetricsHandler) Handle(e runtime.Event) {
	switch e.Kind {
	case runtime.EventTaskFinished:
		h.handleTaskFinished(e)
	case runtime.EventTaskFailed:
		h.handleTaskFailed(e)
	case runtime.EventToolResult:
		h.handleToolResult(e)
	case runtime.EventRunFinished:
		h.handleRunFinished(e)
	}
}

// handleTaskFinished increments the execution counter and records duration.
func (h *MetricsHandler) handleTaskFinished(e runtime.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("task_id", e.TaskID),
		attribute.String("agent", e.Agent),
	)
	h.taskExecutions.Add(ctx, 1, attrs)
	h.taskDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}

// handleTaskFailed increments the failure counter.
func (h *MetricsHandler) handleTaskFailed(e runtime.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("task_id", e.TaskID),
		attribute.String("agent", e.Agent),
	)
	h.taskFailures.Add(ctx, 1, attrs)
}

// handleToolResult counts one tool invocation, tagged with its outcome.
func (h *MetricsHandler) handleToolResult(e runtime.Event) {
	toolName := ""
	if name, ok := e.Payload["tool"].(string); ok {
		toolName = name
	}
	_, failed := e.Payload["error"]

	h.toolInvocations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tool_name", toolName),
		attribute.Bool("success", !failed),
	))
}

// handleRunFinished records the crew run duration.
func (h *MetricsHandler) handleRunFinished(e runtime.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("run_id", e.RunID),
	)
	h.runDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}
