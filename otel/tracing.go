// Package otel provides OpenTelemetry integration for Retrofit runtime events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/retrofit/runtime"
)

// TracingHandler translates Retrofit runtime events into OpenTelemetry spans.
// It maintains maps of active run and task spans, creating and ending them
// based on event kind.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	runSpans  map[string]trace.Span      // runID -> span
	runCtxs   map[string]context.Context // runID -> context (for child spans)
	taskSpans map[string]trace.Span      // runID:taskID -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from runtime events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		taskSpans: make(map[string]trace.Span),
	}
}

// Handle processes a runtime event and creates or ends spans accordingly.
// It implements runtime.EventHandler semantics.
func (h *TracingHandler) Handle(e runtime.Event) {
	switch e.Kind {
	case runtime.EventRunStarted:
		h.handleRunStarted(e)
	case runtime.EventTaskStarted:
		h.handleTaskStarted(e)
	case runtime.EventTaskFinished:
		h.handleTaskFinished(e)
	case runtime.EventTaskFailed:
		h.handleTaskFailed(e)
	case runtime.EventToolCall:
		h.handleToolEvent(e)
	case runtime.EventToolResult:
		h.handleToolEvent(e)
	case runtime.EventRunFinished:
		h.handleRunFinished(e)
	}
}

// handleRunStarted creates a root span for the run.
func (h *TracingHandler) handleRunStarted(e runtime.Event) {
	crewName := ""
	if name, ok := e.Payload["crew"]; ok {
		if s, ok := name.(string); ok {
			crewName = s
		}
	}

	spanName := "run:" + e.RunID
	if crewName != "" {
		spanName = "run:" + crewName
	}

	ctx, span := h.tracer.Start(context.Background(), spanName,
		trace.WithAttributes(
			attribute.String("retrofit.run_id", e.RunID),
		),
		trace.WithTimestamp(e.Time),
	)

	if crewName != "" {
		span.SetAttributes(attribute.String("retrofit.crew", crewName))
	}

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

// handleTaskStarted creates a child span under the run span.
func (h *TracingHandler) handleTaskStarted(e runtime.Event) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()

	if !ok {
		// No parent run span; start from background context.
		parentCtx = context.Background()
	}

	spanName := "task:" + e.TaskID

	_, span := h.tracer.Start(parentCtx, spanName,
		trace.WithAttributes(
			attribute.String("retrofit.run_id", e.RunID),
			attribute.String("retrofit.task_id", e.TaskID),
			attribute.String("retrofit.agent", e.Agent),
		),
		trace.WithTimestamp(e.Time),
	)

	key := e.RunID + ":" + e.TaskID
	h.mu.Lock()
	h.taskSpans[key] = span
	h.mu.Unlock()
}

// handleTaskFinished ends the task span with success status.
func (h *TracingHandler) handleTaskFinished(e runtime.Event) {
	key := e.RunID + ":" + e.TaskID

	h.mu.Lock()
	span, ok := h.taskSpans[key]
	if ok {
		delete(h.taskSpans, key)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("retrofit.duration", e.Elapsed.String()),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleTaskFailed ends the task span with error status.
func (h *TracingHandler) handleTaskFailed(e runtime.Event) {
	key := e.RunID + ":" + e.TaskID

	h.mu.Lock()
	span, ok := h.taskSpans[key]
	if ok {
		delete(h.taskSpans, key)
	}
	h.mu.Unlock()

	if ok {
		errMsg := "unknown error"
		if msg, found := e.Payload["error"]; found {
			if s, ok := msg.(string); ok {
				errMsg = s
			}
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(
			spanError(errMsg),
			trace.WithTimestamp(e.Time),
		)
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleToolEvent adds a span event for tool.call and tool.result events.
func (h *TracingHandler) handleToolEvent(e runtime.Event) {
	key := e.RunID + ":" + e.TaskID

	h.mu.RLock()
	span, ok := h.taskSpans[key]
	h.mu.RUnlock()

	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("retrofit.event_kind", string(e.Kind)),
	}

	if toolName, found := e.Payload["tool"]; found {
		if s, ok := toolName.(string); ok {
			attrs = append(attrs, attribute.String("retrofit.tool_name", s))
		}
	}
	if errMsg, found := e.Payload["error"]; found {
		if s, ok := errMsg.(string); ok {
			attrs = append(attrs, attribute.String("retrofit.tool_error", s))
		}
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// handleRunFinished ends the root run span.
func (h *TracingHandler) handleRunFinished(e runtime.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		status := ""
		if s, found := e.Payload["status"]; found {
			if str, ok := s.(string); ok {
				status = str
			}
		}

		span.SetAttributes(
			attribute.String("retrofit.duration", e.Elapsed.String()),
			attribute.String("retrofit.status", status),
		)

		if status == "failed" {
			errMsg := "run failed"
			if msg, found := e.Payload["error"]; found {
				if s, ok := msg.(string); ok {
					errMsg = s
				}
			}
			span.SetStatus(codes.Error, errMsg)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveSpanContext returns the SpanContext for the active task span
// identified by runID and taskID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveSpanContext(runID, taskID string) trace.SpanContext {
	key := runID + ":" + taskID

	h.mu.RLock()
	span, ok := h.taskSpans[key]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveRunSpanContext returns the SpanContext for the active run span
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
