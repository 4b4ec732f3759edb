package runtime

import (
	"context"
	"testing"
)

func TestContextWithEmitterRoundTrip(t *testing.T) {
	var got []Event
	ctx := ContextWithEmitter(context.Background(), func(e Event) {
		got = append(got, e)
	})

	emit := EmitterFromContext(ctx)
	emit(NewEvent(EventToolCall, "run-1"))

	if len(got) != 1 || got[0].Kind != EventToolCall {
		t.Errorf("events = %+v", got)
	}
}

func TestEmitterFromContextDefaultsToNoop(t *testing.T) {
	emit := EmitterFromContext(context.Background())
	// Must not panic.
	emit(NewEvent(EventRunStarted, "run-1"))
}
