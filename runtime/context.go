package runtime

import "context"

// emitterKey is an unexported type used as the context key for EventHandler.
// Using an unexported struct type prevents collisions with keys from other packages.
type emitterKey struct{}

// ContextWithEmitter attaches an event handler to the context so that
// long-running tools can surface progress events.
func ContextWithEmitter(ctx context.Context, emit EventHandler) context.Context {
	return context.WithValue(ctx, emitterKey{}, emit)
}

// EmitterFromContext retrieves the event handler from the context.
// Returns a no-op handler if none is set.
func EmitterFromContext(ctx context.Context) EventHandler {
	if emit, ok := ctx.Value(emitterKey{}).(EventHandler); ok {
		return emit
	}
	return func(Event) {}
}
