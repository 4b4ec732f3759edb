package tool

import (
	"context"
	"fmt"
)

// Unavailable is the placeholder tool substituted at registry build time
// when a real implementation could not be constructed. Invoking it
// returns a structured "unavailable" payload instead of an error, so a
// crew run that references an optional tool degrades to a descriptive
// result rather than failing lookup.
type Unavailable struct {
	name   string
	reason string
}

// NewUnavailable creates a placeholder for the named tool.
func NewUnavailable(name, reason string) *Unavailable {
	return &Unavailable{name: name, reason: reason}
}

// Name returns the canonical name of the tool this placeholder stands in for.
func (u *Unavailable) Name() string { return u.name }

// Manifest publishes a minimal manifest naming the unavailable tool.
func (u *Unavailable) Manifest() Manifest {
	return Manifest{
		Name:        u.name,
		Description: fmt.Sprintf("Placeholder tool: real implementation unavailable (%s)", u.reason),
		Outputs: map[string]FieldSpec{
			"error": {Type: TypeString},
		},
	}
}

// Invoke reports the unavailability as a payload, never as an error.
func (u *Unavailable) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{
		"error": fmt.Sprintf("%s not installed: %s", u.name, u.reason),
	}, nil
}
