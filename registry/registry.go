// Package registry provides the tool-name registry for Retrofit.
// It maps human-readable tool names to zero-argument factories, with a
// tolerant lookup path that survives whitespace and Unicode variation
// and offers fuzzy-match suggestions on failure.
package registry

import (
	"fmt"
	"log"
	"sync"

	"github.com/petal-labs/retrofit/core"
)

// Verbose enables key-set logging when a registry is built. Set it
// before the first Global() call to see what the process can resolve.
var Verbose bool

// Registration pairs a canonical display name with its tool factory.
type Registration struct {
	Name    string
	Factory core.Factory
	// Stub marks registrations whose real implementation was unavailable
	// at construction time and was replaced by a placeholder factory.
	Stub bool
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the singleton registry instance. On first call it
// builds the registry from all built-in tool registrations.
func Global() *Registry {
	globalOnce.Do(func() {
		global = New(builtinRegistrations())
	})
	return global
}

// Registry is an immutable name-to-factory mapping with tolerant lookup.
// It holds two structures: the canonical map keyed by the exact display
// name, and a derived index keyed by the normalized form of each name.
// Both are built once by New and never mutated afterwards, so concurrent
// readers need no locking.
type Registry struct {
	order      []string                // canonical names in registration order
	factories  map[string]core.Factory // canonical name -> factory
	stubs      map[string]bool         // canonical name -> placeholder flag
	normalized map[string]string       // Normalize(name) -> canonical name
}

// New builds a Registry from the given registrations. Later registrations
// with a duplicate canonical name overwrite earlier ones without
// duplicating the name in iteration order.
func New(regs []Registration) *Registry {
	r := &Registry{
		factories:  make(map[string]core.Factory, len(regs)),
		stubs:      make(map[string]bool),
		normalized: make(map[string]string, len(regs)),
	}
	for _, reg := range regs {
		if _, exists := r.factories[reg.Name]; !exists {
			r.order = append(r.order, reg.Name)
		}
		r.factories[reg.Name] = reg.Factory
		if reg.Stub {
			r.stubs[reg.Name] = true
		} else {
			delete(r.stubs, reg.Name)
		}
		r.normalized[Normalize(reg.Name)] = reg.Name
	}
	if Verbose {
		log.Printf("tool registry: %d names registered: %v", len(r.order), r.order)
	}
	return r
}

// Resolve returns the factory registered under the given key.
//
// Resolution order, first match wins:
//  1. exact match against a canonical name (zero normalization cost)
//  2. match of Normalize(key) against the normalized index
//  3. failure, with the closest canonical name as a suggestion when one
//     clears the similarity cutoff
//
// A failed lookup never falls back to a default factory; the returned
// *LookupError carries the original key and the optional suggestion so
// the caller can self-correct.
func (r *Registry) Resolve(key string) (core.Factory, error) {
	if f, ok := r.factories[key]; ok {
		return f, nil
	}

	nkey := Normalize(key)
	if canonical, ok := r.normalized[nkey]; ok {
		return r.factories[canonical], nil
	}

	if suggestion, ok := r.closest(nkey); ok {
		return nil, &LookupError{Key: key, Suggestion: suggestion}
	}
	return nil, &LookupError{Key: key}
}

// Has reports whether the key resolves exactly or after normalization.
// It never consults the fuzzy matcher.
func (r *Registry) Has(key string) bool {
	if _, ok := r.factories[key]; ok {
		return true
	}
	_, ok := r.normalized[Normalize(key)]
	return ok
}

// IsStub reports whether the canonical name is backed by a placeholder
// factory substituted for an unavailable implementation.
func (r *Registry) IsStub(name string) bool {
	return r.stubs[name]
}

// Names returns all canonical names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.factories)
}

// closest returns the canonical name whose normalized form is most
// similar to the (already normalized) key, provided the similarity
// clears suggestCutoff. Ties keep the first-registered candidate.
func (r *Registry) closest(nkey string) (string, bool) {
	best := ""
	bestScore := 0.0
	for _, canonical := range r.order {
		score := similarity(nkey, Normalize(canonical))
		if score > bestScore {
			best = canonical
			bestScore = score
		}
	}
	if bestScore >= suggestCutoff {
		return best, true
	}
	return "", false
}

// LookupError is returned when a key cannot be resolved to any
// registered tool. Suggestion is empty when no candidate cleared the
// similarity cutoff.
type LookupError struct {
	Key        string
	Suggestion string
}

// Error formats the failure, naming the suggested canonical key when
// one exists.
func (e *LookupError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown tool %q (closest: %q)", e.Key, e.Suggestion)
	}
	return fmt.Sprintf("unknown tool %q", e.Key)
}
