package scotch

import (
	"github.com/google/uuid"
	"github.com/tetratelabs/wazero/api"
)

// Environment is the per-instance, host-side context available to host
// function bodies: a memory view, the user state of type S, and a
// back-reference to the instance. The back-reference is intentionally
// non-owning: the instance transitively owns the Environment, so the
// Environment must never extend the instance's lifetime.
type Environment[S any] struct {
	// State is the user-supplied value host functions read and mutate,
	// reached through the Environment passed to every host function
	// registered via RegisterHostFunc1/RegisterHostProc1.
	State S

	// InstanceID correlates every log line a single plugin instance
	// produces across its lifetime.
	InstanceID uuid.UUID

	instance api.Module
}

// NewEnvironment creates an Environment carrying the given initial
// state. The instance back-reference is unset until Builder.Finish
// wires it.
func NewEnvironment[S any](state S) *Environment[S] {
	return &Environment[S]{State: state, InstanceID: uuid.New()}
}

func (e *Environment[S]) bind(instance api.Module) {
	e.instance = instance
}

// Memory returns the instance's linear memory view. Returns nil if
// called before Builder.Finish has wired the back-reference.
func (e *Environment[S]) Memory() api.Memory {
	if e.instance == nil {
		return nil
	}
	return e.instance.Memory()
}
