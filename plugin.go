// Package scotch implements the host side of a sandboxed host/guest
// bridge for WebAssembly plugins: a builder-assembled Plugin wrapping a
// wazero instance, typed export callables, and the wire-format
// descriptors (Managed/Encoded) used to move structured values across
// the call boundary.
package scotch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Plugin is an instantiated guest module together with its resolved
// export cache. Every call into the guest takes mu for its duration:
// only one call may be in-flight at a time, and every call takes the
// writer lock.
type Plugin struct {
	mu sync.RWMutex

	runtime    wazero.Runtime
	module     wazero.CompiledModule
	wasmBytes  []byte
	instance   api.Module
	alloc      *allocator
	exports    *exportCache
	instanceID uuid.UUID
}

// InstanceID returns the correlation identifier generated for this
// plugin instance's Environment, for callers that want to thread it
// through their own logging.
func (p *Plugin) InstanceID() uuid.UUID { return p.instanceID }

// Close releases the instance. The Runtime (and its shared compilation
// cache) is owned by whoever created it via NewRuntime and is not
// closed here.
func (p *Plugin) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.instance.Close(ctx); err != nil {
		return newError(ErrorKindRuntime, "close", err)
	}
	return nil
}

// CompiledModule exposes the underlying compiled module, e.g. for
// reuse across multiple Builder.WithCompiledModule calls.
func (p *Plugin) CompiledModule() wazero.CompiledModule { return p.module }

// Occupancy has no host-side equivalent: the buddy allocator lives
// entirely in guest memory (package guest/alloc). Hosts that need to
// observe allocator health call a guest-exported diagnostic function
// rather than reaching across the boundary.
