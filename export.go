package scotch

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ExportCreator resolves one declared export handle against an
// instantiated Plugin, producing the typed callable the exports cache
// stores.
type ExportCreator interface {
	handleType() reflect.Type
	create(ctx context.Context, p *Plugin) (any, error)
}

func handleTypeOf[H any]() reflect.Type {
	return reflect.TypeOf((*H)(nil)).Elem()
}

// Export0 declares a zero-argument guest export handle H bound to the
// guest function Name, returning R.
type Export0[H any, R any] struct{ Name string }

func (e Export0[H, R]) handleType() reflect.Type { return handleTypeOf[H]() }

func (e Export0[H, R]) create(_ context.Context, p *Plugin) (any, error) {
	fn := p.instance.ExportedFunction(e.Name)
	if fn == nil {
		return nil, newError(ErrorKindExportMissing, e.Name, fmt.Errorf("export %q not found", e.Name))
	}
	callable := func(ctx context.Context) (R, error) {
		var zero R
		p.mu.Lock()
		defer p.mu.Unlock()

		slog.Debug("scotch: calling export", "export", e.Name, "instance", p.instanceID)
		results, err := fn.Call(ctx)
		if err != nil {
			return zero, newError(ErrorKindRuntime, e.Name, err)
		}
		return liftResult[R](ctx, p.alloc, p.instance.Memory(), results[0])
	}
	return callable, nil
}

// Export1 declares a one-argument guest export handle H bound to Name.
type Export1[H any, A any, R any] struct{ Name string }

func (e Export1[H, A, R]) handleType() reflect.Type { return handleTypeOf[H]() }

func (e Export1[H, A, R]) create(_ context.Context, p *Plugin) (any, error) {
	fn := p.instance.ExportedFunction(e.Name)
	if fn == nil {
		return nil, newError(ErrorKindExportMissing, e.Name, fmt.Errorf("export %q not found", e.Name))
	}
	callable := func(ctx context.Context, a A) (result R, err error) {
		var zero R
		p.mu.Lock()
		defer p.mu.Unlock()

		word, free, err := lowerArg(ctx, p.alloc, a)
		if err != nil {
			return zero, err
		}
		defer func() {
			if ferr := free(ctx); ferr != nil {
				slog.Warn("scotch: failed to free argument descriptor", "export", e.Name, "error", ferr)
				if err == nil {
					err = ferr
				}
			}
		}()

		slog.Debug("scotch: calling export", "export", e.Name, "instance", p.instanceID)
		results, err := fn.Call(ctx, word)
		if err != nil {
			return zero, newError(ErrorKindRuntime, e.Name, err)
		}
		return liftResult[R](ctx, p.alloc, p.instance.Memory(), results[0])
	}
	return callable, nil
}

// Export2 declares a two-argument guest export handle H bound to Name.
type Export2[H any, A any, B any, R any] struct{ Name string }

func (e Export2[H, A, B, R]) handleType() reflect.Type { return handleTypeOf[H]() }

func (e Export2[H, A, B, R]) create(_ context.Context, p *Plugin) (any, error) {
	fn := p.instance.ExportedFunction(e.Name)
	if fn == nil {
		return nil, newError(ErrorKindExportMissing, e.Name, fmt.Errorf("export %q not found", e.Name))
	}
	callable := func(ctx context.Context, a A, b B) (result R, err error) {
		var zero R
		p.mu.Lock()
		defer p.mu.Unlock()

		aWord, aFree, err := lowerArg(ctx, p.alloc, a)
		if err != nil {
			return zero, err
		}
		defer func() {
			if ferr := aFree(ctx); ferr != nil {
				slog.Warn("scotch: failed to free argument descriptor", "export", e.Name, "arg", "a", "error", ferr)
				if err == nil {
					err = ferr
				}
			}
		}()

		bWord, bFree, err := lowerArg(ctx, p.alloc, b)
		if err != nil {
			return zero, err
		}
		defer func() {
			if ferr := bFree(ctx); ferr != nil {
				slog.Warn("scotch: failed to free argument descriptor", "export", e.Name, "arg", "b", "error", ferr)
				if err == nil {
					err = ferr
				}
			}
		}()

		slog.Debug("scotch: calling export", "export", e.Name, "instance", p.instanceID)
		results, err := fn.Call(ctx, aWord, bWord)
		if err != nil {
			return zero, newError(ErrorKindRuntime, e.Name, err)
		}
		return liftResult[R](ctx, p.alloc, p.instance.Memory(), results[0])
	}
	return callable, nil
}

// exportCache stores resolved export callables keyed by handle type
// identity: a mapping from type-identity tokens to an opaque-typed
// value, downcast on lookup. First resolution of a given handle is
// collapsed across concurrent callers via singleflight so they don't
// race to double-resolve.
type exportCache struct {
	plugin   *Plugin
	creators map[reflect.Type]ExportCreator
	resolved sync.Map
	sf       singleflight.Group
}

func newExportCache(p *Plugin, creators []ExportCreator) *exportCache {
	byType := make(map[reflect.Type]ExportCreator, len(creators))
	for _, c := range creators {
		byType[c.handleType()] = c
	}
	return &exportCache{plugin: p, creators: byType}
}

// warm eagerly resolves every declared export.
func (c *exportCache) warm(ctx context.Context) error {
	for t := range c.creators {
		if _, err := c.resolve(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *exportCache) resolve(ctx context.Context, t reflect.Type) (any, error) {
	if v, ok := c.resolved.Load(t); ok {
		return v, nil
	}
	v, err, _ := c.sf.Do(t.String(), func() (any, error) {
		if cached, ok := c.resolved.Load(t); ok {
			return cached, nil
		}
		creator, ok := c.creators[t]
		if !ok {
			return nil, newError(ErrorKindExportMissing, "resolve", fmt.Errorf("no export declared for handle %s", t))
		}
		callable, err := creator.create(ctx, c.plugin)
		if err != nil {
			return nil, err
		}
		c.resolved.Store(t, callable)
		return callable, nil
	})
	return v, err
}

func resolveHandle[H any](ctx context.Context, p *Plugin) (any, error) {
	return p.exports.resolve(ctx, handleTypeOf[H]())
}

// CallExport0 resolves handle H lazily (if not already warmed by
// Builder.Finish) and invokes it.
func CallExport0[H any, R any](ctx context.Context, p *Plugin) (R, error) {
	var zero R
	raw, err := resolveHandle[H](ctx, p)
	if err != nil {
		return zero, err
	}
	fn, ok := raw.(func(context.Context) (R, error))
	if !ok {
		return zero, newError(ErrorKindExportMissing, "call", fmt.Errorf("handle does not match a 0-argument export of this signature"))
	}
	return fn(ctx)
}

// CallExport1 resolves handle H lazily and invokes it with one argument.
func CallExport1[H any, A any, R any](ctx context.Context, p *Plugin, a A) (R, error) {
	var zero R
	raw, err := resolveHandle[H](ctx, p)
	if err != nil {
		return zero, err
	}
	fn, ok := raw.(func(context.Context, A) (R, error))
	if !ok {
		return zero, newError(ErrorKindExportMissing, "call", fmt.Errorf("handle does not match a 1-argument export of this signature"))
	}
	return fn(ctx, a)
}

// CallExport2 resolves handle H lazily and invokes it with two arguments.
func CallExport2[H any, A any, B any, R any](ctx context.Context, p *Plugin, a A, b B) (R, error) {
	var zero R
	raw, err := resolveHandle[H](ctx, p)
	if err != nil {
		return zero, err
	}
	fn, ok := raw.(func(context.Context, A, B) (R, error))
	if !ok {
		return zero, newError(ErrorKindExportMissing, "call", fmt.Errorf("handle does not match a 2-argument export of this signature"))
	}
	return fn(ctx, a, b)
}
