package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
)

// Runtime wraps a goja VM with security controls. A Runtime is owned by a
// single plugin; calls are serialized by the caller-facing methods.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	log    *logging.Logger
	module *goja.Object
	closed bool
}

// New creates a sandboxed runtime. The logger receives script console output.
func New(cfg Config, log *logging.Logger) (*Runtime, error) {
	if log == nil {
		log = logging.NewNop()
	}

	r := &Runtime{
		vm:     goja.New(),
		config: cfg,
		log:    log,
	}
	r.vm.SetMaxCallStackSize(1024)

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// BindStore exposes a namespaced key-value store to the script as the
// `store` global. The namespace is the manifest id, which the script's own
// export supplies, so the binding lands after evaluation: hook invocations
// see `store`, top-level code does not.
func (r *Runtime) BindStore(api StoreAPI) {
	store := r.vm.NewObject()
	store.Set("get", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Undefined()
		}
		key := call.Arguments[0].String()
		var def any
		if len(call.Arguments) > 1 {
			def = call.Arguments[1].Export()
		}
		return r.vm.ToValue(api.Get(key, def))
	})
	store.Set("set", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return r.vm.ToValue(false)
		}
		err := api.Set(call.Arguments[0].String(), call.Arguments[1].Export())
		return r.vm.ToValue(err == nil)
	})
	store.Set("delete", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return r.vm.ToValue(false)
		}
		err := api.Delete(call.Arguments[0].String())
		return r.vm.ToValue(err == nil)
	})
	r.vm.Set("store", store)
}

// Run evaluates a script with the configured timeout. The script's
// `module.exports` (or global `plugin`) becomes available via Exports.
func (r *Runtime) Run(ctx context.Context, script string) error {
	if r.closed {
		return ErrClosed
	}
	_, err := r.guarded(ctx, func() (goja.Value, error) {
		return r.vm.RunString(script)
	})
	return err
}

// Exports returns the script's export object: `module.exports` when the
// script assigned one, otherwise a global named `plugin`.
func (r *Runtime) Exports() (*goja.Object, error) {
	if r.closed {
		return nil, ErrClosed
	}

	exports := r.module.Get("exports")
	if obj := asObject(exports); obj != nil && len(obj.Keys()) > 0 {
		return obj, nil
	}
	if obj := asObject(r.vm.GlobalObject().Get("plugin")); obj != nil {
		return obj, nil
	}
	return nil, ErrNoExport
}

// Call invokes an exported function with the configured timeout and returns
// its exported Go value.
func (r *Runtime) Call(ctx context.Context, fn goja.Callable, this goja.Value, args ...any) (any, error) {
	if r.closed {
		return nil, ErrClosed
	}

	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = r.vm.ToValue(a)
	}

	val, err := r.guarded(ctx, func() (goja.Value, error) {
		return fn(this, jsArgs...)
	})
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

// Callable resolves a function-valued property of the export object.
// Returns false when the property is absent or not callable.
func Callable(obj *goja.Object, name string) (goja.Callable, bool) {
	if obj == nil {
		return nil, false
	}
	return goja.AssertFunction(obj.Get(name))
}

// Close releases the VM. Further calls fail with ErrClosed.
func (r *Runtime) Close() error {
	r.closed = true
	r.vm = nil
	r.module = nil
	return nil
}

// guarded runs f under the timeout/cancellation interrupt.
func (r *Runtime) guarded(ctx context.Context, f func() (goja.Value, error)) (goja.Value, error) {
	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt(ErrInterrupted)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := f()
	if err != nil {
		if _, ok := err.(*goja.InterruptedError); ok {
			r.vm.ClearInterrupt()
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		return nil, err
	}
	return val, nil
}

// setupGlobals removes dangerous globals and installs the module shim.
func (r *Runtime) setupGlobals() error {
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("globalThis", r.vm.GlobalObject())

	// CommonJS-style export shim so plugin.js can use module.exports.
	r.module = r.vm.NewObject()
	r.module.Set("exports", r.vm.NewObject())
	r.vm.Set("module", r.module)
	r.vm.Set("exports", r.module.Get("exports"))

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("info", r.makeConsoleFunc("info"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		r.vm.Set("console", console)
	}

	// Timers are no-ops: plugin capability calls are synchronous.
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})
	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	return nil
}

// makeConsoleFunc routes script console output to the host logger.
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		var msg string
		for i, arg := range call.Arguments {
			if i > 0 {
				msg += " "
			}
			msg += arg.String()
		}

		switch level {
		case "warn":
			r.log.Warn(msg, zap.String("source", "script"))
		case "error":
			r.log.Error(msg, zap.String("source", "script"))
		default:
			r.log.Debug(msg, zap.String("source", "script"))
		}
		return goja.Undefined()
	}
}

func asObject(val goja.Value) *goja.Object {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	if obj, ok := val.(*goja.Object); ok {
		return obj
	}
	return nil
}
