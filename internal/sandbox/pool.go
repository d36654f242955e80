package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/spotlaunch/launcherd/internal/logging"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// Pool manages reusable throwaway runtimes for one-shot script evaluation
// (e.g. executeScript calls addressed to a rendering surface).
type Pool struct {
	config    Config
	log       *logging.Logger
	sandboxes chan *Runtime
	size      int
	mu        sync.RWMutex
	closed    bool
}

// NewPool creates a sandbox pool with size pre-created runtimes.
func NewPool(cfg Config, size int, log *logging.Logger) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:    cfg,
		log:       log,
		sandboxes: make(chan *Runtime, size),
		size:      size,
	}

	for i := 0; i < size; i++ {
		rt, err := New(cfg, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.sandboxes <- rt
	}
	return pool, nil
}

// Acquire gets a runtime from the pool with a timeout.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt := <-p.sandboxes:
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, ErrTimeout
	}
}

// Release returns a runtime to the pool. Used runtimes are discarded and
// replaced with fresh ones so evaluations never observe prior state.
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rt.Close()
	if p.closed {
		return nil
	}

	fresh, err := New(p.config, p.log)
	if err != nil {
		return err
	}
	select {
	case p.sandboxes <- fresh:
	default:
		fresh.Close()
	}
	return nil
}

// Eval runs a one-shot script using a pooled runtime and returns its
// completion value.
func (p *Pool) Eval(ctx context.Context, script string) (any, error) {
	rt, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(rt)

	val, err := rt.guarded(ctx, func() (goja.Value, error) {
		return rt.vm.RunString(script)
	})
	if err != nil {
		return nil, err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

// Close closes the pool and all runtimes.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.sandboxes)

	for rt := range p.sandboxes {
		rt.Close()
	}
	return nil
}

// Stats returns pool statistics.
func (p *Pool) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]any{
		"size":      p.size,
		"available": len(p.sandboxes),
		"in_use":    p.size - len(p.sandboxes),
		"closed":    p.closed,
	}
}
