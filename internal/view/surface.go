// Package view manages plugin view sessions: opening a plugin's rendering
// surface inside the host window, its embedded subsurfaces, and the input
// routing into whichever surface currently has focus.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/spotlaunch/launcherd/internal/sandbox"
	"github.com/spotlaunch/launcherd/internal/types"
)

// ErrSurfaceDestroyed is returned by operations on a surface whose backing
// renderer is gone.
var ErrSurfaceDestroyed = errors.New("view: surface destroyed")

// Surface is one rendering surface owned by the view layer. Implementations
// wrap whatever the host embeds (a webview, a test double).
type Surface interface {
	// Load navigates the surface and blocks until the initial load settles
	// or the context expires.
	Load(ctx context.Context, url string) error

	// SetBounds repositions the surface inside the host window.
	SetBounds(bounds types.Rect)

	// SetVisible toggles rendering without destroying state.
	SetVisible(visible bool)

	// ExecuteScript evaluates a script in the surface's content context and
	// returns its result.
	ExecuteScript(ctx context.Context, script string) (any, error)

	// Send delivers a named payload to the surface's content.
	Send(channel string, payload any) error

	// OpenDevTools attaches an inspector when the backend supports one.
	OpenDevTools() error

	// Reload re-navigates to the current URL.
	Reload(ctx context.Context) error

	// Destroyed reports whether the backing renderer is gone.
	Destroyed() bool

	// Close tears the surface down. Idempotent.
	Close() error
}

// Factory creates surfaces with a given isolation posture.
type Factory interface {
	NewSurface(opts types.SurfaceOptions) (Surface, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(opts types.SurfaceOptions) (Surface, error)

func (f FactoryFunc) NewSurface(opts types.SurfaceOptions) (Surface, error) { return f(opts) }

// headlessSurface is the in-process surface used when no renderer host is
// attached. It records navigation and message traffic and evaluates scripts
// in a throwaway runtime, which keeps the session lifecycle fully testable
// without a display.
type headlessSurface struct {
	opts types.SurfaceOptions
	pool *sandbox.Pool

	mu        sync.Mutex
	url       string
	bounds    types.Rect
	visible   bool
	destroyed bool
	sent      []sentMessage
}

type sentMessage struct {
	Channel string
	Payload any
}

// NewHeadlessFactory returns a factory producing in-process surfaces. The
// pool backs script evaluation; it may be shared across surfaces.
func NewHeadlessFactory(pool *sandbox.Pool) Factory {
	return FactoryFunc(func(opts types.SurfaceOptions) (Surface, error) {
		return &headlessSurface{opts: opts, pool: pool, visible: true}, nil
	})
}

func (s *headlessSurface) Load(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.url = url
	return nil
}

func (s *headlessSurface) SetBounds(bounds types.Rect) {
	s.mu.Lock()
	s.bounds = bounds
	s.mu.Unlock()
}

func (s *headlessSurface) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
}

func (s *headlessSurface) ExecuteScript(ctx context.Context, script string) (any, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil, ErrSurfaceDestroyed
	}
	if !s.opts.InlineScripts {
		s.mu.Unlock()
		return nil, errors.New("view: inline script execution disabled for this surface")
	}
	s.mu.Unlock()
	return s.pool.Eval(ctx, script)
}

func (s *headlessSurface) Send(channel string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	s.sent = append(s.sent, sentMessage{Channel: channel, Payload: payload})
	return nil
}

func (s *headlessSurface) OpenDevTools() error {
	return errors.New("view: no inspector for headless surfaces")
}

func (s *headlessSurface) Reload(ctx context.Context) error {
	s.mu.Lock()
	url := s.url
	s.mu.Unlock()
	return s.Load(ctx, url)
}

func (s *headlessSurface) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func (s *headlessSurface) Close() error {
	s.mu.Lock()
	s.destroyed = true
	s.mu.Unlock()
	return nil
}
