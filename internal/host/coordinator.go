// Package host coordinates the launcher window with the view layer: window
// geometry when sessions open and close, search box placeholder swaps, and
// the decision of where keystrokes go.
package host

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/events"
	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/types"
	"github.com/spotlaunch/launcherd/internal/view"
)

// WindowControl is what the coordinator needs from the host window.
type WindowControl interface {
	Resize(width, height int)
}

// NopWindow satisfies WindowControl for headless runs.
type NopWindow struct{}

func (NopWindow) Resize(int, int) {}

// Coordinator reacts to view session lifecycle: it grows the window to fit
// the view when a session opens, shrinks it back when the session closes,
// and broadcasts both transitions to connected clients. It is the view
// manager's Notifier.
type Coordinator struct {
	window WindowControl
	hub    *events.Hub
	geom   view.Geometry
	log    *logging.Logger

	mu      sync.Mutex
	manager *view.Manager
}

// NewCoordinator creates a coordinator. The view manager is attached later
// because the manager itself needs the coordinator as its notifier.
func NewCoordinator(window WindowControl, hub *events.Hub, geom view.Geometry, log *logging.Logger) *Coordinator {
	if window == nil {
		window = NopWindow{}
	}
	if geom == (view.Geometry{}) {
		geom = view.DefaultGeometry()
	}
	return &Coordinator{
		window: window,
		hub:    hub,
		geom:   geom,
		log:    log.Component("host"),
	}
}

// Attach wires the view manager in after construction.
func (c *Coordinator) Attach(m *view.Manager) {
	c.mu.Lock()
	c.manager = m
	c.mu.Unlock()
}

// ViewOpened implements view.Notifier.
func (c *Coordinator) ViewOpened(pluginID string) {
	height := c.geom.SearchHeight + c.geom.ToolbarHeight + c.geom.ViewHeight
	c.window.Resize(c.geom.WindowWidth, height)

	placeholder := ""
	if m := c.viewManager(); m != nil {
		placeholder = m.ActivePlaceholder()
	}
	c.log.Debug("view opened", zap.String("plugin_id", pluginID))
	if c.hub != nil {
		c.hub.Broadcast("view.opened", map[string]any{
			"pluginId":    pluginID,
			"placeholder": placeholder,
		})
	}
}

// ViewClosed implements view.Notifier.
func (c *Coordinator) ViewClosed(pluginID string) {
	c.window.Resize(c.geom.WindowWidth, c.geom.SearchHeight)
	c.log.Debug("view closed", zap.String("plugin_id", pluginID))
	if c.hub != nil {
		c.hub.Broadcast("view.closed", map[string]any{"pluginId": pluginID})
	}
}

// HandleInput routes a search box event. When a session is open the event
// goes into the view; otherwise routed is false and the caller serves its
// local search path.
func (c *Coordinator) HandleInput(msg types.InputMessage) (routed bool, err error) {
	m := c.viewManager()
	if m == nil || m.State() != types.ViewOpen {
		return false, nil
	}
	if err := m.RouteInput(msg); err != nil {
		return false, err
	}
	// Echo routed input on the stream so host tooling can observe it.
	if c.hub != nil {
		c.hub.Broadcast(string(msg.Kind), map[string]any{"value": msg.Value})
	}
	return true, nil
}

// Placeholder returns the hint the search box should currently show.
func (c *Coordinator) Placeholder() string {
	if m := c.viewManager(); m != nil {
		return m.ActivePlaceholder()
	}
	return ""
}

func (c *Coordinator) viewManager() *view.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manager
}
