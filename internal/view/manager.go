package view

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
	"github.com/spotlaunch/launcherd/internal/plugin"
	"github.com/spotlaunch/launcherd/internal/shared/id"
	"github.com/spotlaunch/launcherd/internal/types"
)

var (
	// ErrNoActiveSession is returned by operations that need an open session.
	ErrNoActiveSession = errors.New("view: no active session")

	// ErrUnknownPlugin is returned when the requested plugin is not loaded.
	ErrUnknownPlugin = errors.New("view: unknown plugin")

	// ErrNoViewEntry is returned for plugins without an on-disk package to
	// render.
	ErrNoViewEntry = errors.New("view: plugin has no renderable entry")

	// ErrSuperseded is returned to an Open call whose session was replaced
	// or closed before its content finished loading.
	ErrSuperseded = errors.New("view: open superseded")

	// ErrUnknownSurface is returned for operations on a surface id the
	// session does not own.
	ErrUnknownSurface = errors.New("view: unknown surface")

	// ErrIsolationViolation is returned when a subsurface requests a
	// relaxation the plugin's manifest never declared.
	ErrIsolationViolation = errors.New("view: isolation violation")
)

// Geometry fixes the host window layout the view layer positions surfaces in.
type Geometry struct {
	WindowWidth   int
	SearchHeight  int
	ViewHeight    int
	ToolbarHeight int
}

// DefaultGeometry is the standard launcher layout.
func DefaultGeometry() Geometry {
	return Geometry{WindowWidth: 900, SearchHeight: 72, ViewHeight: 600, ToolbarHeight: 40}
}

// mainBounds is where the session's main surface sits: below the search box
// and toolbar, spanning the window width.
func (g Geometry) mainBounds() types.Rect {
	return types.Rect{
		X:      0,
		Y:      g.SearchHeight + g.ToolbarHeight,
		Width:  g.WindowWidth,
		Height: g.ViewHeight,
	}
}

// Notifier receives session lifecycle events. Implementations must not call
// back into the manager.
type Notifier interface {
	ViewOpened(pluginID string)
	ViewClosed(pluginID string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) ViewOpened(string) {}
func (NopNotifier) ViewClosed(string) {}

// Catalog resolves plugin ids. Satisfied by the plugin registry.
type Catalog interface {
	GetByID(id string) (plugin.Plugin, bool)
}

// session is the state of one open (or opening) plugin view.
type session struct {
	id          id.SessionID
	pluginID    string
	manifest    *types.Manifest
	main        Surface
	placeholder string

	subs     map[string]Surface
	subOrder []string
}

// Manager owns the single plugin view session the launcher can show at a
// time. Opening a new session force-closes the previous one; an Open that is
// superseded while its content still loads abandons silently instead of
// clobbering the newer session.
type Manager struct {
	catalog  Catalog
	factory  Factory
	notifier Notifier
	geom     Geometry
	log      *logging.Logger

	mu      sync.Mutex
	state   types.ViewState
	epoch   uint64
	session *session
}

// NewManager creates a view manager over the given plugin catalog.
func NewManager(catalog Catalog, factory Factory, notifier Notifier, geom Geometry, log *logging.Logger) *Manager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if geom == (Geometry{}) {
		geom = DefaultGeometry()
	}
	return &Manager{
		catalog:  catalog,
		factory:  factory,
		notifier: notifier,
		geom:     geom,
		log:      log.Component("view"),
		state:    types.ViewClosed,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() types.ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActivePluginID returns the plugin owning the current session, or "".
func (m *Manager) ActivePluginID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.pluginID
}

// ActivePlaceholder returns the search box hint the open session declares,
// or "" when no session is open or the manifest declares none.
func (m *Manager) ActivePlaceholder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.ViewOpen || m.session == nil {
		return ""
	}
	return m.session.placeholder
}

// SessionID returns the active session's id, or "".
func (m *Manager) SessionID() id.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.id
}

// Open starts a view session for the plugin. Any existing session is closed
// first. The init payload is delivered to the session's content exactly once,
// after the initial load settles. If another Open or Close lands while this
// one is still loading, this call abandons and returns ErrSuperseded.
func (m *Manager) Open(ctx context.Context, pluginID string, init *types.InitData) error {
	p, ok := m.catalog.GetByID(pluginID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, pluginID)
	}
	located, ok := p.(plugin.Located)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoViewEntry, pluginID)
	}
	manifest := p.Manifest()
	entryURL := "file://" + filepath.Join(located.Dir(), manifest.EntryArtifact())

	m.mu.Lock()
	replaced := ""
	if m.session != nil {
		replaced = m.session.pluginID
	}
	m.closeLocked()
	m.epoch++
	myEpoch := m.epoch
	m.state = types.ViewOpening

	surface, err := m.factory.NewSurface(surfaceOptionsFor(manifest))
	if err != nil {
		m.state = types.ViewClosed
		m.mu.Unlock()
		if replaced != "" {
			m.notifier.ViewClosed(replaced)
		}
		return fmt.Errorf("view: create surface: %w", err)
	}
	m.mu.Unlock()

	if replaced != "" {
		m.notifier.ViewClosed(replaced)
	}

	// Loading happens outside the lock so a slow plugin page cannot block
	// Close or a superseding Open.
	loadErr := surface.Load(ctx, entryURL)

	m.mu.Lock()
	if m.epoch != myEpoch {
		m.mu.Unlock()
		surface.Close()
		return ErrSuperseded
	}
	if loadErr != nil {
		m.state = types.ViewClosed
		m.mu.Unlock()
		surface.Close()
		return fmt.Errorf("view: load %s: %w", pluginID, loadErr)
	}

	surface.SetBounds(m.geom.mainBounds())
	s := &session{
		id:          id.NewSessionID(),
		pluginID:    pluginID,
		manifest:    manifest,
		main:        surface,
		placeholder: manifest.SearchInputPlaceholder,
		subs:        make(map[string]Surface),
	}
	m.session = s
	m.state = types.ViewOpen
	m.mu.Unlock()

	if !init.Empty() {
		if err := surface.Send("view.init", init); err != nil {
			m.log.Warn("init delivery failed",
				zap.String("plugin_id", pluginID),
				zap.Error(err))
		}
	}

	m.log.Info("view opened",
		zap.String("plugin_id", pluginID),
		zap.String("session_id", string(s.id)))
	m.notifier.ViewOpened(pluginID)
	return nil
}

// Close tears down the active session. Idempotent: closing an already-closed
// manager is a no-op, and each open session produces exactly one closed
// notification.
func (m *Manager) Close() {
	m.mu.Lock()
	closedPlugin := ""
	if m.session != nil {
		closedPlugin = m.session.pluginID
	}
	m.closeLocked()
	m.mu.Unlock()

	if closedPlugin != "" {
		m.log.Info("view closed", zap.String("plugin_id", closedPlugin))
		m.notifier.ViewClosed(closedPlugin)
	}
}

// closeLocked destroys the session under m.mu. It bumps the epoch so any
// in-flight Open abandons. The caller emits the closed notification.
func (m *Manager) closeLocked() {
	m.epoch++
	m.state = types.ViewClosed
	s := m.session
	m.session = nil
	if s == nil {
		return
	}
	for _, sub := range s.subs {
		sub.Close()
	}
	s.main.Close()
}

// CreateSurface spawns an embedded subsurface inside the active session.
// Reusing an existing id replaces that surface: the old one is destroyed and
// the new one becomes the most recently created. Requested isolation
// relaxations beyond what the plugin's manifest declares are rejected.
func (m *Manager) CreateSurface(ctx context.Context, params types.CreateSurfaceParams) (string, error) {
	m.mu.Lock()
	if m.state != types.ViewOpen || m.session == nil {
		m.mu.Unlock()
		return "", ErrNoActiveSession
	}
	s := m.session

	opts, err := subsurfaceOptions(s.manifest, params.Options)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}

	surfaceID := params.ID
	if surfaceID == "" {
		surfaceID = string(id.NewSurfaceID())
	}

	// Replacement closes the previous surface at this id before a new one
	// comes up, so two surfaces never hold the same id at once.
	if old, exists := s.subs[surfaceID]; exists {
		old.Close()
		s.removeFromOrder(surfaceID)
		delete(s.subs, surfaceID)
	}

	surface, err := m.factory.NewSurface(opts)
	if err != nil {
		m.mu.Unlock()
		return "", fmt.Errorf("view: create surface: %w", err)
	}
	s.subs[surfaceID] = surface
	s.subOrder = append(s.subOrder, surfaceID)
	m.mu.Unlock()

	if params.Bounds != nil {
		surface.SetBounds(*params.Bounds)
	}
	if params.Visible != nil {
		surface.SetVisible(*params.Visible)
	}
	if params.URL != "" {
		if err := surface.Load(ctx, params.URL); err != nil {
			m.log.Warn("subsurface load failed",
				zap.String("surface_id", surfaceID),
				zap.Error(err))
		}
	}
	return surfaceID, nil
}

// DestroyDefaultSurface removes the most recently created subsurface and
// returns its id.
func (m *Manager) DestroyDefaultSurface() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.ViewOpen || m.session == nil {
		return "", ErrNoActiveSession
	}
	s := m.session
	n := len(s.subOrder)
	if n == 0 {
		return "", fmt.Errorf("%w: no subsurfaces", ErrUnknownSurface)
	}
	surfaceID := s.subOrder[n-1]
	surface := s.subs[surfaceID]
	delete(s.subs, surfaceID)
	s.subOrder = s.subOrder[:n-1]
	return surfaceID, surface.Close()
}

// DestroySurface removes a subsurface from the active session.
func (m *Manager) DestroySurface(surfaceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.ViewOpen || m.session == nil {
		return ErrNoActiveSession
	}
	surface, ok := m.session.subs[surfaceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSurface, surfaceID)
	}
	delete(m.session.subs, surfaceID)
	m.session.removeFromOrder(surfaceID)
	return surface.Close()
}

// Surfaces lists the active session's subsurface ids in creation order.
func (m *Manager) Surfaces() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	out := make([]string, len(m.session.subOrder))
	copy(out, m.session.subOrder)
	return out
}

// SetSurfaceBounds repositions a subsurface.
func (m *Manager) SetSurfaceBounds(surfaceID string, bounds types.Rect) error {
	surface, err := m.lookupSurface(surfaceID)
	if err != nil {
		return err
	}
	surface.SetBounds(bounds)
	return nil
}

// LoadSurface navigates a subsurface to a new URL.
func (m *Manager) LoadSurface(ctx context.Context, surfaceID, url string) error {
	surface, err := m.lookupSurface(surfaceID)
	if err != nil {
		return err
	}
	return surface.Load(ctx, url)
}

// ReloadSurface re-navigates a subsurface.
func (m *Manager) ReloadSurface(ctx context.Context, surfaceID string) error {
	surface, err := m.lookupSurface(surfaceID)
	if err != nil {
		return err
	}
	return surface.Reload(ctx)
}

// OpenSurfaceDevTools attaches an inspector to a subsurface.
func (m *Manager) OpenSurfaceDevTools(surfaceID string) error {
	surface, err := m.lookupSurface(surfaceID)
	if err != nil {
		return err
	}
	return surface.OpenDevTools()
}

// SetSurfaceVisible toggles a subsurface.
func (m *Manager) SetSurfaceVisible(surfaceID string, visible bool) error {
	surface, err := m.lookupSurface(surfaceID)
	if err != nil {
		return err
	}
	surface.SetVisible(visible)
	return nil
}

// ExecuteScript evaluates a script in a surface of the active session. An
// empty surfaceID targets the default surface: the most recently created
// subsurface, or the main surface when none exist.
func (m *Manager) ExecuteScript(ctx context.Context, surfaceID, script string) (any, error) {
	surface, err := m.targetSurface(surfaceID)
	if err != nil {
		return nil, err
	}
	return surface.ExecuteScript(ctx, script)
}

// RouteInput forwards a search box event into the active session's default
// surface. Input outside an open session is an error; the caller keeps the
// event local instead.
func (m *Manager) RouteInput(msg types.InputMessage) error {
	surface, err := m.targetSurface("")
	if err != nil {
		return err
	}
	return surface.Send(string(msg.Kind), msg)
}

// OpenDevTools attaches an inspector to the main surface.
func (m *Manager) OpenDevTools() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.ViewOpen || m.session == nil {
		return ErrNoActiveSession
	}
	return m.session.main.OpenDevTools()
}

// Reload re-navigates the main surface.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	if m.state != types.ViewOpen || m.session == nil {
		m.mu.Unlock()
		return ErrNoActiveSession
	}
	surface := m.session.main
	m.mu.Unlock()
	return surface.Reload(ctx)
}

// targetSurface resolves a surface id, defaulting to the most recently
// created subsurface and falling back to the main surface.
func (m *Manager) targetSurface(surfaceID string) (Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.ViewOpen || m.session == nil {
		return nil, ErrNoActiveSession
	}
	s := m.session
	if surfaceID == "" {
		if n := len(s.subOrder); n > 0 {
			return s.subs[s.subOrder[n-1]], nil
		}
		return s.main, nil
	}
	if surface, ok := s.subs[surfaceID]; ok {
		return surface, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSurface, surfaceID)
}

// lookupSurface resolves an explicit subsurface id.
func (m *Manager) lookupSurface(surfaceID string) (Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != types.ViewOpen || m.session == nil {
		return nil, ErrNoActiveSession
	}
	surface, ok := m.session.subs[surfaceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSurface, surfaceID)
	}
	return surface, nil
}

func (s *session) removeFromOrder(surfaceID string) {
	for i, sid := range s.subOrder {
		if sid == surfaceID {
			s.subOrder = append(s.subOrder[:i], s.subOrder[i+1:]...)
			return
		}
	}
}

// surfaceOptionsFor builds the main surface posture: restrictive defaults
// with only the manifest's declared relaxations applied.
func surfaceOptionsFor(manifest *types.Manifest) types.SurfaceOptions {
	opts := types.RestrictedSurfaceOptions()
	req := manifest.Sandbox
	if req == nil {
		return opts
	}
	if req.NodeIntegration {
		opts.NodeIntegration = true
	}
	if req.InlineScripts {
		opts.InlineScripts = true
	}
	if req.DisableIsolation {
		opts.ContextIsolation = false
		opts.WebSecurity = false
	}
	return opts
}

// subsurfaceOptions validates a subsurface's requested posture against the
// manifest. Undeclared relaxations fail closed.
func subsurfaceOptions(manifest *types.Manifest, requested *types.SurfaceOptions) (types.SurfaceOptions, error) {
	if requested == nil {
		return types.RestrictedSurfaceOptions(), nil
	}
	declared := manifest.Sandbox
	if declared == nil {
		declared = &types.SandboxRequest{}
	}
	if requested.NodeIntegration && !declared.NodeIntegration {
		return types.SurfaceOptions{}, fmt.Errorf("%w: nodeIntegration not declared", ErrIsolationViolation)
	}
	if requested.InlineScripts && !declared.InlineScripts {
		return types.SurfaceOptions{}, fmt.Errorf("%w: inlineScripts not declared", ErrIsolationViolation)
	}
	if (!requested.ContextIsolation || !requested.WebSecurity) && !declared.DisableIsolation {
		return types.SurfaceOptions{}, fmt.Errorf("%w: isolation cannot be disabled", ErrIsolationViolation)
	}
	return *requested, nil
}
