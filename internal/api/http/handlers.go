// Package http contains the daemon's HTTP handlers.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spotlaunch/launcherd/internal/host"
	"github.com/spotlaunch/launcherd/internal/monitoring"
	"github.com/spotlaunch/launcherd/internal/plugin"
	"github.com/spotlaunch/launcherd/internal/search"
	"github.com/spotlaunch/launcherd/internal/store"
	"github.com/spotlaunch/launcherd/internal/types"
	"github.com/spotlaunch/launcherd/internal/view"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	registry    *plugin.Registry
	aggregator  *search.Aggregator
	viewManager *view.Manager
	coordinator *host.Coordinator
	stores      store.Provider
	metrics     *monitoring.Metrics
}

// NewHandlers creates a new handler set.
func NewHandlers(
	registry *plugin.Registry,
	aggregator *search.Aggregator,
	viewManager *view.Manager,
	coordinator *host.Coordinator,
	stores store.Provider,
	metrics *monitoring.Metrics,
) *Handlers {
	return &Handlers{
		registry:    registry,
		aggregator:  aggregator,
		viewManager: viewManager,
		coordinator: coordinator,
		stores:      stores,
		metrics:     metrics,
	}
}

// Root handles the banner endpoint.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "launcherd",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	h.metrics.UpdateUptime()
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"registry": h.registry.Stats(),
		"view":     h.viewManager.State().String(),
		"corpus": gin.H{
			"builtAt": h.aggregator.CorpusBuiltAt(),
		},
	})
}

// ListPlugins lists the loaded catalog.
func (h *Handlers) ListPlugins(c *gin.Context) {
	plugins := h.registry.GetAll()
	manifests := make([]*types.Manifest, 0, len(plugins))
	for _, p := range plugins {
		manifests = append(manifests, p.Manifest())
	}
	c.JSON(http.StatusOK, gin.H{
		"plugins": manifests,
		"stats":   h.registry.Stats(),
	})
}

// GetPlugin returns one manifest by id.
func (h *Handlers) GetPlugin(c *gin.Context) {
	p, ok := h.registry.GetByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, types.Fail("unknown plugin"))
		return
	}
	c.JSON(http.StatusOK, p.Manifest())
}

// RefreshPlugins rescans the plugin root and rebuilds the corpus.
func (h *Handlers) RefreshPlugins(c *gin.Context) {
	if err := h.registry.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, types.Failf(err))
		return
	}
	h.metrics.RegistryRescan.Inc()
	h.metrics.PluginsLoaded.Set(float64(len(h.registry.GetAll())))

	if err := h.aggregator.RefreshCorpus(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, types.Failf(err))
		return
	}
	h.metrics.CorpusRebuilds.Inc()
	h.metrics.CorpusItems.Set(float64(len(h.aggregator.Corpus())))

	c.JSON(http.StatusOK, types.Ok(gin.H{
		"generation": h.registry.Generation(),
		"plugins":    len(h.registry.GetAll()),
	}))
}

// Search serves the combined search path. An empty query browses the corpus.
func (h *Handlers) Search(c *gin.Context) {
	start := time.Now()
	results := h.aggregator.Combined(c.Query("q"))
	h.metrics.RecordSearch("combined", time.Since(start))
	c.JSON(http.StatusOK, results)
}

// InstantSearch serves only the per-keystroke path.
func (h *Handlers) InstantSearch(c *gin.Context) {
	start := time.Now()
	results := h.aggregator.InstantSearch(c.Query("q"))
	h.metrics.RecordSearch("instant", time.Since(start))
	c.JSON(http.StatusOK, gin.H{"query": c.Query("q"), "results": results})
}

// Corpus dumps the cached corpus.
func (h *Handlers) Corpus(c *gin.Context) {
	items := h.aggregator.Corpus()
	c.JSON(http.StatusOK, gin.H{
		"items":   items,
		"builtAt": h.aggregator.CorpusBuiltAt(),
	})
}

// RefreshCorpus rebuilds the cached corpus without rescanning packages.
func (h *Handlers) RefreshCorpus(c *gin.Context) {
	if err := h.aggregator.RefreshCorpus(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, types.Failf(err))
		return
	}
	h.metrics.CorpusRebuilds.Inc()
	h.metrics.CorpusItems.Set(float64(len(h.aggregator.Corpus())))
	c.JSON(http.StatusOK, types.Ok(nil))
}

// Input routes a search box event. When a view session is open the event
// goes into the session; otherwise the local combined results come back so
// the shell renders them itself.
func (h *Handlers) Input(c *gin.Context) {
	var msg types.InputMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}
	if msg.Kind != types.InputChanged && msg.Kind != types.InputSubmitted {
		c.JSON(http.StatusBadRequest, types.Fail("unknown input kind"))
		return
	}

	h.routeInput(c, msg)
}

type inputValueRequest struct {
	Value string `json:"value"`
}

// InputChanged routes a per-keystroke search box change.
func (h *Handlers) InputChanged(c *gin.Context) {
	h.inputWithKind(c, types.InputChanged)
}

// InputSubmitted routes a search box submit.
func (h *Handlers) InputSubmitted(c *gin.Context) {
	h.inputWithKind(c, types.InputSubmitted)
}

func (h *Handlers) inputWithKind(c *gin.Context, kind types.InputKind) {
	var req inputValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}
	h.routeInput(c, types.InputMessage{Kind: kind, Value: req.Value})
}

func (h *Handlers) routeInput(c *gin.Context, msg types.InputMessage) {
	routed, err := h.coordinator.HandleInput(msg)
	if err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	if routed {
		c.JSON(http.StatusOK, gin.H{"routed": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"routed":  false,
		"results": h.aggregator.Combined(msg.Value),
	})
}

type openViewRequest struct {
	PluginID string          `json:"pluginId" binding:"required"`
	Init     *types.InitData `json:"init,omitempty"`
}

// OpenView starts a view session, force-closing any active one.
func (h *Handlers) OpenView(c *gin.Context) {
	var req openViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}

	if err := h.viewManager.Open(c.Request.Context(), req.PluginID, req.Init); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	h.metrics.ViewOpens.Inc()
	h.metrics.ViewSessions.Set(1)

	c.JSON(http.StatusOK, types.Ok(gin.H{
		"sessionId":   string(h.viewManager.SessionID()),
		"pluginId":    req.PluginID,
		"placeholder": h.viewManager.ActivePlaceholder(),
	}))
}

// CloseView tears down the active session. Closing with nothing open
// succeeds: the desired state is already true.
func (h *Handlers) CloseView(c *gin.Context) {
	wasOpen := h.viewManager.State() == types.ViewOpen
	h.viewManager.Close()
	if wasOpen {
		h.metrics.ViewCloses.Inc()
	}
	h.metrics.ViewSessions.Set(0)
	h.metrics.Subsurfaces.Set(0)
	c.JSON(http.StatusOK, types.Ok(nil))
}

// ViewStatus reports the session state.
func (h *Handlers) ViewStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":       h.viewManager.State().String(),
		"pluginId":    h.viewManager.ActivePluginID(),
		"sessionId":   string(h.viewManager.SessionID()),
		"placeholder": h.viewManager.ActivePlaceholder(),
		"surfaces":    h.viewManager.Surfaces(),
	})
}

// ReloadView re-navigates the session's main surface.
func (h *Handlers) ReloadView(c *gin.Context) {
	if err := h.viewManager.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

// OpenDevTools attaches an inspector to the session's main surface.
func (h *Handlers) OpenDevTools(c *gin.Context) {
	if err := h.viewManager.OpenDevTools(); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

type executeScriptRequest struct {
	SurfaceID string `json:"surfaceId,omitempty"`
	Script    string `json:"script" binding:"required"`
}

// ExecuteScript evaluates a script in a session surface.
func (h *Handlers) ExecuteScript(c *gin.Context) {
	var req executeScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}

	result, err := h.viewManager.ExecuteScript(c.Request.Context(), req.SurfaceID, req.Script)
	if err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(gin.H{"result": result}))
}

// ListSurfaces lists the active session's subsurfaces.
func (h *Handlers) ListSurfaces(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"surfaces": h.viewManager.Surfaces()})
}

// CreateSurface spawns (or replaces) an embedded subsurface.
func (h *Handlers) CreateSurface(c *gin.Context) {
	var params types.CreateSurfaceParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}

	surfaceID, err := h.viewManager.CreateSurface(c.Request.Context(), params)
	if err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	h.metrics.Subsurfaces.Set(float64(len(h.viewManager.Surfaces())))
	c.JSON(http.StatusOK, types.Ok(gin.H{"surfaceId": surfaceID}))
}

// DestroySurface removes a subsurface.
func (h *Handlers) DestroySurface(c *gin.Context) {
	if err := h.viewManager.DestroySurface(c.Param("id")); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	h.metrics.Subsurfaces.Set(float64(len(h.viewManager.Surfaces())))
	c.JSON(http.StatusOK, types.Ok(nil))
}

// DestroyDefaultSurface removes the most recently created subsurface.
func (h *Handlers) DestroyDefaultSurface(c *gin.Context) {
	surfaceID, err := h.viewManager.DestroyDefaultSurface()
	if err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	h.metrics.Subsurfaces.Set(float64(len(h.viewManager.Surfaces())))
	c.JSON(http.StatusOK, types.Ok(gin.H{"surfaceId": surfaceID}))
}

type loadSurfaceRequest struct {
	URL string `json:"url" binding:"required"`
}

// LoadSurface navigates a subsurface.
func (h *Handlers) LoadSurface(c *gin.Context) {
	var req loadSurfaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}
	if err := h.viewManager.LoadSurface(c.Request.Context(), c.Param("id"), req.URL); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

// ReloadSurface re-navigates a subsurface.
func (h *Handlers) ReloadSurface(c *gin.Context) {
	if err := h.viewManager.ReloadSurface(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

// SurfaceDevTools attaches an inspector to a subsurface.
func (h *Handlers) SurfaceDevTools(c *gin.Context) {
	if err := h.viewManager.OpenSurfaceDevTools(c.Param("id")); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

// SurfaceExecute evaluates a script in one subsurface.
func (h *Handlers) SurfaceExecute(c *gin.Context) {
	var req executeScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}

	result, err := h.viewManager.ExecuteScript(c.Request.Context(), c.Param("id"), req.Script)
	if err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(gin.H{"result": result}))
}

// SetSurfaceBounds repositions a subsurface.
func (h *Handlers) SetSurfaceBounds(c *gin.Context) {
	var bounds types.Rect
	if err := c.ShouldBindJSON(&bounds); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}
	if err := h.viewManager.SetSurfaceBounds(c.Param("id"), bounds); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

// SetSurfaceVisible toggles a subsurface.
func (h *Handlers) SetSurfaceVisible(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}
	if err := h.viewManager.SetSurfaceVisible(c.Param("id"), req.Visible); err != nil {
		c.JSON(http.StatusOK, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

// StoreKeys lists a plugin's stored keys.
func (h *Handlers) StoreKeys(c *gin.Context) {
	s := h.stores.Namespace(c.Param("plugin"))
	c.JSON(http.StatusOK, gin.H{"keys": s.Keys()})
}

// StoreGet reads one value.
func (h *Handlers) StoreGet(c *gin.Context) {
	s := h.stores.Namespace(c.Param("plugin"))
	c.JSON(http.StatusOK, gin.H{"value": s.Get(c.Param("key"), nil)})
}

type storeSetRequest struct {
	Value any `json:"value"`
}

// StoreSet writes one value.
func (h *Handlers) StoreSet(c *gin.Context) {
	var req storeSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.Failf(err))
		return
	}
	s := h.stores.Namespace(c.Param("plugin"))
	if err := s.Set(c.Param("key"), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}

// StoreDelete removes one value.
func (h *Handlers) StoreDelete(c *gin.Context) {
	s := h.stores.Namespace(c.Param("plugin"))
	if err := s.Delete(c.Param("key")); err != nil {
		c.JSON(http.StatusInternalServerError, types.Failf(err))
		return
	}
	c.JSON(http.StatusOK, types.Ok(nil))
}
