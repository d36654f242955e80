package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlaunch/launcherd/internal/config"
)

// One server for the whole package: metrics register with the global
// Prometheus registry, so a second construction would collide.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	pluginsRoot := t.TempDir()
	pkg := filepath.Join(pluginsRoot, "colors")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "plugin.json"), []byte(`{
		"id": "colors",
		"name": "Color Picker",
		"weight": 10,
		"matchRules": [{"pattern": "^#[0-9a-f]{6}$", "weight": 20}]
	}`), 0o644))

	cfg := config.Default()
	cfg.Plugins.Root = pluginsRoot
	cfg.Store.Dir = t.TempDir()

	srv, err := New(cfg, Options{})
	require.NoError(t, err)
	require.NoError(t, srv.Bootstrap(context.Background()))
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	// Non-JSON responses (the Prometheus endpoint) just skip decoding.
	var decoded map[string]any
	if w.Body.Len() > 0 {
		_ = sonic.Unmarshal(w.Body.Bytes(), &decoded)
	}
	return w, decoded
}

func TestServer(t *testing.T) {
	srv := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("plugins listed", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodGet, "/plugins", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		plugins := body["plugins"].([]any)
		ids := make([]string, 0, len(plugins))
		for _, p := range plugins {
			ids = append(ids, p.(map[string]any)["id"].(string))
		}
		assert.Contains(t, ids, "colors")
		assert.Contains(t, ids, "applications")
	})

	t.Run("search by name", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodGet, "/search?q=color", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		corpus := body["corpus"].([]any)
		require.NotEmpty(t, corpus)
		top := corpus[0].(map[string]any)
		assert.Equal(t, "colors", top["item"].(map[string]any)["pluginId"])
	})

	t.Run("rule match scores at declared weight", func(t *testing.T) {
		_, body := doJSON(t, srv, http.MethodGet, "/search?q=%23ff00aa", nil)

		corpus := body["corpus"].([]any)
		require.NotEmpty(t, corpus)
		top := corpus[0].(map[string]any)
		assert.EqualValues(t, 20, top["score"])
		assert.Equal(t, "rule", top["matchType"])
	})

	t.Run("empty query browses", func(t *testing.T) {
		_, body := doJSON(t, srv, http.MethodGet, "/search", nil)
		corpus := body["corpus"].([]any)
		assert.NotEmpty(t, corpus)
		for _, r := range corpus {
			assert.EqualValues(t, 0, r.(map[string]any)["score"])
		}
	})

	t.Run("view lifecycle", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodPost, "/view/open", map[string]any{
			"pluginId": "colors",
			"init":     map[string]any{"initialValue": "#aabbcc"},
		})
		assert.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, body["success"], "open failed: %v", body["error"])

		_, status := doJSON(t, srv, http.MethodGet, "/view", nil)
		assert.Equal(t, "open", status["state"])
		assert.Equal(t, "colors", status["pluginId"])

		_, closeBody := doJSON(t, srv, http.MethodPost, "/view/close", nil)
		assert.Equal(t, true, closeBody["success"])

		_, status = doJSON(t, srv, http.MethodGet, "/view", nil)
		assert.Equal(t, "closed", status["state"])
	})

	t.Run("open unknown plugin fails structurally", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodPost, "/view/open", map[string]any{
			"pluginId": "ghost",
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("surfaces require open session", func(t *testing.T) {
		_, body := doJSON(t, srv, http.MethodPost, "/view/surfaces", map[string]any{
			"url": "https://example.com",
		})
		assert.Equal(t, false, body["success"])
	})

	t.Run("plugin by id", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodGet, "/plugins/colors", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Color Picker", body["name"])

		w, _ = doJSON(t, srv, http.MethodGet, "/plugins/ghost", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("input falls back to local search", func(t *testing.T) {
		_, body := doJSON(t, srv, http.MethodPost, "/input", map[string]any{
			"kind":  "search.input.changed",
			"value": "color",
		})
		assert.Equal(t, false, body["routed"])
		assert.NotNil(t, body["results"])
	})

	t.Run("kind-specific input routes", func(t *testing.T) {
		_, body := doJSON(t, srv, http.MethodPost, "/view/input/changed", map[string]any{
			"value": "col",
		})
		assert.Equal(t, false, body["routed"])

		_, body = doJSON(t, srv, http.MethodPost, "/view/input/submitted", map[string]any{
			"value": "color",
		})
		assert.Equal(t, false, body["routed"])
	})

	t.Run("input rejects unknown kind", func(t *testing.T) {
		w, _ := doJSON(t, srv, http.MethodPost, "/input", map[string]any{
			"kind": "bogus", "value": "x",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store roundtrip", func(t *testing.T) {
		w, _ := doJSON(t, srv, http.MethodPut, "/store/colors/last", map[string]any{
			"value": "#112233",
		})
		assert.Equal(t, http.StatusOK, w.Code)

		_, body := doJSON(t, srv, http.MethodGet, "/store/colors/last", nil)
		assert.Equal(t, "#112233", body["value"])

		_, keys := doJSON(t, srv, http.MethodGet, "/store/colors", nil)
		assert.Contains(t, keys["keys"], "last")

		w, _ = doJSON(t, srv, http.MethodDelete, "/store/colors/last", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		_, body = doJSON(t, srv, http.MethodGet, "/store/colors/last", nil)
		assert.Nil(t, body["value"])
	})

	t.Run("refresh plugins", func(t *testing.T) {
		w, body := doJSON(t, srv, http.MethodPost, "/plugins/refresh", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, body["success"])
	})

	t.Run("metrics exposed", func(t *testing.T) {
		// A health check refreshes the uptime gauge.
		w, _ := doJSON(t, srv, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, _ = doJSON(t, srv, http.MethodGet, "/metrics", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "launcherd_http_requests_total")
		assert.Contains(t, w.Body.String(), "launcherd_uptime_seconds")
	})
}
