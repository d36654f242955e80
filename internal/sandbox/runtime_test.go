package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotlaunch/launcherd/internal/logging"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(DefaultConfig(), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestRunAndExports(t *testing.T) {
	rt := newTestRuntime(t)

	err := rt.Run(context.Background(), `
		module.exports = {
			getSearchResultItems: function() { return []; },
			answer: 42
		};
	`)
	require.NoError(t, err)

	exports, err := rt.Exports()
	require.NoError(t, err)
	assert.Contains(t, exports.Keys(), "getSearchResultItems")
}

func TestExportsGlobalPluginFallback(t *testing.T) {
	rt := newTestRuntime(t)

	err := rt.Run(context.Background(), `
		var plugin = { getSearchResultItems: function() { return []; } };
	`)
	require.NoError(t, err)

	exports, err := rt.Exports()
	require.NoError(t, err)
	_, ok := Callable(exports, "getSearchResultItems")
	assert.True(t, ok)
}

func TestExportsNothing(t *testing.T) {
	rt := newTestRuntime(t)

	require.NoError(t, rt.Run(context.Background(), `var x = 1;`))

	_, err := rt.Exports()
	assert.ErrorIs(t, err, ErrNoExport)
}

func TestCall(t *testing.T) {
	rt := newTestRuntime(t)

	require.NoError(t, rt.Run(context.Background(), `
		module.exports = {
			double: function(n) { return n * 2; }
		};
	`))

	exports, err := rt.Exports()
	require.NoError(t, err)
	fn, ok := Callable(exports, "double")
	require.True(t, ok)

	result, err := rt.Call(context.Background(), fn, exports, 21)
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestTimeoutInterruptsRunawayScript(t *testing.T) {
	rt, err := New(Config{Timeout: 50 * time.Millisecond}, logging.NewNop())
	require.NoError(t, err)
	defer rt.Close()

	start := time.Now()
	err = rt.Run(context.Background(), `while (true) {}`)
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestContextCancellationInterrupts(t *testing.T) {
	rt := newTestRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := rt.Run(ctx, `while (true) {}`)
	assert.Error(t, err)
}

func TestDangerousGlobalsRemoved(t *testing.T) {
	rt := newTestRuntime(t)

	err := rt.Run(context.Background(), `
		module.exports = {
			hasRequire: typeof require !== "undefined",
			hasProcess: typeof process !== "undefined"
		};
	`)
	require.NoError(t, err)

	exports, err := rt.Exports()
	require.NoError(t, err)
	assert.Equal(t, false, exports.Get("hasRequire").Export())
	assert.Equal(t, false, exports.Get("hasProcess").Export())
}

type mapStore struct {
	data map[string]any
}

func (m *mapStore) Get(key string, def any) any {
	if v, ok := m.data[key]; ok {
		return v
	}
	return def
}
func (m *mapStore) Set(key string, value any) error {
	m.data[key] = value
	return nil
}
func (m *mapStore) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func TestBindStore(t *testing.T) {
	rt := newTestRuntime(t)
	ms := &mapStore{data: map[string]any{"greeting": "hello"}}
	rt.BindStore(ms)

	err := rt.Run(context.Background(), `
		store.set("written", 7);
		module.exports = {
			read: store.get("greeting", "fallback"),
			missing: store.get("nope", "fallback")
		};
	`)
	require.NoError(t, err)

	exports, err := rt.Exports()
	require.NoError(t, err)
	assert.Equal(t, "hello", exports.Get("read").Export())
	assert.Equal(t, "fallback", exports.Get("missing").Export())
	assert.EqualValues(t, 7, ms.data["written"])
}

func TestClosedRuntime(t *testing.T) {
	rt, err := New(DefaultConfig(), logging.NewNop())
	require.NoError(t, err)
	rt.Close()

	assert.ErrorIs(t, rt.Run(context.Background(), `1`), ErrClosed)
	_, err = rt.Exports()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPoolEval(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2, logging.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	result, err := pool.Eval(context.Background(), `6 * 7`)
	require.NoError(t, err)
	assert.EqualValues(t, 42, result)
}

func TestPoolEvalIsolation(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1, logging.NewNop())
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Eval(context.Background(), `var leaked = "state";`)
	require.NoError(t, err)

	result, err := pool.Eval(context.Background(), `typeof leaked`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", result)
}
