package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestManager_StartAndServe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	})

	m := NewManager(mux, testConfig(), zap.NewNop())
	require.NoError(t, m.Start())
	defer m.Shutdown(context.Background())

	assert.True(t, m.IsRunning())

	resp, err := http.Get("http://" + m.Addr() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestManager_StartTwiceFails(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())
	require.NoError(t, m.Start())
	defer m.Shutdown(context.Background())

	assert.Error(t, m.Start())
}

func TestManager_ListenConflict(t *testing.T) {
	first := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	cfg := testConfig()
	cfg.Addr = first.Addr()
	second := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	assert.Error(t, second.Start())
}

func TestManager_Shutdown(t *testing.T) {
	m := NewManager(http.NewServeMux(), testConfig(), zap.NewNop())
	require.NoError(t, m.Start())

	require.NoError(t, m.Shutdown(context.Background()))
	assert.False(t, m.IsRunning())

	// Shutdown is idempotent.
	require.NoError(t, m.Shutdown(context.Background()))

	// Starting again after shutdown is rejected.
	assert.Error(t, m.Start())
}

func TestManager_AddrBeforeStart(t *testing.T) {
	cfg := testConfig()
	cfg.Addr = "127.0.0.1:9999"
	m := NewManager(http.NewServeMux(), cfg, zap.NewNop())
	assert.Equal(t, "127.0.0.1:9999", m.Addr())
	assert.False(t, m.IsRunning())
}
