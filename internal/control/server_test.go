package control

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stat-arb-engine/internal/config"
	"stat-arb-engine/internal/core/model"
)

func newTestServer(queue int) *Server {
	return NewServer(config.ControlConfig{RateLimit: 1000, Burst: 1000, QueueSize: queue}, zap.NewNop())
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	w := do(newTestServer(1), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Status(t *testing.T) {
	s := newTestServer(1)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodGet, "/api/status", "").Code)

	s.Publish(map[string]int{"outstanding": 3})
	w := do(s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"outstanding":3}`, w.Body.String())
}

func TestServer_CommandQueued(t *testing.T) {
	s := newTestServer(2)
	w := do(s, http.MethodPost, "/api/commands", `{"strategy":"btc-spread","action":"set","values":[3,-3,0,0]}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	select {
	case cmd := <-s.Commands():
		assert.Equal(t, "btc-spread", cmd.Strategy)
		assert.Equal(t, model.CommandSet, cmd.Action)
		assert.Equal(t, [model.SlotCount]float64{3, -3, 0, 0}, cmd.Values)
	default:
		t.Fatal("指令未入队")
	}
}

func TestServer_CommandRejected(t *testing.T) {
	s := newTestServer(1)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/commands", `{"action":"explode"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(s, http.MethodPost, "/api/commands", `not json`).Code)

	assert.Equal(t, http.StatusAccepted, do(s, http.MethodPost, "/api/commands", `{"action":"pause"}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(s, http.MethodPost, "/api/commands", `{"action":"resume"}`).Code)
	assert.Equal(t, int64(1), s.Rejected())
}

func TestServer_RateLimit(t *testing.T) {
	s := NewServer(config.ControlConfig{RateLimit: 0.001, Burst: 1, QueueSize: 1}, zap.NewNop())
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(s, http.MethodGet, "/healthz", "").Code)
}

func TestServer_RunShutdown(t *testing.T) {
	s := NewServer(config.ControlConfig{Listen: "127.0.0.1:0", RateLimit: 10, Burst: 10, QueueSize: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run 未在取消后退出")
	}
}
