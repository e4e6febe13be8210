package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentdesk/api"
	"github.com/BaSui01/agentdesk/testutil"
	"github.com/BaSui01/agentdesk/testutil/fixtures"
	"github.com/BaSui01/agentdesk/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthStatus {
	t.Helper()
	var status HealthStatus
	require.NoError(t, jsonDecode(w, &status))
	return status
}

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_Liveness(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(zap.NewNop()).Register(mux, "v1.2.3", "2024-01-01", "abc123")

	for _, path := range []string{"/health", "/healthz"} {
		w := serve(mux, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		status := decodeHealth(t, w)
		assert.Equal(t, "healthy", status.Status)
		assert.False(t, status.Timestamp.IsZero())
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantHealth string
	}{
		{"no checks", nil, http.StatusOK, "healthy"},
		{
			"all passing",
			[]HealthCheck{
				NewCheck("store", func(context.Context) error { return nil }),
				NewProviderCheck(mocks.NewMockProvider()),
			},
			http.StatusOK, "healthy",
		},
		{
			"one failing",
			[]HealthCheck{
				NewCheck("store", func(context.Context) error { return errors.New("connection refused") }),
				NewProviderCheck(mocks.NewMockProvider()),
			},
			http.StatusServiceUnavailable, "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(nil)
			for _, c := range tt.checks {
				h.RegisterCheck(c)
			}
			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			status := decodeHealth(t, w)
			assert.Equal(t, tt.wantHealth, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
			if tt.wantHealth == "unhealthy" {
				assert.Equal(t, "fail", status.Checks["store"].Status)
				assert.Equal(t, "connection refused", status.Checks["store"].Message)
				assert.Equal(t, "pass", status.Checks["llm:mock"].Status)
			}
		})
	}
}

func TestHealthHandler_Version(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(nil).Register(mux, "v1.2.3", "2024-01-01", "abc123")

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/version", nil))
	env := decodeEnvelope[map[string]string](t, w)
	assert.Equal(t, "v1.2.3", env.Data["version"])
	assert.Equal(t, "abc123", env.Data["git_commit"])
}

// =============================================================================
// 🧪 StatusHandler 测试
// =============================================================================

func TestStatusHandler(t *testing.T) {
	provider := mocks.NewMockProvider().
		On(fixtures.Marker(fixtures.SeatBookingAgent), mocks.Reply{Content: "Which flight?"})
	m := newTestManager(t, provider)
	mux := http.NewServeMux()
	NewStatusHandler(m, nil).Register(mux)

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	env := decodeEnvelope[api.StatusResponse](t, w)
	assert.Equal(t, "active", env.Data.Status)
	assert.True(t, env.Data.RuntimeOpen)
	assert.Equal(t, 5, env.Data.TotalAgents)
	assert.Equal(t, []string{"pii"}, env.Data.GuardrailRules)
	assert.Nil(t, env.Data.LastMessageAt)

	_, err := m.ProcessTurn(testutil.TestContext(t), "dave", "I need to change my seat")
	require.NoError(t, err)

	w = serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	env = decodeEnvelope[api.StatusResponse](t, w)
	assert.NotNil(t, env.Data.LastMessageAt)
	assert.Contains(t, env.Data.Conversations, "dave")

	require.NoError(t, m.Close(testutil.TestContext(t)))
	w = serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	env = decodeEnvelope[api.StatusResponse](t, w)
	assert.Equal(t, "inactive", env.Data.Status)
	assert.False(t, env.Data.RuntimeOpen)
}
