package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/BaSui01/agentdesk/api"
	"github.com/BaSui01/agentdesk/config"
	"github.com/BaSui01/agentdesk/testutil/fixtures"
	"github.com/BaSui01/agentdesk/testutil/mocks"
	"github.com/BaSui01/agentdesk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type agentFixture struct {
	mux     *http.ServeMux
	catalog *config.AgentCatalog
	path    string
}

func newAgentFixture(t *testing.T) agentFixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.AgentsConfig{
		AgentsFile:     filepath.Join(dir, "agents_config.json"),
		GuardrailsFile: filepath.Join(dir, "guardrails_config.json"),
	}
	require.NoError(t, config.SaveAgents(cfg.AgentsFile, fixtures.AirlineAgents()))

	catalog, err := config.NewAgentCatalog(cfg, fixtures.TriageAgent, nil)
	require.NoError(t, err)

	manager := newTestManager(t, mocks.NewMockProvider())
	catalog.SetApplier(func(ctx context.Context, agents []types.AgentSpec, rules []types.GuardrailRule) error {
		return manager.Rebuild(ctx, agents, rules)
	})

	mux := http.NewServeMux()
	NewAgentHandler(catalog, nil).Register(mux)
	return agentFixture{mux: mux, catalog: catalog, path: cfg.AgentsFile}
}

func baggageAgent() api.AgentRequest {
	return api.AgentRequest{
		Name:         "BaggageAgent",
		Description:  "Lost and delayed baggage",
		Instructions: "You are BaggageAgent. Help with baggage claims.",
	}
}

// =============================================================================
// 🧪 AgentHandler 测试
// =============================================================================

func TestAgentHandler_List(t *testing.T) {
	f := newAgentFixture(t)

	w := serve(f.mux, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope[api.AgentListResponse](t, w)
	assert.Equal(t, 5, env.Data.Total)
	assert.Equal(t, config.MaxAgents, env.Data.Max)
	assert.Equal(t, fixtures.TriageAgent, env.Data.Agents[0].Name)
}

func TestAgentHandler_Get(t *testing.T) {
	f := newAgentFixture(t)

	w := serve(f.mux, httptest.NewRequest(http.MethodGet, "/api/v1/agents/HRAgent", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fixtures.HRAgent, decodeEnvelope[types.AgentSpec](t, w).Data.Name)

	w = serve(f.mux, httptest.NewRequest(http.MethodGet, "/api/v1/agents/Nobody", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(types.ErrAgentNotFound), decodeEnvelope[any](t, w).Error.Code)
}

func TestAgentHandler_CreateUpdateDelete(t *testing.T) {
	f := newAgentFixture(t)

	w := serve(f.mux, jsonRequest(http.MethodPost, "/api/v1/agents", baggageAgent()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	saved, err := config.LoadAgents(f.path)
	require.NoError(t, err)
	assert.Len(t, saved, 6)

	w = serve(f.mux, jsonRequest(http.MethodPost, "/api/v1/agents", baggageAgent()))
	assert.Equal(t, http.StatusConflict, w.Code)

	update := baggageAgent()
	update.Name = ""
	update.Description = "Baggage claims and fees"
	w = serve(f.mux, jsonRequest(http.MethodPut, "/api/v1/agents/BaggageAgent", update))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decodeEnvelope[types.AgentSpec](t, w)
	assert.Equal(t, "BaggageAgent", updated.Data.Name)
	assert.Equal(t, "Baggage claims and fees", updated.Data.Description)

	w = serve(f.mux, httptest.NewRequest(http.MethodDelete, "/api/v1/agents/BaggageAgent", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.catalog.Agents(), 5)
}

// 删除路由表引用的 Agent 时只去掉对应路由，变更照常生效
func TestAgentHandler_DeleteRoutingTarget(t *testing.T) {
	f := newAgentFixture(t)

	w := serve(f.mux, httptest.NewRequest(http.MethodDelete, "/api/v1/agents/HRAgent", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, f.catalog.Agents(), 4)

	saved, err := config.LoadAgents(f.path)
	require.NoError(t, err)
	for _, a := range saved {
		assert.NotEqual(t, fixtures.HRAgent, a.Name)
	}
}

func TestAgentHandler_Rejections(t *testing.T) {
	f := newAgentFixture(t)

	invalid := baggageAgent()
	invalid.Instructions = ""

	rename := api.AgentRequest{Name: "Dispatcher", Description: "d", Instructions: "i"}

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"missing instructions", jsonRequest(http.MethodPost, "/api/v1/agents", invalid), http.StatusBadRequest, types.ErrConfigInvalid},
		{"delete triage", httptest.NewRequest(http.MethodDelete, "/api/v1/agents/TriageAgent", nil), http.StatusForbidden, types.ErrAgentProtected},
		{"rename triage", jsonRequest(http.MethodPut, "/api/v1/agents/TriageAgent", rename), http.StatusForbidden, types.ErrAgentProtected},
		{"delete unknown", httptest.NewRequest(http.MethodDelete, "/api/v1/agents/Nobody", nil), http.StatusNotFound, types.ErrAgentNotFound},
		{"update unknown", jsonRequest(http.MethodPut, "/api/v1/agents/Nobody", baggageAgent()), http.StatusNotFound, types.ErrAgentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(f.mux, tt.req)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			env := decodeEnvelope[any](t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, string(tt.wantCode), env.Error.Code)
		})
	}
	assert.Len(t, f.catalog.Agents(), 5)
}

func TestAgentHandler_Limit(t *testing.T) {
	f := newAgentFixture(t)

	for i := len(f.catalog.Agents()); i < config.MaxAgents; i++ {
		req := baggageAgent()
		req.Name = "Extra" + string(rune('A'+i))
		w := serve(f.mux, jsonRequest(http.MethodPost, "/api/v1/agents", req))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := serve(f.mux, jsonRequest(http.MethodPost, "/api/v1/agents", baggageAgent()))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(types.ErrAgentLimit), decodeEnvelope[any](t, w).Error.Code)
}
