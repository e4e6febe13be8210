package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentdesk/testutil"
	"github.com/BaSui01/agentdesk/testutil/fixtures"
	"github.com/BaSui01/agentdesk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCatalogFiles(t *testing.T, agents []types.AgentSpec, rules []types.GuardrailRule) AgentsConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := AgentsConfig{
		AgentsFile:     filepath.Join(dir, "agents_config.json"),
		GuardrailsFile: filepath.Join(dir, "guardrails_config.json"),
	}
	require.NoError(t, SaveAgents(cfg.AgentsFile, agents))
	if rules != nil {
		require.NoError(t, SaveGuardrails(cfg.GuardrailsFile, rules))
	}
	return cfg
}

func newCatalog(t *testing.T) (*AgentCatalog, AgentsConfig) {
	t.Helper()
	cfg := writeCatalogFiles(t, fixtures.AirlineAgents(), []types.GuardrailRule{fixtures.PIIRule()})
	c, err := NewAgentCatalog(cfg, fixtures.TriageAgent, nil)
	require.NoError(t, err)
	return c, cfg
}

func specialist(name string) types.AgentSpec {
	return types.AgentSpec{
		Name:         name,
		Description:  name + " questions",
		Instructions: "You are " + name + ".",
	}
}

// --- 文件读写 ---

func TestLoadAgents(t *testing.T) {
	cfg := writeCatalogFiles(t, fixtures.AirlineAgents(), nil)

	agents, err := LoadAgents(cfg.AgentsFile)
	require.NoError(t, err)
	assert.Equal(t, fixtures.AirlineAgents(), agents)
}

func TestLoadAgents_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{"},
		{"not a list", `{"name":"A"}`},
		{"missing instructions", `[{"name":"A","description":"d"}]`},
		{"duplicate", `[{"name":"A","description":"d","instructions":"i"},{"name":"A","description":"d","instructions":"i"}]`},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, fmt.Sprintf("agents-%d.json", i))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadAgents(path)
			assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid), "got %v", err)
		})
	}

	_, err := LoadAgents(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadGuardrails(t *testing.T) {
	dir := t.TempDir()

	rules, err := LoadGuardrails(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, rules)

	path := filepath.Join(dir, "guardrails.json")
	want := []types.GuardrailRule{fixtures.PIIRule(), fixtures.SemanticRule("tone", "No insults")}
	require.NoError(t, SaveGuardrails(path, want))
	rules, err = LoadGuardrails(path)
	require.NoError(t, err)
	assert.Equal(t, want, rules)

	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"x","type":"keyword","enabled":true}]`), 0644))
	_, err = LoadGuardrails(path)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

func TestSaveAgents_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "agents.json")
	require.NoError(t, SaveAgents(path, fixtures.AirlineAgents()))

	_, err := os.Stat(path + ".tmp")
	assert.ErrorIs(t, err, os.ErrNotExist)
	agents, err := LoadAgents(path)
	require.NoError(t, err)
	assert.Len(t, agents, 5)
}

// --- AgentCatalog ---

func TestNewAgentCatalog_RequiresTriage(t *testing.T) {
	cfg := writeCatalogFiles(t, fixtures.AirlineAgents()[1:], nil)
	_, err := NewAgentCatalog(cfg, fixtures.TriageAgent, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

func TestAgentCatalog_Get(t *testing.T) {
	c, _ := newCatalog(t)

	a, err := c.Get(fixtures.HRAgent)
	require.NoError(t, err)
	assert.Equal(t, fixtures.HRAgent, a.Name)

	_, err = c.Get("Nobody")
	assert.True(t, types.IsErrorCode(err, types.ErrAgentNotFound))
	assert.Len(t, c.Rules(), 1)
}

func TestAgentCatalog_Create(t *testing.T) {
	c, cfg := newCatalog(t)
	ctx := testutil.TestContext(t)

	created, err := c.Create(ctx, specialist("BaggageAgent"))
	require.NoError(t, err)
	assert.Equal(t, "BaggageAgent", created.Name)

	onDisk, err := LoadAgents(cfg.AgentsFile)
	require.NoError(t, err)
	assert.Len(t, onDisk, 6)
	assert.Equal(t, "BaggageAgent", onDisk[5].Name)

	_, err = c.Create(ctx, specialist("BaggageAgent"))
	assert.True(t, types.IsErrorCode(err, types.ErrAgentExists))

	long := specialist(strings.Repeat("a", 51))
	_, err = c.Create(ctx, long)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))

	_, err = c.Create(ctx, types.AgentSpec{Name: "Half", Description: "d"})
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

func TestAgentCatalog_CreateLimit(t *testing.T) {
	c, _ := newCatalog(t)
	ctx := testutil.TestContext(t)

	for i := len(c.Agents()); i < MaxAgents; i++ {
		_, err := c.Create(ctx, specialist(fmt.Sprintf("Extra%d", i)))
		require.NoError(t, err)
	}
	_, err := c.Create(ctx, specialist("OneTooMany"))
	assert.True(t, types.IsErrorCode(err, types.ErrAgentLimit))
	assert.Len(t, c.Agents(), MaxAgents)
}

func TestAgentCatalog_Update(t *testing.T) {
	c, cfg := newCatalog(t)
	ctx := testutil.TestContext(t)

	spec := specialist("")
	spec.Description = "Payroll only"
	updated, err := c.Update(ctx, fixtures.HRAgent, spec)
	require.NoError(t, err)
	assert.Equal(t, fixtures.HRAgent, updated.Name)

	got, err := c.Get(fixtures.HRAgent)
	require.NoError(t, err)
	assert.Equal(t, "Payroll only", got.Description)

	renamed := specialist("PeopleAgent")
	_, err = c.Update(ctx, fixtures.HRAgent, renamed)
	require.NoError(t, err)
	onDisk, err := LoadAgents(cfg.AgentsFile)
	require.NoError(t, err)
	assert.Equal(t, "PeopleAgent", onDisk[2].Name)

	_, err = c.Update(ctx, "Nobody", specialist("Nobody"))
	assert.True(t, types.IsErrorCode(err, types.ErrAgentNotFound))

	_, err = c.Update(ctx, "PeopleAgent", specialist(fixtures.SeatBookingAgent))
	assert.True(t, types.IsErrorCode(err, types.ErrAgentExists))

	_, err = c.Update(ctx, fixtures.TriageAgent, specialist("Front"))
	assert.True(t, types.IsErrorCode(err, types.ErrAgentProtected))
}

func TestAgentCatalog_Delete(t *testing.T) {
	c, cfg := newCatalog(t)
	ctx := testutil.TestContext(t)

	err := c.Delete(ctx, fixtures.TriageAgent)
	assert.True(t, types.IsErrorCode(err, types.ErrAgentProtected))

	err = c.Delete(ctx, "Nobody")
	assert.True(t, types.IsErrorCode(err, types.ErrAgentNotFound))

	require.NoError(t, c.Delete(ctx, fixtures.HRAgent))
	onDisk, err := LoadAgents(cfg.AgentsFile)
	require.NoError(t, err)
	assert.Len(t, onDisk, 4)
	for _, a := range onDisk {
		assert.NotEqual(t, fixtures.HRAgent, a.Name)
	}
}

func TestAgentCatalog_ApplierRejectsChange(t *testing.T) {
	c, cfg := newCatalog(t)
	ctx := testutil.TestContext(t)

	var applied [][]types.AgentSpec
	c.SetApplier(func(_ context.Context, agents []types.AgentSpec, rules []types.GuardrailRule) error {
		applied = append(applied, agents)
		assert.Len(t, rules, 1)
		if len(agents) < 5 {
			return errors.New("not enough specialists")
		}
		return nil
	})

	_, err := c.Create(ctx, specialist("BaggageAgent"))
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Len(t, applied[0], 6)

	require.NoError(t, c.Delete(ctx, "BaggageAgent"))
	err = c.Delete(ctx, fixtures.HRAgent)
	require.Error(t, err)

	assert.Len(t, c.Agents(), 5)
	onDisk, err := LoadAgents(cfg.AgentsFile)
	require.NoError(t, err)
	assert.Len(t, onDisk, 5)
}

func TestAgentCatalog_Reload(t *testing.T) {
	c, cfg := newCatalog(t)
	ctx := testutil.TestContext(t)

	calls := 0
	c.SetApplier(func(context.Context, []types.AgentSpec, []types.GuardrailRule) error {
		calls++
		return nil
	})

	changed, err := c.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, calls)

	require.NoError(t, SaveGuardrails(cfg.GuardrailsFile, []types.GuardrailRule{}))
	changed, err = c.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, calls)
	assert.Empty(t, c.Rules())

	// 无效文件被拒绝，保留当前状态
	require.NoError(t, os.WriteFile(cfg.AgentsFile, []byte("[]"), 0644))
	_, err = c.Reload(ctx)
	assert.Error(t, err)
	assert.Len(t, c.Agents(), 5)
}

func TestWatchCatalog_ReloadsOnChange(t *testing.T) {
	c, cfg := newCatalog(t)
	ctx := testutil.TestContext(t)

	applied := make(chan []types.GuardrailRule, 4)
	c.SetApplier(func(_ context.Context, _ []types.AgentSpec, rules []types.GuardrailRule) error {
		applied <- rules
		return nil
	})

	w, err := WatchCatalog(ctx, c, nil,
		WithPollInterval(10*time.Millisecond),
		WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	rules := []types.GuardrailRule{fixtures.PIIRule(), fixtures.KeywordRule("profanity", "darn")}
	require.NoError(t, SaveGuardrails(cfg.GuardrailsFile, rules))
	info, err := os.Stat(cfg.GuardrailsFile)
	require.NoError(t, err)
	later := info.ModTime().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(cfg.GuardrailsFile, later, later))

	select {
	case got := <-applied:
		assert.Len(t, got, 2)
	case <-time.After(3 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	testutil.AssertEventuallyTrue(t, func() bool { return len(c.Rules()) == 2 }, time.Second)
}
