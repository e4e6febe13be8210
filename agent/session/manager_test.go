package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentdesk/agent/conversation"
	"github.com/BaSui01/agentdesk/agent/handoff"
	"github.com/BaSui01/agentdesk/agent/persistence"
	"github.com/BaSui01/agentdesk/llm"
	"github.com/BaSui01/agentdesk/testutil"
	"github.com/BaSui01/agentdesk/testutil/fixtures"
	"github.com/BaSui01/agentdesk/testutil/mocks"
	"github.com/BaSui01/agentdesk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, provider *mocks.MockProvider) (*Manager, *persistence.MemorySnapshotStore) {
	t.Helper()
	backend := persistence.NewMemorySnapshotStore()
	m, err := NewManager(testutil.TestContext(t), Options{
		Agents:   fixtures.AirlineAgents(),
		Rules:    []types.GuardrailRule{fixtures.PIIRule()},
		Provider: provider,
	}, backend)
	require.NoError(t, err)
	return m, backend
}

func TestNewManager_InvalidConfig(t *testing.T) {
	_, err := NewManager(testutil.TestContext(t), Options{
		Agents:   fixtures.AirlineAgents()[:1],
		Provider: mocks.NewMockProvider(),
	}, nil)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))
}

func TestManager_Conversations(t *testing.T) {
	m, backend := newManager(t, mocks.NewMockProvider().WithResponse("Hello!"))
	ctx := testutil.TestContext(t)

	resp, err := m.ProcessTurn(ctx, "", "hi")
	require.NoError(t, err)
	assert.Equal(t, fixtures.TriageAgent, resp.Author)

	_, err = m.ProcessTurn(ctx, "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", DefaultConversation}, m.Conversations())

	store := conversation.NewStore("alice", backend, nil)
	_, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestManager_InvalidConversationID(t *testing.T) {
	m, _ := newManager(t, mocks.NewMockProvider())

	for _, id := range []string{"../etc", "with space", "a/b"} {
		_, err := m.ProcessTurn(testutil.TestContext(t), id, "hi")
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest), id)
	}
}

func TestManager_RebuildKeepsHistory(t *testing.T) {
	provider := mocks.NewMockProvider().
		On(fixtures.Marker(fixtures.TechSupportAgent), mocks.Reply{Content: "Try resetting it."}).
		WithResponse("Hello!")
	m, _ := newManager(t, provider)
	ctx := testutil.TestContext(t)

	_, err := m.ProcessTurn(ctx, DefaultConversation, "I forgot my password")
	require.NoError(t, err)
	before, err := m.Session(ctx, DefaultConversation)
	require.NoError(t, err)

	agents := fixtures.AirlineAgents()
	agents[1].Description = "Logins and passwords"
	require.NoError(t, m.Rebuild(ctx, agents, nil))

	after, err := m.Session(ctx, DefaultConversation)
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Equal(t, StateClosed, before.State())
	assert.Len(t, after.History(0), 2)
	assert.Empty(t, after.Status().GuardrailRules)
	assert.Equal(t, "Logins and passwords", m.Agents()[1].Description)

	// 规则已移除，原本会被拦截的消息放行
	resp, err := m.ProcessTurn(ctx, DefaultConversation, "What's your email?")
	require.NoError(t, err)
	assert.False(t, resp.Blocked)
}

func TestManager_RebuildRejectsInvalidAgents(t *testing.T) {
	m, _ := newManager(t, mocks.NewMockProvider())
	ctx := testutil.TestContext(t)
	before, err := m.Session(ctx, DefaultConversation)
	require.NoError(t, err)

	err = m.Rebuild(ctx, fixtures.AirlineAgents()[1:], nil)
	assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid))

	after, err := m.Session(ctx, DefaultConversation)
	require.NoError(t, err)
	assert.Same(t, before, after)
	assert.Len(t, m.Agents(), 5)
	assert.Len(t, m.Rules(), 1)
}

func TestManager_RebuildDropsRoutesToDeletedAgents(t *testing.T) {
	provider := mocks.NewMockProvider().
		On(fixtures.Marker(fixtures.SeatBookingAgent), mocks.Reply{Content: "Seat 12A is yours."}).
		On(fixtures.Marker(fixtures.FlightStatusAgent), mocks.Reply{Content: "Seat changes are handled at check-in."})
	m, _ := newManager(t, provider)
	ctx := testutil.TestContext(t)

	var withoutSeat []types.AgentSpec
	for _, a := range fixtures.AirlineAgents() {
		if a.Name != fixtures.SeatBookingAgent {
			withoutSeat = append(withoutSeat, a)
		}
	}
	require.NoError(t, m.Rebuild(ctx, withoutSeat, nil))
	assert.Len(t, m.Agents(), 4)

	resp, err := m.ProcessTurn(ctx, "seat-removed", "I need to change my seat")
	require.NoError(t, err)
	assert.Equal(t, fixtures.FlightStatusAgent, resp.Author)
	assert.Equal(t, handoff.MethodForced, resp.Method)

	// Agent 重新加入后座位路由恢复
	require.NoError(t, m.Rebuild(ctx, fixtures.AirlineAgents(), nil))
	resp, err = m.ProcessTurn(ctx, "seat-restored", "I need to change my seat")
	require.NoError(t, err)
	assert.Equal(t, fixtures.SeatBookingAgent, resp.Author)
	assert.Equal(t, handoff.MethodForced, resp.Method)
}

func TestManager_ConcurrentTurnsAreSerialized(t *testing.T) {
	m, _ := newManager(t, mocks.NewMockProvider().WithResponse("ok"))
	ctx := testutil.TestContext(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.ProcessTurn(ctx, DefaultConversation, "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := m.Session(ctx, DefaultConversation)
	require.NoError(t, err)
	turns := s.History(0)
	require.Len(t, turns, 20)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, types.AuthorUser, turns[i].Author)
		assert.Equal(t, fixtures.TriageAgent, turns[i+1].Author)
	}
}

func TestManager_ClearWaitsForInFlightTurn(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	provider := mocks.NewMockProvider().WithCompletionFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		once.Do(func() { close(started) })
		<-release
		return &llm.ChatResponse{Model: req.Model, Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: "Hello!"},
		}}}, nil
	})
	m, backend := newManager(t, provider)
	ctx := testutil.TestContext(t)

	turnDone := make(chan error, 1)
	go func() {
		_, err := m.ProcessTurn(ctx, "busy", "hi")
		turnDone <- err
	}()
	<-started

	clearDone := make(chan error, 1)
	go func() { clearDone <- m.Clear(ctx, "busy") }()

	// 轮次未结束前清空必须等待
	select {
	case <-clearDone:
		t.Fatal("clear finished while a turn was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-turnDone)
	require.NoError(t, <-clearDone)

	s, err := m.Session(ctx, "busy")
	require.NoError(t, err)
	assert.Empty(t, s.History(0))

	store := conversation.NewStore("busy", backend, nil)
	_, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestManager_ClearInvalidConversationID(t *testing.T) {
	m, _ := newManager(t, mocks.NewMockProvider())
	err := m.Clear(testutil.TestContext(t), "../etc")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestManager_Close(t *testing.T) {
	m, _ := newManager(t, mocks.NewMockProvider())
	ctx := testutil.TestContext(t)

	require.NoError(t, m.Close(ctx))
	_, err := m.ProcessTurn(ctx, DefaultConversation, "hi")
	assert.True(t, types.IsErrorCode(err, types.ErrSessionClosed))
	assert.True(t, types.IsErrorCode(m.Rebuild(ctx, fixtures.AirlineAgents(), nil), types.ErrSessionClosed))
}
