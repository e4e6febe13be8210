package handoff

import (
	"testing"

	"github.com/BaSui01/agentdesk/agent/conversation"
	"github.com/BaSui01/agentdesk/testutil/fixtures"
	"github.com/BaSui01/agentdesk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newRouter(t testing.TB) *Router {
	t.Helper()
	r, err := NewRouter(RouterConfig{TriageAgent: fixtures.TriageAgent}, fixtures.AirlineAgents(), nil, nil)
	require.NoError(t, err)
	return r
}

func history(turns ...types.Turn) *conversation.Store {
	s := conversation.NewStore("router-test", nil, nil)
	for _, t := range turns {
		s.Append(t)
	}
	return s
}

func TestNewRouter_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   RouterConfig
		specs []types.AgentSpec
	}{
		{
			name:  "missing triage",
			cfg:   RouterConfig{TriageAgent: "Nobody"},
			specs: fixtures.AirlineAgents(),
		},
		{
			name:  "route to unknown agent",
			cfg:   RouterConfig{TriageAgent: fixtures.TriageAgent},
			specs: fixtures.AirlineAgents()[:2],
		},
		{
			name: "route to triage",
			cfg: RouterConfig{
				TriageAgent: fixtures.TriageAgent,
				Table:       RoutingTable{{Category: "all", Agent: fixtures.TriageAgent, Keywords: []string{"help"}}},
			},
			specs: fixtures.AirlineAgents(),
		},
		{
			name: "route without keywords",
			cfg: RouterConfig{
				TriageAgent: fixtures.TriageAgent,
				Table:       RoutingTable{{Category: "hr", Agent: fixtures.HRAgent, Keywords: []string{" "}}},
			},
			specs: fixtures.AirlineAgents(),
		},
		{
			name: "split to unknown agent",
			cfg: RouterConfig{
				TriageAgent: fixtures.TriageAgent,
				Table: RoutingTable{{
					Category: "flight", Agent: fixtures.FlightStatusAgent, Keywords: []string{"flight"},
					Split: []Route{{Category: "meal", Agent: "MealAgent", Keywords: []string{"meal"}}},
				}},
			},
			specs: fixtures.AirlineAgents(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRouter(tt.cfg, tt.specs, nil, nil)
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrConfigInvalid), "got %v", err)
		})
	}
}

func TestRouter_Match(t *testing.T) {
	r := newRouter(t)
	tests := []struct {
		text     string
		agent    string
		category string
	}{
		{"I forgot my password", fixtures.TechSupportAgent, "tech"},
		{"The APP keeps crashing", fixtures.TechSupportAgent, "tech"},
		{"How many vacation days do I have?", fixtures.HRAgent, "hr"},
		{"I need to change my seat", fixtures.SeatBookingAgent, "seat"},
		{"Is my flight delayed?", fixtures.FlightStatusAgent, "status"},
		{"Tell me about my flight", fixtures.FlightStatusAgent, "flight"},
		{"I want an aisle seat on flight JJ1234", fixtures.SeatBookingAgent, "seat"},
		{"My password does not work for the flight website", fixtures.TechSupportAgent, "tech"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			agent, category, ok := r.Match(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.agent, agent)
			assert.Equal(t, tt.category, category)
		})
	}

	for _, text := range []string{"hello there", "happy to apply", "three things", "12A"} {
		_, _, ok := r.Match(text)
		assert.False(t, ok, text)
	}
}

func TestRouter_ForcedRouteUsesNarrowPayload(t *testing.T) {
	r := newRouter(t)
	h := history(
		types.AssistantTurn(fixtures.SeatBookingAgent, "Which flight?", ""),
		types.UserTurn("I need to change my seat"),
	)

	d := r.Route(h, "I need to change my seat")

	assert.Equal(t, fixtures.SeatBookingAgent, d.Target)
	assert.Equal(t, MethodForced, d.Method)
	assert.Equal(t, "You said: Which flight?\n\nI need to change my seat", d.Payload.Text)
}

func TestRouter_ContinuityOverride(t *testing.T) {
	r := newRouter(t)
	h := history(
		types.UserTurn("I want to change my seat"),
		types.AssistantTurn(fixtures.SeatBookingAgent, "What is your seat number?", ""),
		types.UserTurn("12A"),
	)

	d := r.Route(h, "12A")

	assert.Equal(t, fixtures.SeatBookingAgent, d.Target)
	assert.Equal(t, MethodContinuity, d.Method)
	assert.Contains(t, d.Payload.Text, "You said: What is your seat number?")
}

func TestRouter_ContinuityDirectivePhrase(t *testing.T) {
	r := newRouter(t)
	h := history(
		types.AssistantTurn(fixtures.FlightStatusAgent, "Please provide the flight number.", ""),
		types.UserTurn("JJ1234"),
	)

	d := r.Route(h, "JJ1234")
	assert.Equal(t, MethodContinuity, d.Method)
	assert.Equal(t, fixtures.FlightStatusAgent, d.Target)
}

func TestRouter_Orchestrated(t *testing.T) {
	r := newRouter(t)
	tests := []struct {
		name  string
		turns []types.Turn
	}{
		{name: "empty history"},
		{
			name: "specialist did not ask",
			turns: []types.Turn{
				types.AssistantTurn(fixtures.SeatBookingAgent, "Your seat is now 12A.", ""),
			},
		},
		{
			name: "triage question does not count",
			turns: []types.Turn{
				types.AssistantTurn(fixtures.TriageAgent, "How can I help you?", ""),
			},
		},
		{
			name: "question outside the window",
			turns: []types.Turn{
				types.AssistantTurn(fixtures.SeatBookingAgent, "Which seat?", ""),
				types.UserTurn("hmm"),
				types.AssistantTurn(fixtures.TriageAgent, "Anything else", ""),
				types.UserTurn("thanks"),
			},
		},
		{
			name: "unregistered active agent",
			turns: []types.Turn{
				types.AssistantTurn("RetiredAgent", "What is your name?", ""),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := history(tt.turns...)
			h.Append(types.UserTurn("thanks"))

			d := r.Route(h, "thanks")
			assert.Equal(t, MethodOrchestrated, d.Method)
			assert.Equal(t, fixtures.TriageAgent, d.Target)
			assert.Contains(t, d.Payload.Text, "Current user message: thanks")
		})
	}
}

func TestRouter_ForcedBeatsContinuity(t *testing.T) {
	r := newRouter(t)
	h := history(types.AssistantTurn(fixtures.SeatBookingAgent, "What is your seat number?", ""))

	d := r.Route(h, "Actually I forgot my password")
	assert.Equal(t, MethodForced, d.Method)
	assert.Equal(t, fixtures.TechSupportAgent, d.Target)
}

func TestRouter_HasQuestionCue(t *testing.T) {
	r := newRouter(t)
	assert.True(t, r.HasQuestionCue("Which seat would you like?  "))
	assert.True(t, r.HasQuestionCue("Please CONFIRM the booking."))
	assert.True(t, r.HasQuestionCue("Let me know your flight number."))
	assert.False(t, r.HasQuestionCue("Your seat is confirmed."))
}

func TestRoutingTable_Agents(t *testing.T) {
	assert.Equal(t,
		[]string{fixtures.TechSupportAgent, fixtures.HRAgent, fixtures.FlightStatusAgent, fixtures.SeatBookingAgent},
		DefaultRoutingTable().Agents())
}

func TestRoutingTable_Restrict(t *testing.T) {
	all := map[string]bool{}
	for _, a := range fixtures.AirlineAgents() {
		all[a.Name] = true
	}
	without := func(names ...string) map[string]bool {
		m := make(map[string]bool, len(all))
		for k := range all {
			m[k] = true
		}
		for _, n := range names {
			delete(m, n)
		}
		return m
	}

	tests := []struct {
		name        string
		registered  map[string]bool
		wantAgents  []string
		wantDropped []string
	}{
		{"all registered", all, DefaultRoutingTable().Agents(), nil},
		{"split target removed", without(fixtures.SeatBookingAgent),
			[]string{fixtures.TechSupportAgent, fixtures.HRAgent, fixtures.FlightStatusAgent}, []string{"flight/seat"}},
		{"top-level target removed", without(fixtures.HRAgent),
			[]string{fixtures.TechSupportAgent, fixtures.FlightStatusAgent, fixtures.SeatBookingAgent}, []string{"hr"}},
		{"parent removes its splits", without(fixtures.FlightStatusAgent),
			[]string{fixtures.TechSupportAgent, fixtures.HRAgent}, []string{"flight"}},
		{"nothing registered", map[string]bool{}, nil, []string{"tech", "hr", "flight"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dropped := DefaultRoutingTable().Restrict(tt.registered)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantAgents, got.Agents())
			assert.Equal(t, tt.wantDropped, dropped)
		})
	}

	// 原表不被修改
	table := DefaultRoutingTable()
	_, _ = table.Restrict(without(fixtures.SeatBookingAgent))
	assert.Len(t, table[2].Split, 2)
}

func TestNewRouter_RestrictedTable(t *testing.T) {
	agents := []types.AgentSpec{}
	registered := map[string]bool{}
	for _, a := range fixtures.AirlineAgents() {
		if a.Name == fixtures.SeatBookingAgent {
			continue
		}
		agents = append(agents, a)
		registered[a.Name] = true
	}
	table, _ := DefaultRoutingTable().Restrict(registered)
	r, err := NewRouter(RouterConfig{TriageAgent: fixtures.TriageAgent, Table: table}, agents, nil, nil)
	require.NoError(t, err)

	// 座位子规则已移除，落到 flight 的默认 Agent
	agent, category, ok := r.Match("I need to change my seat")
	require.True(t, ok)
	assert.Equal(t, fixtures.FlightStatusAgent, agent)
	assert.Equal(t, "flight", category)
}

// tech 关键词与 flight 关键词同时出现时总是路由到技术支持
func TestRouter_TechPriorityProperty(t *testing.T) {
	r := newRouter(t)
	tech := []string{"password", "login", "website", "bug", "crash"}
	flight := []string{"flight", "seat", "boarding", "gate", "delayed"}

	rapid.Check(t, func(t *rapid.T) {
		tw := rapid.SampledFrom(tech).Draw(t, "tech")
		fw := rapid.SampledFrom(flight).Draw(t, "flight")
		filler := rapid.StringMatching(`[0-9 ]{0,10}`).Draw(t, "filler")
		var text string
		if rapid.Bool().Draw(t, "techFirst") {
			text = tw + " " + filler + " " + fw
		} else {
			text = fw + " " + filler + " " + tw
		}
		d := r.Route(history(), text)
		if d.Method != MethodForced || d.Target != fixtures.TechSupportAgent {
			t.Fatalf("%q routed to %s via %s", text, d.Target, d.Method)
		}
	})
}
