package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/agentdesk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBackend struct {
	data    map[string][]json.RawMessage
	loadErr error
	saveErr error
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string][]json.RawMessage)}
}

func (m *mapBackend) Save(_ context.Context, key string, records []json.RawMessage) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = append([]json.RawMessage(nil), records...)
	return nil
}

func (m *mapBackend) Load(_ context.Context, key string) ([]json.RawMessage, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data[key], nil
}

func TestStore_RecentAndByAuthor(t *testing.T) {
	s := NewStore("default", nil, nil)
	s.Append(types.UserTurn("hi"))
	s.Append(types.AssistantTurn("TriageAgent", "hello", ""))
	s.Append(types.UserTurn("seat please"))
	s.Append(types.AssistantTurn("SeatBookingAgent", "What is your seat number?", ""))
	s.Append(types.AssistantTurn("SeatBookingAgent", "And your flight number?", ""))

	assert.Equal(t, 5, s.Len())
	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "What is your seat number?", recent[0].Content)

	assert.Len(t, s.Recent(50), 5)
	assert.Empty(t, s.Recent(0))

	seat := s.RecentByAuthor("SeatBookingAgent", 1)
	require.Len(t, seat, 1)
	assert.Equal(t, "And your flight number?", seat[0].Content)
	assert.Len(t, s.RecentByAuthor("SeatBookingAgent", 5), 2)
	assert.Empty(t, s.RecentByAuthor("HRAgent", 5))

	assert.Len(t, s.ByRole(types.RoleUser), 2)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "SeatBookingAgent", last.Author)
}

func TestStore_ClearIdempotent(t *testing.T) {
	s := NewStore("default", nil, nil)
	s.Append(types.UserTurn("hi"))

	s.Clear()
	assert.Equal(t, 0, s.Len())
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Recent(3))
	_, ok := s.Last()
	assert.False(t, ok)
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore("default", nil, nil)
	s.Append(types.UserTurn("one"))
	all := s.All()
	all[0].Content = "mutated"
	assert.Equal(t, "one", s.All()[0].Content)
}

func TestStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewStore("c1", backend, nil)
	for _, content := range []string{"a", "b", "c"} {
		turn := types.UserTurn(content)
		turn.Timestamp = ts
		s.Append(turn)
	}
	require.NoError(t, s.Persist(ctx))

	restored := NewStore("c1", backend, nil)
	stats, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Loaded: 3, Skipped: 0}, stats)
	assert.Equal(t, s.All(), restored.All())
}

func TestStore_LoadSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()
	good, err := json.Marshal(types.UserTurn("kept"))
	require.NoError(t, err)
	backend.data["c1"] = []json.RawMessage{
		json.RawMessage(`{"role":"user"`),
		good,
		json.RawMessage(`{"role":"robot","author":"x","content":"bad role"}`),
		json.RawMessage(`42`),
	}

	s := NewStore("c1", backend, nil)
	stats, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 3, stats.Skipped)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "kept", s.All()[0].Content)
}

func TestStore_BackendErrors(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()
	backend.loadErr = errors.New("disk gone")
	backend.saveErr = errors.New("disk full")

	s := NewStore("c1", backend, nil)
	s.Append(types.UserTurn("x"))

	err := s.Persist(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrPersistence))

	_, err = s.Load(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestStore_NilBackend(t *testing.T) {
	s := NewStore("c1", nil, nil)
	assert.NoError(t, s.Persist(context.Background()))
	stats, err := s.Load(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, stats.Loaded)
}
