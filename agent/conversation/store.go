package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BaSui01/agentdesk/types"
	"go.uber.org/zap"
)

// SnapshotStore saves and restores the whole turn sequence of one
// conversation. Records are opaque JSON documents in insertion order.
type SnapshotStore interface {
	Save(ctx context.Context, key string, records []json.RawMessage) error
	Load(ctx context.Context, key string) ([]json.RawMessage, error)
}

// LoadStats reports the outcome of a best-effort restore.
type LoadStats struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// Store is the append-only turn log of a single conversation.
type Store struct {
	key     string
	backend SnapshotStore
	logger  *zap.Logger

	mu    sync.RWMutex
	turns []types.Turn
}

// NewStore creates an empty store. backend may be nil, in which case Persist
// and Load are no-ops.
func NewStore(key string, backend SnapshotStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		key:     key,
		backend: backend,
		logger:  logger.With(zap.String("component", "conversation_store"), zap.String("conversation", key)),
	}
}

// Key returns the snapshot key of this conversation.
func (s *Store) Key() string { return s.key }

// Append adds a turn at the end. It never rejects a turn.
func (s *Store) Append(turn types.Turn) {
	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// All returns a copy of every turn in insertion order.
func (s *Store) All() []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Turn(nil), s.turns...)
}

// Recent returns the last n turns, fewer if the history is shorter.
func (s *Store) Recent(n int) []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.turns, n)
}

// RecentByAuthor filters by author then takes the last n, preserving order.
func (s *Store) RecentByAuthor(author string, n int) []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Turn
	for _, t := range s.turns {
		if t.Author == author {
			out = append(out, t)
		}
	}
	return tail(out, n)
}

// ByRole returns every turn with the given role in insertion order.
func (s *Store) ByRole(role types.Role) []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Turn
	for _, t := range s.turns {
		if t.Role == role {
			out = append(out, t)
		}
	}
	return out
}

// Last returns the most recent turn.
func (s *Store) Last() (types.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return types.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Clear empties the store. Calling it on an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()
}

// Persist writes a snapshot of the whole sequence.
func (s *Store) Persist(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	turns := s.All()
	records := make([]json.RawMessage, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			s.logger.Warn("skip unserializable turn", zap.String("turn_id", t.ID), zap.Error(err))
			continue
		}
		records = append(records, data)
	}
	if err := s.backend.Save(ctx, s.key, records); err != nil {
		return types.NewError(types.ErrPersistence, "save conversation snapshot").WithCause(err)
	}
	return nil
}

// Load replaces the contents with the persisted snapshot. Malformed records
// are skipped individually. On a backend error the store is left empty.
func (s *Store) Load(ctx context.Context) (LoadStats, error) {
	var stats LoadStats
	if s.backend == nil {
		return stats, nil
	}
	records, err := s.backend.Load(ctx, s.key)
	if err != nil {
		s.Clear()
		return stats, types.NewError(types.ErrPersistence, "load conversation snapshot").WithCause(err)
	}

	turns := make([]types.Turn, 0, len(records))
	for i, raw := range records {
		t, err := decodeTurn(raw)
		if err != nil {
			stats.Skipped++
			s.logger.Warn("skip malformed turn record", zap.Int("index", i), zap.Error(err))
			continue
		}
		turns = append(turns, t)
	}
	stats.Loaded = len(turns)

	s.mu.Lock()
	s.turns = turns
	s.mu.Unlock()

	s.logger.Debug("conversation restored", zap.Int("loaded", stats.Loaded), zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func decodeTurn(raw json.RawMessage) (types.Turn, error) {
	var t types.Turn
	if err := json.Unmarshal(raw, &t); err != nil {
		return types.Turn{}, fmt.Errorf("decode turn: %w", err)
	}
	if err := t.Validate(); err != nil {
		return types.Turn{}, err
	}
	return t, nil
}

func tail(turns []types.Turn, n int) []types.Turn {
	if n <= 0 || len(turns) == 0 {
		return []types.Turn{}
	}
	if n > len(turns) {
		n = len(turns)
	}
	return append([]types.Turn(nil), turns[len(turns)-n:]...)
}
