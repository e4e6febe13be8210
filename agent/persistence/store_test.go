package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/agentdesk/agent/conversation"
	"github.com/BaSui01/agentdesk/internal/database"
	"github.com/BaSui01/agentdesk/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 Backend contract
// =============================================================================

func backends(t *testing.T) map[string]SnapshotStore {
	t.Helper()

	file, err := NewFileSnapshotStore(StoreConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	cfg := DefaultStoreConfig()
	cfg.Redis.Addr = mr.Addr()
	rds, err := NewRedisSnapshotStore(cfg)
	require.NoError(t, err)

	sqlCfg := DefaultStoreConfig()
	sqlCfg.SQL.Driver = database.DriverSQLite
	sqlCfg.SQL.DSN = filepath.Join(t.TempDir(), "turns.db")
	sqlCfg.SQL.AutoMigrate = true
	sqlStore, err := NewSQLSnapshotStore(sqlCfg, nil)
	require.NoError(t, err)

	bolt, err := NewBoltSnapshotStore(StoreConfig{BoltPath: filepath.Join(t.TempDir(), "conv.bolt")})
	require.NoError(t, err)

	stores := map[string]SnapshotStore{
		"memory": NewMemorySnapshotStore(),
		"bolt":   bolt,
		"file":   file,
		"redis":  rds,
		"sql":    sqlStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestSnapshotStores_Contract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Ping(ctx))

			empty, err := store.Load(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, empty)

			first := []json.RawMessage{
				json.RawMessage(`{"n":1}`),
				json.RawMessage(`{"n":2}`),
				json.RawMessage(`{"n":3}`),
			}
			require.NoError(t, store.Save(ctx, "conv-1", first))

			got, err := store.Load(ctx, "conv-1")
			require.NoError(t, err)
			require.Len(t, got, 3)
			for i := range first {
				assert.JSONEq(t, string(first[i]), string(got[i]))
			}

			// Save replaces, never appends.
			require.NoError(t, store.Save(ctx, "conv-1", first[:1]))
			got, err = store.Load(ctx, "conv-1")
			require.NoError(t, err)
			assert.Len(t, got, 1)

			require.NoError(t, store.Save(ctx, "conv-1", nil))
			got, err = store.Load(ctx, "conv-1")
			require.NoError(t, err)
			assert.Empty(t, got)

			// Keys are isolated.
			require.NoError(t, store.Save(ctx, "conv-2", first))
			got, err = store.Load(ctx, "conv-1")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSnapshotStores_RejectUnsafeKeys(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"", "../etc/passwd", "a/b", ".."} {
				assert.ErrorIs(t, store.Save(ctx, key, nil), ErrInvalidInput, key)
				_, err := store.Load(ctx, key)
				assert.ErrorIs(t, err, ErrInvalidInput, key)
			}
		})
	}
}

func TestSnapshotStores_WithConversationStore(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := conversation.NewStore("default", backend, nil)
			s.Append(types.UserTurn("I need to change my seat"))
			s.Append(types.AssistantTurn("SeatBookingAgent", "What is your flight number?", "gpt-4o-mini"))
			require.NoError(t, s.Persist(ctx))

			restored := conversation.NewStore("default", backend, nil)
			stats, err := restored.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, stats.Loaded)
			assert.Equal(t, s.All(), restored.All())
		})
	}
}

// =============================================================================
// 🧪 File backend specifics
// =============================================================================

func TestFileSnapshotStore_MalformedRecordSkipped(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSnapshotStore(StoreConfig{BaseDir: dir})
	require.NoError(t, err)

	good := `{"id":"1","role":"user","author":"user","content":"hello","timestamp":"2024-05-01T12:00:00Z"}`
	raw := `[` + good + `, {"id":"2","role":"assistant"}, "oops", ` + good + `]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.json"), []byte(raw), 0o644))

	s := conversation.NewStore("default", store, nil)
	stats, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Loaded)
	assert.Equal(t, 2, stats.Skipped)
}

func TestFileSnapshotStore_EmptyAndCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSnapshotStore(StoreConfig{BaseDir: dir})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), nil, 0o644))
	got, err := store.Load(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.json"), []byte("{not an array"), 0o644))
	_, err = store.Load(context.Background(), "corrupt")
	assert.Error(t, err)
}

func TestFileSnapshotStore_AtomicWriteLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSnapshotStore(StoreConfig{BaseDir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "c", []json.RawMessage{json.RawMessage(`{}`)}))

	_, err = os.Stat(filepath.Join(dir, "c.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewSnapshotStore_Factory(t *testing.T) {
	s, err := NewSnapshotStore(StoreConfig{Type: StoreTypeMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemorySnapshotStore{}, s)

	s, err = NewSnapshotStore(StoreConfig{Type: StoreTypeFile, BaseDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileSnapshotStore{}, s)

	s, err = NewSnapshotStore(StoreConfig{Type: StoreTypeBolt, BoltPath: filepath.Join(t.TempDir(), "x.bolt")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &BoltSnapshotStore{}, s)
	require.NoError(t, s.Close())

	_, err = NewSnapshotStore(StoreConfig{Type: StoreTypeBolt}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSnapshotStore(StoreConfig{Type: "mongo"}, nil)
	assert.Error(t, err)

	_, err = NewSnapshotStore(StoreConfig{Type: StoreTypeFile}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemorySnapshotStore_Closed(t *testing.T) {
	s := NewMemorySnapshotStore()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Save(context.Background(), "k", nil), ErrStoreClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreClosed)
}

// =============================================================================
// 🧪 Bolt backend specifics
// =============================================================================

func TestBoltSnapshotStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "conv.bolt")
	ctx := context.Background()

	store, err := NewBoltSnapshotStore(StoreConfig{BoltPath: path})
	require.NoError(t, err)
	records := make([]json.RawMessage, 300)
	for i := range records {
		records[i] = json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))
	}
	require.NoError(t, store.Save(ctx, "booking-42", records))
	require.NoError(t, store.Close())

	reopened, err := NewBoltSnapshotStore(StoreConfig{BoltPath: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx, "booking-42")
	require.NoError(t, err)
	require.Len(t, got, 300)
	// 位置键按大端序排列，超过 255 条仍保持顺序
	assert.JSONEq(t, `{"n":256}`, string(got[256]))
	assert.JSONEq(t, `{"n":299}`, string(got[299]))
}

func TestBoltSnapshotStore_Closed(t *testing.T) {
	store, err := NewBoltSnapshotStore(StoreConfig{BoltPath: filepath.Join(t.TempDir(), "conv.bolt")})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.Save(ctx, "k", nil), ErrStoreClosed)
	_, err = store.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
}
