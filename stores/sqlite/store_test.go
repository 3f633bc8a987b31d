package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jilio/statesync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	t *testing.T
}

func (l *testLogger) Debug(msg string, args ...any) {
	l.t.Logf("DEBUG: %s %v", msg, args)
}

func (l *testLogger) Info(msg string, args ...any) {
	l.t.Logf("INFO: %s %v", msg, args)
}

func (l *testLogger) Error(msg string, args ...any) {
	l.t.Logf("ERROR: %s %v", msg, args)
}

// testMetricsHook implements MetricsHook for testing
type testMetricsHook struct {
	mu          sync.Mutex
	saveCount   int
	loadCount   int
	deleteCount int
	lastFound   bool
}

func (h *testMetricsHook) OnSave(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saveCount++
}

func (h *testMetricsHook) OnLoad(duration time.Duration, found bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadCount++
	h.lastFound = found
}

func (h *testMetricsHook) OnDelete(duration time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deleteCount++
}

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "state.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	t.Run("requires path", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)
	})

	t.Run("rejects uri parameters", func(t *testing.T) {
		_, err := New("state.db?mode=ro")
		require.Error(t, err)

		_, err = New("state.db#frag")
		require.Error(t, err)
	})

	t.Run("creates file store", func(t *testing.T) {
		store := newTestStore(t, WithBusyTimeout(time.Second), WithLogger(&testLogger{t: t}))
		assert.NotNil(t, store)
	})

	t.Run("without auto migrate the table is missing", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "bare.db"), WithAutoMigrate(false))
		require.Error(t, err, "preparing statements needs the schema")
	})
}

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	WithBusyTimeout(0)(cfg)
	assert.Equal(t, defaultBusyTimeout, cfg.busyTimeout)

	WithBusyTimeout(time.Second)(cfg)
	assert.Equal(t, time.Second, cfg.busyTimeout)

	assert.True(t, cfg.autoMigrate)
	WithAutoMigrate(false)(cfg)
	assert.False(t, cfg.autoMigrate)

	var logger Logger = &testLogger{t: t}
	WithLogger(logger)(cfg)
	assert.Same(t, logger, cfg.logger)
}

func TestSaveLoad(t *testing.T) {
	hook := &testMetricsHook{}
	store := newTestStore(t, WithMetricsHook(hook))
	ctx := context.Background()

	ts := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	err := store.Save(ctx, &statesync.Snapshot{
		StateID:   "counter",
		Version:   3,
		Data:      []byte(`{"count":3}`),
		Timestamp: ts,
	})
	require.NoError(t, err)

	loaded, err := store.Load(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, "counter", loaded.StateID)
	assert.Equal(t, int64(3), loaded.Version)
	assert.JSONEq(t, `{"count":3}`, string(loaded.Data))
	assert.True(t, ts.Equal(loaded.Timestamp), "timestamp %v", loaded.Timestamp)

	assert.Equal(t, 1, hook.saveCount)
	assert.Equal(t, 1, hook.loadCount)
	assert.True(t, hook.lastFound)
}

func TestSaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for version := int64(1); version <= 3; version++ {
		require.NoError(t, store.Save(ctx, &statesync.Snapshot{
			StateID:   "s",
			Version:   version,
			Data:      []byte(`{}`),
			Timestamp: time.Now(),
		}))
	}

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.Version)
}

func TestLoadMissing(t *testing.T) {
	hook := &testMetricsHook{}
	store := newTestStore(t, WithMetricsHook(hook))

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, statesync.ErrSnapshotNotFound)
	assert.False(t, hook.lastFound)
}

func TestDelete(t *testing.T) {
	hook := &testMetricsHook{}
	store := newTestStore(t, WithMetricsHook(hook))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &statesync.Snapshot{StateID: "s", Data: []byte(`{}`), Timestamp: time.Now()}))
	require.NoError(t, store.Delete(ctx, "s"))

	_, err := store.Load(ctx, "s")
	assert.ErrorIs(t, err, statesync.ErrSnapshotNotFound)
	assert.Equal(t, 1, hook.deleteCount)

	// deleting again is fine
	require.NoError(t, store.Delete(ctx, "s"))
}

func TestSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &statesync.Snapshot{StateID: "s", Version: 7, Data: []byte(`{"a":1}`), Timestamp: time.Now()}))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.Version)
}

func TestMigrate(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, RunMigrate(ctx, db))
	// idempotent
	require.NoError(t, RunMigrate(ctx, db))

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	_, err = db.Exec("INSERT INTO schema_version (version) VALUES (99)")
	require.NoError(t, err)
	assert.Error(t, RunMigrate(ctx, db))
}

func TestNewFromDBWithoutSchema(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)

	_, err = NewFromDB(db)
	require.Error(t, err)
}

func TestOpenError(t *testing.T) {
	orig := dbOpener
	defer func() { dbOpener = orig }()

	dbOpener = func(driverName, dataSourceName string) (*sql.DB, error) {
		return nil, errors.New("open failed")
	}

	_, err := New(filepath.Join(t.TempDir(), "x.db"))
	require.ErrorContains(t, err, "open failed")
}

func TestStateRoundTrip(t *testing.T) {
	store := newTestStore(t)

	first, err := statesync.NewState(
		statesync.WithDefaultState(map[string]any{"count": 0}),
		statesync.WithStore(store, "counter"),
	)
	require.NoError(t, err)
	require.NoError(t, first.SetAttr("count", 5))

	second, err := statesync.NewState(
		statesync.WithDefaultState(map[string]any{"count": 0}),
		statesync.WithStore(store, "counter"),
	)
	require.NoError(t, err)
	// numbers come back from JSON as float64
	assert.Equal(t, float64(5), second.Get("count"))
	assert.Equal(t, int64(1), second.Version())
	assert.Equal(t, map[string]any{"count": 0}, second.InitialState())
}
