package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jilio/statesync"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements statesync.StateStore using SQLite.
// Each state keeps only its latest snapshot.
type SQLiteStore struct {
	db          *sql.DB
	cfg         *config
	logger      Logger
	metricsHook MetricsHook

	// Prepared statements
	saveStmt   *sql.Stmt
	loadStmt   *sql.Stmt
	deleteStmt *sql.Stmt
}

// Ensure SQLiteStore implements the required interfaces
var _ statesync.StateStore = (*SQLiteStore)(nil)

// dbOpener is used to open database connections, injectable for testing
var dbOpener = sql.Open

// New creates a new SQLiteStore with the given path and options.
//
// Note: When WithAutoMigrate is enabled (the default), migrations run with
// context.Background() and are not cancellable.
func New(path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}

	// Validate path to prevent URI parameter injection
	if path != ":memory:" && (strings.Contains(path, "?") || strings.Contains(path, "#")) {
		return nil, errors.New("sqlite: path cannot contain '?' or '#' characters")
	}

	cfg := defaultConfig()
	cfg.path = path
	for _, opt := range opts {
		opt(cfg)
	}

	var dsn string
	if cfg.path == ":memory:" {
		// Use shared cache mode for in-memory databases to allow multiple connections
		dsn = "file::memory:?mode=memory&cache=shared"
	} else {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=%d", cfg.path, cfg.busyTimeout.Milliseconds())
	}

	db, err := dbOpener("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	if err := applyPragmas(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply pragmas: %w", err)
	}

	if cfg.autoMigrate {
		if err := migrate(context.Background(), db); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: migrate: %w", err)
		}
	}

	return newFromDB(db, cfg)
}

// newFromDB creates a SQLiteStore from an existing database connection
func newFromDB(db *sql.DB, cfg *config) (*SQLiteStore, error) {
	store := &SQLiteStore{
		db:          db,
		cfg:         cfg,
		logger:      cfg.logger,
		metricsHook: cfg.metricsHook,
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: prepare statements: %w", err)
	}

	return store, nil
}

// applyPragmas configures SQLite for optimal performance
func applyPragmas(db *sql.DB, cfg *config) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	return nil
}

// prepareStatements prepares all SQL statements
func (s *SQLiteStore) prepareStatements() error {
	type stmtDef struct {
		dest **sql.Stmt
		sql  string
	}

	stmts := []stmtDef{
		{&s.saveStmt, `INSERT INTO state_snapshots (state_id, version, data, timestamp, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(state_id) DO UPDATE SET
				version = excluded.version,
				data = excluded.data,
				timestamp = excluded.timestamp,
				updated_at = CURRENT_TIMESTAMP`},
		{&s.loadStmt, "SELECT version, data, timestamp FROM state_snapshots WHERE state_id = ?"},
		{&s.deleteStmt, "DELETE FROM state_snapshots WHERE state_id = ?"},
	}

	for _, def := range stmts {
		stmt, err := s.db.Prepare(def.sql)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		*def.dest = stmt
	}

	return nil
}

// Save implements statesync.StateStore
func (s *SQLiteStore) Save(ctx context.Context, snapshot *statesync.Snapshot) error {
	start := time.Now()

	_, err := s.saveStmt.ExecContext(ctx, snapshot.StateID, snapshot.Version, []byte(snapshot.Data), snapshot.Timestamp.UTC())
	if s.metricsHook != nil {
		s.metricsHook.OnSave(time.Since(start), err)
	}
	if err != nil {
		if s.logger != nil {
			s.logger.Error("save snapshot failed", "state_id", snapshot.StateID, "error", err)
		}
		return fmt.Errorf("sqlite: save snapshot: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("saved snapshot", "state_id", snapshot.StateID, "version", snapshot.Version)
	}

	return nil
}

// Load implements statesync.StateStore
func (s *SQLiteStore) Load(ctx context.Context, stateID string) (*statesync.Snapshot, error) {
	start := time.Now()

	snapshot := &statesync.Snapshot{StateID: stateID}
	var data []byte
	err := s.loadStmt.QueryRowContext(ctx, stateID).Scan(&snapshot.Version, &data, &snapshot.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if s.metricsHook != nil {
				s.metricsHook.OnLoad(time.Since(start), false, nil)
			}
			return nil, statesync.ErrSnapshotNotFound
		}
		if s.metricsHook != nil {
			s.metricsHook.OnLoad(time.Since(start), false, err)
		}
		return nil, fmt.Errorf("sqlite: load snapshot: %w", err)
	}
	snapshot.Data = data

	if s.metricsHook != nil {
		s.metricsHook.OnLoad(time.Since(start), true, nil)
	}

	if s.logger != nil {
		s.logger.Debug("loaded snapshot", "state_id", stateID, "version", snapshot.Version)
	}

	return snapshot, nil
}

// Delete implements statesync.StateStore
func (s *SQLiteStore) Delete(ctx context.Context, stateID string) error {
	start := time.Now()

	_, err := s.deleteStmt.ExecContext(ctx, stateID)
	if s.metricsHook != nil {
		s.metricsHook.OnDelete(time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("sqlite: delete snapshot: %w", err)
	}

	return nil
}

// Close closes the database connection and releases resources.
// Prepared statement close errors are ignored as they cannot fail in practice
// with SQLite (the driver handles cleanup when the connection closes).
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{
		s.saveStmt,
		s.loadStmt,
		s.deleteStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}

	if s.logger != nil {
		s.logger.Info("closing sqlite store")
	}

	return s.db.Close()
}
