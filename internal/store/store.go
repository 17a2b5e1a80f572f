// Package store persists the memory graph, the setup session log and CLI
// version history in SQLite.
//
// Every MemoryGraph is an independent handle onto a shared database file.
// Concurrent sessions each open their own handle; writes are single
// statements (or short transactions) and rely on SQLite's WAL locking with a
// busy timeout rather than an in-process mutex.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agentrunner/internal/logging"

	_ "modernc.org/sqlite"
)

// DefaultDriver is the pure-Go modernc.org/sqlite driver.
const DefaultDriver = "sqlite"

// timeFormat is fixed-width so lexical order in SQL matches time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// MemoryGraph is a handle onto the memory database.
type MemoryGraph struct {
	db     *sql.DB
	dbPath string
	driver string
}

// Open initializes the SQLite database at the given path using driver
// ("sqlite" or, in cgo builds, "sqlite3"). An empty driver selects the default.
func Open(path, driver string) (*MemoryGraph, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if driver == "" {
		driver = DefaultDriver
	}

	inMemory := path == ":memory:"
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn(path, driver))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	g := &MemoryGraph{db: db, dbPath: path, driver: driver}
	if err := g.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("Memory graph opened: path=%s driver=%s", path, driver)
	return g, nil
}

func dsn(path, driver string) string {
	if path == ":memory:" {
		return path
	}
	switch driver {
	case "sqlite3":
		return path + "?_journal_mode=WAL&_busy_timeout=5000"
	default:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
}

// initialize creates the required tables.
func (g *MemoryGraph) initialize() error {
	nodesTable := `
	CREATE TABLE IF NOT EXISTS memory_nodes (
		id TEXT PRIMARY KEY,
		node_type TEXT NOT NULL,
		label TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_nodes_type ON memory_nodes(node_type);
	`

	// Edges may name nodes that do not exist yet, so no foreign keys.
	edgesTable := `
	CREATE TABLE IF NOT EXISTS memory_edges (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		edge_type TEXT NOT NULL,
		data TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (source_id, target_id, edge_type)
	);
	CREATE INDEX IF NOT EXISTS idx_memory_edges_target ON memory_edges(target_id);
	`

	sessionsTable := `
	CREATE TABLE IF NOT EXISTS setup_sessions (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		outcome TEXT,
		turn_count INTEGER DEFAULT 0,
		scope TEXT DEFAULT ''
	);
	`

	turnsTable := `
	CREATE TABLE IF NOT EXISTS setup_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		agent_prompt TEXT NOT NULL,
		agent_response TEXT NOT NULL,
		events_emitted TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	versionTables := `
	CREATE TABLE IF NOT EXISTS cli_versions (
		cli_name TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		path TEXT,
		detected_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS cli_version_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cli_name TEXT NOT NULL,
		version TEXT NOT NULL,
		path TEXT,
		detected_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cli_version_history_name ON cli_version_history(cli_name, detected_at);
	`

	for _, table := range []string{nodesTable, edgesTable, sessionsTable, turnsTable, versionTables} {
		if _, err := g.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	return RunMigrations(g.db)
}

// Close closes the database connection.
func (g *MemoryGraph) Close() error {
	return g.db.Close()
}

// Path returns the database file this handle was opened on.
func (g *MemoryGraph) Path() string {
	return g.dbPath
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}

// parseTime accepts the fixed-width format and plain RFC 3339, which older
// databases may contain.
func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
