package store

import (
	"database/sql"
	"fmt"

	"agentrunner/internal/logging"
)

// Migration defines a column added after a table's first release.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations handle databases whose tables predate newer columns.
var pendingMigrations = []Migration{
	// Which flow a session ran: "full" or a single tool name. Absent from
	// databases written before sessions were scoped.
	{"setup_sessions", "scope", "TEXT DEFAULT ''"},
}

// pendingIndexes are created after column migrations. A unique index fails
// on databases that already hold duplicates; that is logged, not fatal.
var pendingIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_setup_turns_session_turn ON setup_turns(session_id, turn_number)`,
	`CREATE INDEX IF NOT EXISTS idx_setup_sessions_started ON setup_sessions(started_at)`,
}

// RunMigrations applies schema migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	appliedCount := 0
	skippedCount := 0

	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			logging.StoreDebug("Table missing, skipping migration: %s.%s", m.Table, m.Column)
			skippedCount++
			continue
		}

		if columnExists(db, m.Table, m.Column) {
			skippedCount++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		logging.StoreDebug("Executing migration: %s", query)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		appliedCount++
	}

	for _, idx := range pendingIndexes {
		if _, err := db.Exec(idx); err != nil {
			logging.StoreWarn("Index creation failed: %v", err)
		}
	}

	logging.StoreDebug("Schema migrations complete: applied=%d, skipped=%d", appliedCount, skippedCount)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}
