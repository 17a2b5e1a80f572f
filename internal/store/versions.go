package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agentrunner/internal/logging"
)

// =============================================================================
// CLI VERSION TRACKING
// =============================================================================

// VersionRecord is one observed version of a CLI tool.
type VersionRecord struct {
	CLIName    string    `json:"cli_name"`
	Version    string    `json:"version"`
	Path       string    `json:"path,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

// VersionTracker records detected CLI versions in the memory database.
type VersionTracker struct {
	g *MemoryGraph
}

// Versions returns a tracker sharing this handle's database.
func (g *MemoryGraph) Versions() *VersionTracker {
	return &VersionTracker{g: g}
}

// Current returns the stored version for cliName, or nil.
func (v *VersionTracker) Current(cliName string) (*VersionRecord, error) {
	var (
		rec        VersionRecord
		path       sql.NullString
		detectedAt string
	)
	err := v.g.db.QueryRow(
		"SELECT cli_name, version, path, detected_at FROM cli_versions WHERE cli_name = ?",
		cliName,
	).Scan(&rec.CLIName, &rec.Version, &path, &detectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cli_versions: %w", err)
	}
	rec.Path = path.String
	rec.DetectedAt = parseTime(detectedAt)
	return &rec, nil
}

// Record stores version as current for cliName and appends it to the
// history. It returns the previously stored record (nil on first sight).
func (v *VersionTracker) Record(cliName, version, path string) (*VersionRecord, error) {
	prev, err := v.Current(cliName)
	if err != nil {
		return nil, err
	}

	ts := now()
	var nullPath sql.NullString
	if path != "" {
		nullPath = sql.NullString{String: path, Valid: true}
	}

	tx, err := v.g.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin version transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO cli_versions (cli_name, version, path, detected_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (cli_name) DO UPDATE SET
			version = excluded.version, path = excluded.path, detected_at = excluded.detected_at`,
		cliName, version, nullPath, ts,
	); err != nil {
		return nil, fmt.Errorf("failed to upsert cli_versions: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO cli_version_history (cli_name, version, path, detected_at) VALUES (?, ?, ?, ?)",
		cliName, version, nullPath, ts,
	); err != nil {
		return nil, fmt.Errorf("failed to insert cli_version_history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit version: %w", err)
	}

	if prev != nil && prev.Version != version {
		logging.Store("CLI %s version changed: %s -> %s", cliName, prev.Version, version)
	}
	return prev, nil
}

// History returns recorded versions for cliName, newest first.
func (v *VersionTracker) History(cliName string, limit int) ([]VersionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := v.g.db.Query(
		`SELECT cli_name, version, path, detected_at FROM cli_version_history
		 WHERE cli_name = ? ORDER BY detected_at DESC, id DESC LIMIT ?`,
		cliName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []VersionRecord
	for rows.Next() {
		var (
			rec        VersionRecord
			path       sql.NullString
			detectedAt string
		)
		if err := rows.Scan(&rec.CLIName, &rec.Version, &path, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		rec.Path = path.String
		rec.DetectedAt = parseTime(detectedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
