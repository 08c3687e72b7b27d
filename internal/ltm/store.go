// Package ltm persists long-term memories to sqlite. The long-term tier is
// permanent, so unlike the in-process working and short-term tiers it
// survives agent restarts. Deduplication by (event, timestamp) is enforced
// by the schema, matching the promotion rule.
package ltm

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tt/piano/internal/types"
)

// Store wraps the sqlite database holding all agents' long-term memories.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the long-term memory database under statePath.
func Open(statePath string) (*Store, error) {
	dbPath := filepath.Join(statePath, "system", "longterm.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS long_term_memories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id   TEXT NOT NULL,
			event      TEXT NOT NULL,
			type       TEXT NOT NULL DEFAULT '',
			ts         INTEGER NOT NULL,
			importance REAL NOT NULL DEFAULT 0,
			UNIQUE(agent_id, event, ts)
		);
		CREATE INDEX IF NOT EXISTS idx_ltm_agent ON long_term_memories(agent_id, ts);
	`)
	return err
}

// Insert stores one memory. Returns false when an identical (event,
// timestamp) row already exists for the agent.
func (s *Store) Insert(agentID string, item types.MemoryItem) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO long_term_memories (agent_id, event, type, ts, importance)
		 VALUES (?, ?, ?, ?, ?)`,
		agentID, item.Event, item.Type, item.Timestamp.UnixMilli(), item.Importance,
	)
	if err != nil {
		return false, fmt.Errorf("insert memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Load returns an agent's long-term memories, oldest first.
func (s *Store) Load(agentID string) ([]types.MemoryItem, error) {
	rows, err := s.db.Query(
		`SELECT event, type, ts, importance FROM long_term_memories
		 WHERE agent_id = ? ORDER BY ts ASC`,
		agentID,
	)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	defer rows.Close()

	var items []types.MemoryItem
	for rows.Next() {
		var item types.MemoryItem
		var ts int64
		if err := rows.Scan(&item.Event, &item.Type, &ts, &item.Importance); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		item.Timestamp = time.UnixMilli(ts)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Count returns how many long-term memories an agent has.
func (s *Store) Count(agentID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM long_term_memories WHERE agent_id = ?`, agentID,
	).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
