// Package reasoning persists reasoning chains and reflections as durable,
// append-only records keyed by (operation_id, point_id).
package reasoning

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/enos-mapper/internal/models"
)

// ErrNotFound is returned when no records exist for a key.
var ErrNotFound = errors.New("reasoning: not found")

// Store manages reasoning persistence in a SQLite database. Records are
// append-only: there is no update or delete path, and compaction is out of
// scope. Writes are serialised so concurrent writers within one operation
// are safe.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serialises writes
	// seq orders chains within an operation even when wall clocks collide.
	seq int64
}

// NewStore opens (or creates) the SQLite reasoning database at dbPath.
// If dbPath is empty, ":memory:" is used (useful for tests).
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("reasoning: create dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("reasoning: open db: %w", err)
	}
	// A single connection serialises all access to the database file.
	db.SetMaxOpenConns(1)

	if err := initReasoningSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initReasoningSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS reasoning_chains (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id TEXT    NOT NULL,
		point_id     TEXT    NOT NULL,
		phase        TEXT    NOT NULL,
		seq          INTEGER NOT NULL,
		steps        TEXT    NOT NULL,
		created_at   TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("reasoning: create chains table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_chains_op_point ON reasoning_chains(operation_id, point_id)`)
	if err != nil {
		return fmt.Errorf("reasoning: create chains index: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS reflections (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		operation_id TEXT    NOT NULL,
		point_id     TEXT    NOT NULL,
		type         TEXT    NOT NULL,
		record       TEXT    NOT NULL,
		created_at   TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("reasoning: create reflections table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_reflections_op_point ON reflections(operation_id, point_id)`)
	if err != nil {
		return fmt.Errorf("reasoning: create reflections index: %w", err)
	}
	return nil
}

// WriteChain appends one reasoning chain record.
func (s *Store) WriteChain(chain models.ReasoningChain) error {
	steps, err := json.Marshal(chain.Steps)
	if err != nil {
		return fmt.Errorf("reasoning: marshal steps: %w", err)
	}
	createdAt := chain.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	_, err = s.db.Exec(
		`INSERT INTO reasoning_chains (operation_id, point_id, phase, seq, steps, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chain.OperationID, chain.PointID, chain.Phase, s.seq, string(steps), createdAt,
	)
	if err != nil {
		return fmt.Errorf("reasoning: insert chain: %w", err)
	}
	return nil
}

// WriteReflection appends one reflection record.
func (s *Store) WriteReflection(r models.Reflection) error {
	record, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("reasoning: marshal reflection: %w", err)
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO reflections (operation_id, point_id, type, record, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.OperationID, r.PointID, string(r.Type), string(record), createdAt,
	)
	if err != nil {
		return fmt.Errorf("reasoning: insert reflection: %w", err)
	}
	return nil
}

// ChainsFor returns the chains for (operation_id, point_id) in write order.
func (s *Store) ChainsFor(operationID, pointID string) ([]models.ReasoningChain, error) {
	rows, err := s.db.Query(
		`SELECT phase, steps, created_at FROM reasoning_chains
		 WHERE operation_id = ? AND point_id = ? ORDER BY seq ASC`,
		operationID, pointID,
	)
	if err != nil {
		return nil, fmt.Errorf("reasoning: query chains: %w", err)
	}
	defer rows.Close()

	var out []models.ReasoningChain
	for rows.Next() {
		var phase, steps string
		var createdAt time.Time
		if err := rows.Scan(&phase, &steps, &createdAt); err != nil {
			return nil, fmt.Errorf("reasoning: scan chain: %w", err)
		}
		chain := models.ReasoningChain{
			OperationID: operationID,
			PointID:     pointID,
			Phase:       phase,
			CreatedAt:   createdAt,
		}
		if err := json.Unmarshal([]byte(steps), &chain.Steps); err != nil {
			return nil, fmt.Errorf("reasoning: unmarshal steps: %w", err)
		}
		out = append(out, chain)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// ReflectionsFor returns the reflections for (operation_id, point_id) in
// write order. An empty result is not an error; a point may never reflect.
func (s *Store) ReflectionsFor(operationID, pointID string) ([]models.Reflection, error) {
	rows, err := s.db.Query(
		`SELECT record FROM reflections
		 WHERE operation_id = ? AND point_id = ? ORDER BY id ASC`,
		operationID, pointID,
	)
	if err != nil {
		return nil, fmt.Errorf("reasoning: query reflections: %w", err)
	}
	defer rows.Close()

	var out []models.Reflection
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("reasoning: scan reflection: %w", err)
		}
		var r models.Reflection
		if err := json.Unmarshal([]byte(record), &r); err != nil {
			return nil, fmt.Errorf("reasoning: unmarshal reflection: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountChains returns the number of chain records for an operation.
func (s *Store) CountChains(operationID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM reasoning_chains WHERE operation_id = ?`, operationID).Scan(&n)
	return n, err
}

// ReflectionCount returns the number of reflection records for one point in
// one operation. The pipeline bounds reflections with its own loop counter;
// this count reads back what was written.
func (s *Store) ReflectionCount(operationID, pointID string) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reflections WHERE operation_id = ? AND point_id = ?`,
		operationID, pointID,
	).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
