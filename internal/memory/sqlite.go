package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"litcode/internal/llm"
	"litcode/internal/problem"
)

// SQLiteMemory implements Memory using SQLite.
type SQLiteMemory struct {
	db *sql.DB
}

// NewSQLiteMemory opens (or creates) a SQLite database at the given path.
func NewSQLiteMemory(dbPath string) (*SQLiteMemory, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	m := &SQLiteMemory{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	return m, nil
}

// migrate applies the migrations newer than the recorded schema version.
func (m *SQLiteMemory) migrate() error {
	if _, err := m.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := m.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}

	for i := current; i < len(migrations); i++ {
		tx, err := m.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration.
func (m *SQLiteMemory) SchemaVersion() (int, error) {
	var v int
	err := m.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v)
	return v, err
}

func (m *SQLiteMemory) AppendTurn(ctx context.Context, chatID string, turn llm.Turn) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO turns (chat_id, speaker, text) VALUES (?, ?, ?)`,
		chatID, string(turn.Speaker), turn.Text,
	)
	return err
}

// History returns the most recent limit turns in chronological order.
// A limit <= 0 returns the whole transcript.
func (m *SQLiteMemory) History(ctx context.Context, chatID string, limit int) ([]llm.Turn, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := m.db.QueryContext(ctx,
		`SELECT speaker, text FROM (
			SELECT speaker, text, id
			FROM turns WHERE chat_id = ? ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []llm.Turn
	for rows.Next() {
		var speaker, text string
		if err := rows.Scan(&speaker, &text); err != nil {
			return nil, err
		}
		turns = append(turns, llm.Turn{Speaker: llm.Speaker(speaker), Text: text})
	}

	return turns, rows.Err()
}

func (m *SQLiteMemory) ClearHistory(ctx context.Context, chatID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM turns WHERE chat_id = ?`, chatID)
	return err
}

func (m *SQLiteMemory) SaveSnapshot(ctx context.Context, chatID string, snap problem.Snapshot) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (chat_id, title, description, code, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		chatID, snap.Title, snap.Description, snap.Code,
	)
	return err
}

func (m *SQLiteMemory) Snapshot(ctx context.Context, chatID string) (problem.Snapshot, bool, error) {
	var snap problem.Snapshot
	err := m.db.QueryRowContext(ctx,
		`SELECT title, description, code FROM snapshots WHERE chat_id = ?`,
		chatID,
	).Scan(&snap.Title, &snap.Description, &snap.Code)
	if errors.Is(err, sql.ErrNoRows) {
		return problem.Snapshot{}, false, nil
	}
	if err != nil {
		return problem.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (m *SQLiteMemory) SaveBackend(ctx context.Context, chatID string, backend llm.Backend) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chat_backends (chat_id, backend, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
		chatID, string(backend),
	)
	return err
}

func (m *SQLiteMemory) Backend(ctx context.Context, chatID string) (llm.Backend, error) {
	var backend string
	err := m.db.QueryRowContext(ctx,
		`SELECT backend FROM chat_backends WHERE chat_id = ?`,
		chatID,
	).Scan(&backend)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return llm.Backend(backend), err
}

func (m *SQLiteMemory) Close() error {
	return m.db.Close()
}
