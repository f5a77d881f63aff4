package unread

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"roommatch/unread/migrations"
)

// WatermarkStore persists last-read timestamps per viewer and conversation.
type WatermarkStore interface {
	Load(ctx context.Context, viewerID, conversationID string) (int64, bool, error)
	Save(ctx context.Context, viewerID, conversationID string, lastReadAt int64) error
	All(ctx context.Context, viewerID string) (map[string]int64, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]int64)}
}

var _ WatermarkStore = (*MemoryStore)(nil)

func (m *MemoryStore) Load(_ context.Context, viewerID, conversationID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.data[viewerID][conversationID]
	return ts, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, viewerID, conversationID string, lastReadAt int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[viewerID] == nil {
		m.data[viewerID] = make(map[string]int64)
	}
	m.data[viewerID][conversationID] = lastReadAt
	return nil
}

func (m *MemoryStore) All(_ context.Context, viewerID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.data[viewerID]))
	for k, v := range m.data[viewerID] {
		out[k] = v
	}
	return out, nil
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", dsn, err)
	}
	return NewSQLiteStore(db), nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var _ WatermarkStore = (*SQLiteStore)(nil)

func (s *SQLiteStore) Load(ctx context.Context, viewerID, conversationID string) (int64, bool, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_read_at FROM watermarks WHERE viewer_id = ? AND conversation_id = ?`,
		viewerID, conversationID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load watermark[%s/%s]: %w", viewerID, conversationID, err)
	}
	return ts, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, viewerID, conversationID string, lastReadAt int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watermarks (viewer_id, conversation_id, last_read_at) VALUES (?, ?, ?)
		ON CONFLICT(viewer_id, conversation_id) DO UPDATE SET last_read_at = excluded.last_read_at
	`, viewerID, conversationID, lastReadAt)
	if err != nil {
		return fmt.Errorf("failed to save watermark[%s/%s]: %w", viewerID, conversationID, err)
	}
	return nil
}

func (s *SQLiteStore) All(ctx context.Context, viewerID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, last_read_at FROM watermarks WHERE viewer_id = ?`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var conv string
		var ts int64
		if err := rows.Scan(&conv, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan watermark row: %w", err)
		}
		out[conv] = ts
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate watermark rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
