package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// InitDB opens the SQLite database holding local client state
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createLocalStorageTable := `
	CREATE TABLE IF NOT EXISTS local_storage (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	if _, err := db.Exec(createLocalStorageTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create local_storage table: %w", err)
	}

	return db, nil
}

// SQLiteStore keeps the session identifier in a single local_storage row
type SQLiteStore struct {
	db    *sql.DB
	key   string
	newID func() string
	mu    sync.Mutex
}

// NewSQLiteStore creates a store over a database prepared by InitDB
func NewSQLiteStore(db *sql.DB, key string) *SQLiteStore {
	if key == "" {
		key = DefaultKey
	}
	return &SQLiteStore{
		db:    db,
		key:   key,
		newID: uuid.NewString,
	}
}

// GetOrCreate returns the persisted identifier, generating one on first use
func (s *SQLiteStore) GetOrCreate(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = s.newID()
	if err := s.save(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// Reset persists and returns a new identifier that differs from the current one
func (s *SQLiteStore) Reset(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	id := freshID(s.newID, old)
	if err := s.save(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) load(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM local_storage WHERE key = ?", s.key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) save(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO local_storage (key, value) VALUES (?, ?)",
		s.key, id,
	)
	if err != nil {
		return fmt.Errorf("failed to save session id: %w", err)
	}
	return nil
}

// freshID draws identifiers until one differs from old
func freshID(gen func() string, old string) string {
	id := gen()
	for id == old {
		id = gen()
	}
	return id
}
