package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"czreality/server/internal/models"
)

// historyKey is the single key holding the whole listing history mapping.
const historyKey = "LISTING_HISTORY"

// Store is the durable cross-run listing history. The mapping is read
// once at run start and written back whole once at run end; a single
// writer per store is assumed.
type Store interface {
	Load() (models.HistoryStore, error)
	Save(models.HistoryStore) error
	Close() error
}

// SqliteStore keeps the history mapping as a JSON blob in a key-value
// table.
type SqliteStore struct {
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return &SqliteStore{db: db}, nil
}

// Load returns the persisted history mapping, or an empty mapping when
// none has been saved yet.
func (s *SqliteStore) Load() (models.HistoryStore, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, historyKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HistoryStore{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	history := models.HistoryStore{}
	if err := json.Unmarshal(value, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history blob: %w", err)
	}
	return history, nil
}

// Save overwrites the whole persisted mapping.
func (s *SqliteStore) Save(history models.HistoryStore) error {
	value, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO kv_store (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, historyKey, value)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
