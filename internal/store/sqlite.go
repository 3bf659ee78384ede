package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the on-device persistence layer: the auth token, the cached
// user profile, and a stable install ID. It is a key-value blob in spirit;
// writes are last-write-wins with no cross-key transactions.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS session (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS install (
        id TEXT PRIMARY KEY, -- UUID, generated once per device
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

const (
	keyAuthToken = "authToken"
	keyUser      = "user"
)

func (s *SQLiteStore) setValue(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO session (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) getValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM session WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil // Not stored
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) deleteValue(key string) error {
	if _, err := s.db.Exec("DELETE FROM session WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Token methods

func (s *SQLiteStore) SaveToken(token string) error {
	return s.setValue(keyAuthToken, token)
}

func (s *SQLiteStore) LoadToken() (string, error) {
	return s.getValue(keyAuthToken)
}

func (s *SQLiteStore) DeleteToken() error {
	return s.deleteValue(keyAuthToken)
}

// Profile methods

func (s *SQLiteStore) SaveProfile(profile *UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return s.setValue(keyUser, string(data))
}

// LoadProfile returns (nil, nil) when no profile has been stored yet.
func (s *SQLiteStore) LoadProfile() (*UserProfile, error) {
	raw, err := s.getValue(keyUser)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var profile UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

func (s *SQLiteStore) DeleteProfile() error {
	return s.deleteValue(keyUser)
}

// InstallID returns the per-device identifier, creating it on first call.
func (s *SQLiteStore) InstallID() (string, error) {
	var id string
	err := s.db.QueryRow("SELECT id FROM install LIMIT 1").Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to read install id: %w", err)
	}

	id = uuid.NewString()
	if _, err := s.db.Exec("INSERT INTO install (id) VALUES (?)", id); err != nil {
		return "", fmt.Errorf("failed to create install id: %w", err)
	}
	return id, nil
}
