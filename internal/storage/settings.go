package storage

import (
	"database/sql"
	"fmt"
	"sync"
)

// KV is the persistence surface the settings layer needs. The core must
// keep working when persistence is unavailable, so both a SQLite-backed and
// an in-memory implementation exist.
type KV interface {
	SaveSetting(key, value string) error
	LoadSetting(key, def string) (string, error)
}

// DBStore is the SQLite-backed KV.
type DBStore struct {
	DB *sql.DB
}

// SaveSetting upserts one setting.
func (s *DBStore) SaveSetting(key, value string) error {
	_, err := s.DB.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("save setting %q: %w", key, err)
	}
	return nil
}

// LoadSetting returns the stored value, or def if the key is absent.
func (s *DBStore) LoadSetting(key, def string) (string, error) {
	var value string
	err := s.DB.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("load setting %q: %w", key, err)
	}
	return value, nil
}

// MemStore is the in-memory fallback KV, used when the database cannot be
// opened. Values live for the process lifetime only.
type MemStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemStore creates an empty in-memory KV.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string]string)}
}

// SaveSetting stores the value in memory.
func (s *MemStore) SaveSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// LoadSetting returns the stored value, or def.
func (s *MemStore) LoadSetting(key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return def, nil
}
