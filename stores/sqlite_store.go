package stores

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	gormStore
	path string
}

// NewSQLiteStore creates a new SQLite store from a configuration.
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	db, err := gorm.Open(sqlite.Open(config.Connection), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	store := &SQLiteStore{gormStore: gormStore{db: db}, path: config.Connection}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return store, nil
}

// NewSQLiteStoreSimple creates a new SQLite store with just a file path.
// Use ":memory:" for tests.
func NewSQLiteStoreSimple(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStore(NewStoreConfig("sqlite", dbPath))
}
