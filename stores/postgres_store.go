package stores

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore implements Store for PostgreSQL databases.
type PostgresStore struct {
	gormStore
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store from a configuration.
func NewPostgresStore(config *StoreConfig) (*PostgresStore, error) {
	if config.Type != "postgres" {
		return nil, fmt.Errorf("invalid store type for PostgreSQL store: %s", config.Type)
	}

	db, err := gorm.Open(postgres.Open(config.Connection), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	store := &PostgresStore{gormStore: gormStore{db: db}, dsn: config.Connection}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return store, nil
}

// NewPostgresStoreSimple creates a PostgreSQL store from a DSN.
func NewPostgresStoreSimple(dsn string) (*PostgresStore, error) {
	return NewPostgresStore(NewStoreConfig("postgres", dsn))
}
