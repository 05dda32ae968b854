package config

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// InitDB opens the Postgres pool used when IDENTITY_BACKEND=postgres.
func InitDB(dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, configError("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		`CREATE TABLE IF NOT EXISTS identities (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			identity_id VARCHAR(36) REFERENCES identities(id) ON DELETE CASCADE,
			secret_hash VARCHAR(64) UNIQUE NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		// Generic document store mirroring the hosted backend's collections.
		`CREATE TABLE IF NOT EXISTS documents (
			id VARCHAR(36) PRIMARY KEY,
			database_id VARCHAR(255) NOT NULL,
			collection_id VARCHAR(255) NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_identity_id ON sessions(identity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(database_id, collection_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING GIN (data)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
