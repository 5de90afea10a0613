package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		password TEXT,
		full_name TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		phone_number TEXT NOT NULL DEFAULT '',
		favorite TEXT NOT NULL DEFAULT '',
		experience_level TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS "Logs" (
		id BIGSERIAL PRIMARY KEY,
		client_ref TEXT UNIQUE NOT NULL,
		date_logged TIMESTAMP NOT NULL,
		image BYTEA NOT NULL,
		detected_disease INTEGER NOT NULL,
		email TEXT NOT NULL REFERENCES users(email),
		confidence DOUBLE PRECISION NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_email ON "Logs"(email);
	CREATE INDEX IF NOT EXISTS idx_logs_date ON "Logs"(date_logged);
	`

	_, err := db.Exec(schema)
	return err
}
