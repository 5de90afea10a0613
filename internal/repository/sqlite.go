package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	// The legacy store named the log table "Logs" with a capital L, so the
	// identifier stays quoted here and in every query against it.
	schema := `
	-- Users table
	CREATE TABLE IF NOT EXISTS users (
		email TEXT PRIMARY KEY,
		password TEXT,
		full_name TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		phone_number TEXT NOT NULL DEFAULT '',
		favorite TEXT NOT NULL DEFAULT '',
		experience_level TEXT NOT NULL DEFAULT ''
	);

	-- Scan logs table
	CREATE TABLE IF NOT EXISTS "Logs" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_ref TEXT UNIQUE NOT NULL,
		date_logged DATETIME NOT NULL,
		image BLOB NOT NULL,
		detected_disease INTEGER NOT NULL,
		email TEXT NOT NULL REFERENCES users(email),
		confidence REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_logs_email ON "Logs"(email);
	CREATE INDEX IF NOT EXISTS idx_logs_date ON "Logs"(date_logged);
	`

	_, err := db.Exec(schema)
	return err
}
