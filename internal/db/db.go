package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return conn, nil
}

// Migrate applies the schema. Statements are idempotent so the service can
// run them on every startup.
func Migrate(ctx context.Context, conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGSERIAL PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role          TEXT NOT NULL DEFAULT 'user',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS authors (
			id   BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			bio  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS books (
			id                 BIGINT PRIMARY KEY,
			title              TEXT NOT NULL,
			isbn               TEXT NOT NULL UNIQUE,
			author_id          BIGINT NOT NULL REFERENCES authors (id),
			published_date     DATE,
			available          BOOLEAN NOT NULL DEFAULT TRUE,
			last_borrowed_date TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS borrowers (
			id      BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE REFERENCES users (id)
		)`,
		`CREATE TABLE IF NOT EXISTS borrower_books (
			borrower_id BIGINT NOT NULL REFERENCES borrowers (id),
			book_id     BIGINT NOT NULL REFERENCES books (id),
			borrowed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (borrower_id, book_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_books_author_id ON books (author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_borrower_books_book_id ON borrower_books (book_id)`,
	}

	for _, stmt := range statements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}
