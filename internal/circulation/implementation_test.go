package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarium/internal/db"
)

// These tests exercise the engine against a real Postgres because the row
// locks are the behavior under test. Set LIBRARIUM_TEST_DATABASE_URL to run.
func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("LIBRARIUM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LIBRARIUM_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn))
	_, err = conn.ExecContext(ctx, `TRUNCATE TABLE borrower_books, borrowers, books, authors, users CASCADE`)
	require.NoError(t, err)

	return conn
}

func seedUser(t *testing.T, conn *sql.DB, username string) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(`
		INSERT INTO users (username, password_hash, role) VALUES ($1, 'x$x', 'user') RETURNING id
	`, username).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedCatalog(t *testing.T, conn *sql.DB, bookCount int) {
	t.Helper()
	_, err := conn.Exec(`INSERT INTO authors (id, name, bio) VALUES (1, 'Author1', 'Bio')`)
	require.NoError(t, err)
	for i := 1; i <= bookCount; i++ {
		_, err := conn.Exec(`
			INSERT INTO books (id, title, isbn, author_id, published_date)
			VALUES ($1, $2, $3, 1, '2020-01-01')
		`, i, fmt.Sprintf("Book%d", i), fmt.Sprintf("1234567890%03d", i))
		require.NoError(t, err)
	}
}

func bookAvailable(t *testing.T, conn *sql.DB, bookID int64) bool {
	t.Helper()
	var available bool
	require.NoError(t, conn.QueryRow(`SELECT available FROM books WHERE id = $1`, bookID).Scan(&available))
	return available
}

func borrowedCount(t *testing.T, conn *sql.DB, userID int64) int {
	t.Helper()
	var count int
	require.NoError(t, conn.QueryRow(`
		SELECT COUNT(*) FROM borrower_books bb
		JOIN borrowers b ON b.id = bb.borrower_id
		WHERE b.user_id = $1
	`, userID).Scan(&count))
	return count
}

func newTestService(conn *sql.DB) Service {
	return NewService(conn, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestBorrowReturnLifecycle(t *testing.T) {
	conn := setupDB(t)
	seedCatalog(t, conn, 4)
	userID := seedUser(t, conn, "reader")
	svc := newTestService(conn)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		loan, err := svc.Borrow(ctx, userID, i)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Book%d", i), loan.BookTitle)
		assert.False(t, bookAvailable(t, conn, i))
	}

	_, err := svc.Borrow(ctx, userID, 4)
	assert.ErrorIs(t, err, ErrBorrowLimit)
	assert.Equal(t, 3, borrowedCount(t, conn, userID))

	_, err = svc.Return(ctx, userID, 1)
	require.NoError(t, err)
	assert.True(t, bookAvailable(t, conn, 1))

	_, err = svc.Borrow(ctx, userID, 4)
	require.NoError(t, err)

	for _, id := range []int64{2, 3, 4} {
		_, err = svc.Return(ctx, userID, id)
		require.NoError(t, err)
		assert.True(t, bookAvailable(t, conn, id))
	}
	assert.Equal(t, 0, borrowedCount(t, conn, userID))

	var lastBorrowed sql.NullTime
	require.NoError(t, conn.QueryRow(`SELECT last_borrowed_date FROM books WHERE id = 1`).Scan(&lastBorrowed))
	assert.True(t, lastBorrowed.Valid, "last_borrowed_date survives the return")
}

func TestBorrowUnavailableBook(t *testing.T) {
	conn := setupDB(t)
	seedCatalog(t, conn, 1)
	first := seedUser(t, conn, "first")
	second := seedUser(t, conn, "second")
	svc := newTestService(conn)
	ctx := context.Background()

	_, err := svc.Borrow(ctx, first, 1)
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, second, 1)
	assert.ErrorIs(t, err, ErrBookUnavailable)
}

func TestBorrowMissingBook(t *testing.T) {
	conn := setupDB(t)
	seedCatalog(t, conn, 1)
	userID := seedUser(t, conn, "reader")
	svc := newTestService(conn)

	_, err := svc.Borrow(context.Background(), userID, 999)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestReturnErrors(t *testing.T) {
	conn := setupDB(t)
	seedCatalog(t, conn, 2)
	userID := seedUser(t, conn, "reader")
	svc := newTestService(conn)
	ctx := context.Background()

	// No borrower record yet.
	_, err := svc.Return(ctx, userID, 1)
	assert.ErrorIs(t, err, ErrNoBorrower)

	_, err = svc.Borrow(ctx, userID, 1)
	require.NoError(t, err)

	_, err = svc.Return(ctx, userID, 999)
	assert.ErrorIs(t, err, ErrBookNotFound)

	// Exists, but this borrower never took it.
	_, err = svc.Return(ctx, userID, 2)
	assert.ErrorIs(t, err, ErrNotBorrowed)
}

func TestConcurrentBorrowSameBook(t *testing.T) {
	conn := setupDB(t)
	seedCatalog(t, conn, 1)
	svc := newTestService(conn)

	userIDs := make([]int64, 10)
	for i := range userIDs {
		userIDs[i] = seedUser(t, conn, fmt.Sprintf("reader%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if _, err := svc.Borrow(context.Background(), userID, 1); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "only one concurrent borrow of the same book may succeed")
	assert.False(t, bookAvailable(t, conn, 1))

	var holders int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM borrower_books WHERE book_id = 1`).Scan(&holders))
	assert.Equal(t, 1, holders)
}

func TestConcurrentBorrowSameUser(t *testing.T) {
	conn := setupDB(t)
	seedCatalog(t, conn, 6)
	userID := seedUser(t, conn, "greedy")
	svc := newTestService(conn)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for bookID := int64(1); bookID <= 6; bookID++ {
		wg.Add(1)
		go func(bookID int64) {
			defer wg.Done()
			if _, err := svc.Borrow(context.Background(), userID, bookID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(bookID)
	}
	wg.Wait()

	assert.Equal(t, MaxBorrowedBooks, successes, "concurrent borrows must not push a user past the cap")
	assert.Equal(t, MaxBorrowedBooks, borrowedCount(t, conn, userID))
}
