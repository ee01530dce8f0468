package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface against Postgres.
//
// Borrow and Return each run as a single transaction taking FOR UPDATE row
// locks on the borrower row and the book row, in that order on both paths.
// The locks serialize concurrent borrows per book and per borrower, which is
// what keeps the 3-book cap and the availability flag consistent under
// concurrent requests.
type service struct {
	db     *sql.DB
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService creates a new borrowing engine instance.
func NewService(db *sql.DB, logger *slog.Logger) Service {
	return &service{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("librarium/circulation"),
	}
}

// Borrow lends a book to the user, lazily creating their borrower record.
func (s *service) Borrow(ctx context.Context, userID, bookID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("book.id", bookID),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	borrowerID, err := s.borrowerForUpdate(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}

	var borrowed int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM borrower_books WHERE borrower_id = $1
	`, borrowerID).Scan(&borrowed)
	if err != nil {
		return nil, fmt.Errorf("count borrowed books: %w", err)
	}
	if borrowed >= MaxBorrowedBooks {
		return nil, ErrBorrowLimit
	}

	var (
		title     string
		available bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT title, available FROM books WHERE id = $1 FOR UPDATE
	`, bookID).Scan(&title, &available)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}
	if !available {
		return nil, ErrBookUnavailable
	}

	// Unavailable normally implies borrowed-by-someone, but a book can be
	// marked unavailable without sitting in any borrower's set, so check the
	// relation explicitly as well.
	var alreadyBorrowed bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM borrower_books WHERE borrower_id = $1 AND book_id = $2)
	`, borrowerID, bookID).Scan(&alreadyBorrowed)
	if err != nil {
		return nil, fmt.Errorf("check existing loan: %w", err)
	}
	if alreadyBorrowed {
		return nil, ErrAlreadyBorrowed
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO borrower_books (borrower_id, book_id, borrowed_at) VALUES ($1, $2, $3)
	`, borrowerID, bookID, now); err != nil {
		return nil, fmt.Errorf("record loan: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET available = FALSE, last_borrowed_date = $1 WHERE id = $2
	`, now, bookID); err != nil {
		return nil, fmt.Errorf("mark book unavailable: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit borrow: %w", err)
	}

	s.logger.Info("book borrowed",
		slog.Int64("user_id", userID),
		slog.Int64("book_id", bookID),
		slog.Int("books_held", borrowed+1),
	)

	return &Loan{BookID: bookID, BookTitle: title, BorrowedAt: now}, nil
}

// Return hands a book back and makes it available again.
func (s *service) Return(ctx context.Context, userID, bookID int64) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int64("book.id", bookID),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	borrowerID, err := s.borrowerForUpdate(ctx, tx, userID, false)
	if err != nil {
		return nil, err
	}

	var title string
	err = tx.QueryRowContext(ctx, `
		SELECT title FROM books WHERE id = $1 FOR UPDATE
	`, bookID).Scan(&title)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("lock book: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM borrower_books WHERE borrower_id = $1 AND book_id = $2
	`, borrowerID, bookID)
	if err != nil {
		return nil, fmt.Errorf("remove loan: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if removed == 0 {
		return nil, ErrNotBorrowed
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET available = TRUE WHERE id = $1
	`, bookID); err != nil {
		return nil, fmt.Errorf("mark book available: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return: %w", err)
	}

	s.logger.Info("book returned",
		slog.Int64("user_id", userID),
		slog.Int64("book_id", bookID),
	)

	return &Loan{BookID: bookID, BookTitle: title}, nil
}

// borrowerForUpdate locks the caller's borrower row, creating it first when
// create is set. The lock is what serializes a user's concurrent borrows.
func (s *service) borrowerForUpdate(ctx context.Context, tx *sql.Tx, userID int64, create bool) (int64, error) {
	if create {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO borrowers (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING
		`, userID); err != nil {
			return 0, fmt.Errorf("ensure borrower: %w", err)
		}
	}

	var borrowerID int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM borrowers WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&borrowerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNoBorrower
		}
		return 0, fmt.Errorf("lock borrower: %w", err)
	}
	return borrowerID, nil
}
