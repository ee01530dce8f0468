package circulation

import (
	"errors"
	"time"
)

// MaxBorrowedBooks is the per-borrower cap the engine exists to protect.
const MaxBorrowedBooks = 3

// Borrower tracks which books a user currently holds. Created lazily on
// the user's first borrow.
type Borrower struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`
}

// Loan describes one borrowed-book relation.
type Loan struct {
	BookID     int64     `json:"book_id"`
	BookTitle  string    `json:"book_title"`
	BorrowedAt time.Time `json:"borrowed_at"`
}

var (
	ErrBorrowLimit     = errors.New("you cannot borrow more than 3 books")
	ErrBookNotFound    = errors.New("book not found")
	ErrBookUnavailable = errors.New("book is not available")
	ErrAlreadyBorrowed = errors.New("you have already borrowed this book")
	ErrNoBorrower      = errors.New("you have no borrowed books")
	ErrNotBorrowed     = errors.New("you have not borrowed this book")
)
