package circulation

import "context"

// Service defines the interface for the borrowing engine.
type Service interface {
	Borrow(ctx context.Context, userID, bookID int64) (*Loan, error)
	Return(ctx context.Context, userID, bookID int64) (*Loan, error)
}
