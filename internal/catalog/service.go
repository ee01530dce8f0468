package catalog

import "context"

// Service defines the interface for the catalog store.
type Service interface {
	CreateAuthor(ctx context.Context, author *Author) (*Author, error)
	GetAuthor(ctx context.Context, id int64) (*Author, error)
	ListAuthors(ctx context.Context) ([]*Author, error)
	UpdateAuthor(ctx context.Context, id int64, update AuthorUpdate) (*Author, error)
	DeleteAuthor(ctx context.Context, id int64) error

	CreateBook(ctx context.Context, book *Book) (*Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context, filter BookFilter) ([]*Book, error)
	UpdateBook(ctx context.Context, id int64, update BookUpdate) (*Book, error)
	DeleteBook(ctx context.Context, id int64) error
}
