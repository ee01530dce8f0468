package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/lib/pq"
)

const (
	dialectPostgres   = "postgres"
	pqUniqueViolation = "23505"
	pqFKViolation     = "23503"
)

// service implements the Service interface against Postgres.
type service struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB, logger *slog.Logger) Service {
	return &service{db: db, logger: logger}
}

// CreateAuthor inserts a new author with a caller-supplied id.
func (s *service) CreateAuthor(ctx context.Context, author *Author) (*Author, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authors (id, name, bio) VALUES ($1, $2, $3)
	`, author.ID, author.Name, author.Bio)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return nil, ErrAuthorExists
		}
		return nil, fmt.Errorf("insert author: %w", err)
	}

	s.logger.Info("author created", slog.Int64("author_id", author.ID))

	return author, nil
}

// GetAuthor retrieves an author by id.
func (s *service) GetAuthor(ctx context.Context, id int64) (*Author, error) {
	author := &Author{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, bio FROM authors WHERE id = $1
	`, id).Scan(&author.ID, &author.Name, &author.Bio)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAuthorNotFound
		}
		return nil, fmt.Errorf("query author: %w", err)
	}
	return author, nil
}

// ListAuthors returns every author ordered by id.
func (s *service) ListAuthors(ctx context.Context) ([]*Author, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, bio FROM authors ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	authors := []*Author{}
	for rows.Next() {
		author := &Author{}
		if err := rows.Scan(&author.ID, &author.Name, &author.Bio); err != nil {
			return nil, fmt.Errorf("scan author: %w", err)
		}
		authors = append(authors, author)
	}
	return authors, rows.Err()
}

// UpdateAuthor applies the supplied fields; unset fields stay unchanged.
func (s *service) UpdateAuthor(ctx context.Context, id int64, update AuthorUpdate) (*Author, error) {
	author, err := s.GetAuthor(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		author.Name = *update.Name
	}
	if update.Bio != nil {
		author.Bio = *update.Bio
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE authors SET name = $1, bio = $2 WHERE id = $3
	`, author.Name, author.Bio, id)
	if err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}

	return author, nil
}

// DeleteAuthor removes an author by id.
func (s *service) DeleteAuthor(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM authors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete author: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrAuthorNotFound
	}
	return nil
}

// CreateBook inserts a new book after checking id and ISBN uniqueness and
// that the referenced author exists.
func (s *service) CreateBook(ctx context.Context, book *Book) (*Book, error) {
	if err := ValidateISBN(book.ISBN); err != nil {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, book.ID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check book id: %w", err)
	}
	if exists {
		return nil, ErrBookExists
	}

	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1)`, book.ISBN).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check isbn: %w", err)
	}
	if exists {
		return nil, ErrISBNExists
	}

	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM authors WHERE id = $1)`, book.AuthorID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check author: %w", err)
	}
	if !exists {
		return nil, ErrAuthorMissing
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (id, title, isbn, author_id, published_date, available, last_borrowed_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, book.ID, book.Title, book.ISBN, book.AuthorID, book.PublishedDate, book.Available, book.LastBorrowedDate)
	if err != nil {
		// Concurrent creates race past the explicit checks; the constraints
		// are the source of truth.
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return nil, ErrBookExists
			case pqFKViolation:
				return nil, ErrAuthorMissing
			}
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	s.logger.Info("book created", slog.Int64("book_id", book.ID), slog.String("isbn", book.ISBN))

	return book, nil
}

// GetBook retrieves a book by id.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	book := &Book{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, isbn, author_id, published_date, available, last_borrowed_date
		FROM books
		WHERE id = $1
	`, id).Scan(&book.ID, &book.Title, &book.ISBN, &book.AuthorID, &book.PublishedDate, &book.Available, &book.LastBorrowedDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("query book: %w", err)
	}
	return book, nil
}

// ListBooks returns books matching the filter, built dynamically so only
// supplied filters constrain the query.
func (s *service) ListBooks(ctx context.Context, filter BookFilter) ([]*Book, error) {
	builder := goqu.Dialect(dialectPostgres).
		From("books").
		Select("id", "title", "isbn", "author_id", "published_date", "available", "last_borrowed_date").
		Order(goqu.I("id").Asc())

	if filter.Title != "" {
		builder = builder.Where(goqu.I("title").ILike("%" + filter.Title + "%"))
	}
	if filter.AuthorID != nil {
		builder = builder.Where(goqu.I("author_id").Eq(*filter.AuthorID))
	}
	if filter.Available != nil {
		builder = builder.Where(goqu.I("available").Eq(*filter.Available))
	}
	if filter.ISBN != "" {
		builder = builder.Where(goqu.I("isbn").Eq(filter.ISBN))
	}

	query, args, err := builder.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build books query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []*Book{}
	for rows.Next() {
		book := &Book{}
		if err := rows.Scan(&book.ID, &book.Title, &book.ISBN, &book.AuthorID, &book.PublishedDate, &book.Available, &book.LastBorrowedDate); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	return books, rows.Err()
}

// UpdateBook applies the supplied fields. A new ISBN is re-validated and
// checked for uniqueness against every other book; a new author_id must
// resolve to an existing author.
func (s *service) UpdateBook(ctx context.Context, id int64, update BookUpdate) (*Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		book.Title = *update.Title
	}
	if update.ISBN != nil {
		if err := ValidateISBN(*update.ISBN); err != nil {
			return nil, err
		}
		var taken bool
		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM books WHERE isbn = $1 AND id <> $2)
		`, *update.ISBN, id).Scan(&taken); err != nil {
			return nil, fmt.Errorf("check isbn: %w", err)
		}
		if taken {
			return nil, ErrISBNExists
		}
		book.ISBN = *update.ISBN
	}
	if update.AuthorID != nil {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM authors WHERE id = $1)
		`, *update.AuthorID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check author: %w", err)
		}
		if !exists {
			return nil, ErrAuthorMissing
		}
		book.AuthorID = *update.AuthorID
	}
	if update.PublishedDate != nil {
		book.PublishedDate = *update.PublishedDate
	}
	if update.Available != nil {
		book.Available = *update.Available
	}
	if update.LastBorrowedDate != nil {
		book.LastBorrowedDate = update.LastBorrowedDate
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE books
		SET title = $1, isbn = $2, author_id = $3, published_date = $4, available = $5, last_borrowed_date = $6
		WHERE id = $7
	`, book.Title, book.ISBN, book.AuthorID, book.PublishedDate, book.Available, book.LastBorrowedDate, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return nil, ErrISBNExists
		}
		return nil, fmt.Errorf("update book: %w", err)
	}

	return book, nil
}

// DeleteBook removes a book by id.
func (s *service) DeleteBook(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}
	return nil
}
