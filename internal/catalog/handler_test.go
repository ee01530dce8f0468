package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService records calls and returns canned results.
type stubService struct {
	Service

	createAuthorErr error
	getAuthorErr    error
	author          *Author

	createBookErr error
	book          *Book
	createdBook   *Book
	updateErr     error
	update        *BookUpdate
	listFilter    *BookFilter
	books         []*Book
	deleteErr     error
}

func (s *stubService) CreateAuthor(_ context.Context, author *Author) (*Author, error) {
	if s.createAuthorErr != nil {
		return nil, s.createAuthorErr
	}
	return author, nil
}

func (s *stubService) GetAuthor(_ context.Context, _ int64) (*Author, error) {
	if s.getAuthorErr != nil {
		return nil, s.getAuthorErr
	}
	return s.author, nil
}

func (s *stubService) CreateBook(_ context.Context, book *Book) (*Book, error) {
	s.createdBook = book
	if s.createBookErr != nil {
		return nil, s.createBookErr
	}
	return book, nil
}

func (s *stubService) GetBook(_ context.Context, _ int64) (*Book, error) {
	if s.book == nil {
		return nil, ErrBookNotFound
	}
	return s.book, nil
}

func (s *stubService) ListBooks(_ context.Context, filter BookFilter) ([]*Book, error) {
	s.listFilter = &filter
	return s.books, nil
}

func (s *stubService) UpdateBook(_ context.Context, _ int64, update BookUpdate) (*Book, error) {
	s.update = &update
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.book, nil
}

func (s *stubService) DeleteBook(_ context.Context, _ int64) error {
	return s.deleteErr
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/authors", h.HandleCreateAuthor)
	r.Get("/authors/{id}", h.HandleGetAuthor)
	r.Post("/books", h.HandleCreateBook)
	r.Get("/books", h.HandleListBooks)
	r.Get("/books/{id}", h.HandleGetBook)
	r.Put("/books/{id}", h.HandleUpdateBook)
	r.Delete("/books/{id}", h.HandleDeleteBook)
	return r
}

func TestCreateAuthorConflict(t *testing.T) {
	stub := &stubService{createAuthorErr: ErrAuthorExists}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodPost, "/authors", strings.NewReader(`{"id":1,"name":"Author1","bio":"Bio"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestCreateAuthorCreated(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodPost, "/authors", strings.NewReader(`{"id":1,"name":"Author1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Author1"`)
}

func TestGetAuthorNotFound(t *testing.T) {
	stub := &stubService{getAuthorErr: ErrAuthorNotFound}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodGet, "/authors/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookDefaultsToAvailable(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(NewHandler(stub))

	body := `{"id":1,"title":"Book1","isbn":"1234567890","author_id":1,"published_date":"2020-01-01"}`
	req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, stub.createdBook)
	assert.True(t, stub.createdBook.Available)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), stub.createdBook.PublishedDate.Time)
	assert.Contains(t, rec.Body.String(), `"published_date":"2020-01-01"`)
}

func TestCreateBookErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"duplicate id", ErrBookExists, http.StatusBadRequest},
		{"duplicate isbn", ErrISBNExists, http.StatusBadRequest},
		{"missing author", ErrAuthorMissing, http.StatusBadRequest},
		{"bad isbn", ErrInvalidISBN, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubService{createBookErr: tt.err}
			router := newTestRouter(NewHandler(stub))

			body := `{"id":1,"title":"B","isbn":"1234567890","author_id":1}`
			req := httptest.NewRequest(http.MethodPost, "/books", strings.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestListBooksFilterParsing(t *testing.T) {
	stub := &stubService{books: []*Book{}}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodGet, "/books?title=pride&author_id=7&available=true&isbn=1234567890", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.listFilter)
	assert.Equal(t, "pride", stub.listFilter.Title)
	require.NotNil(t, stub.listFilter.AuthorID)
	assert.Equal(t, int64(7), *stub.listFilter.AuthorID)
	require.NotNil(t, stub.listFilter.Available)
	assert.True(t, *stub.listFilter.Available)
	assert.Equal(t, "1234567890", stub.listFilter.ISBN)
}

func TestListBooksRejectsBadFilters(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodGet, "/books?author_id=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/books?available=maybe", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateBookPartialFields(t *testing.T) {
	stub := &stubService{book: &Book{ID: 1, Title: "New", ISBN: "1234567890"}}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodPut, "/books/1", strings.NewReader(`{"title":"New"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.update)
	require.NotNil(t, stub.update.Title)
	assert.Equal(t, "New", *stub.update.Title)
	assert.Nil(t, stub.update.ISBN)
	assert.Nil(t, stub.update.AuthorID)
	assert.Nil(t, stub.update.Available)
}

func TestDeleteBook(t *testing.T) {
	stub := &stubService{}
	router := newTestRouter(NewHandler(stub))

	req := httptest.NewRequest(http.MethodDelete, "/books/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	stub.deleteErr = ErrBookNotFound
	req = httptest.NewRequest(http.MethodDelete, "/books/1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
