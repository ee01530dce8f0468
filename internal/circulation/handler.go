package circulation

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"librarium/internal/auth"
	"librarium/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeCirculationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrNoBorrower):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBorrowLimit),
		errors.Is(err, ErrBookUnavailable),
		errors.Is(err, ErrAlreadyBorrowed),
		errors.Is(err, ErrNotBorrowed):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleBorrow lends the book in the path to the authenticated caller.
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	bookID, err := strconv.ParseInt(chi.URLParam(r, "book_id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	loan, err := h.service.Borrow(r.Context(), user.ID, bookID)
	if err != nil {
		writeCirculationError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, httpx.Message{
		Message: fmt.Sprintf("Book '%s' borrowed successfully.", loan.BookTitle),
	})
}

// HandleReturn takes the book in the path back from the authenticated caller.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "missing or invalid credentials")
		return
	}

	bookID, err := strconv.ParseInt(chi.URLParam(r, "book_id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	loan, err := h.service.Return(r.Context(), user.ID, bookID)
	if err != nil {
		writeCirculationError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, httpx.Message{
		Message: fmt.Sprintf("Book '%s' returned successfully.", loan.BookTitle),
	})
}
