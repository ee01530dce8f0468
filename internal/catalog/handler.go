package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"librarium/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAuthorNotFound), errors.Is(err, ErrBookNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAuthorExists),
		errors.Is(err, ErrBookExists),
		errors.Is(err, ErrISBNExists),
		errors.Is(err, ErrAuthorMissing),
		errors.Is(err, ErrInvalidISBN):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) HandleCreateAuthor(w http.ResponseWriter, r *http.Request) {
	var author Author
	if err := httpx.DecodeJSON(r, &author); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateAuthor(r.Context(), &author)
	if err != nil {
		writeCatalogError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.service.ListAuthors(r.Context())
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authors)
}

func (h *Handler) HandleGetAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid author id")
		return
	}

	author, err := h.service.GetAuthor(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, author)
}

func (h *Handler) HandleUpdateAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid author id")
		return
	}

	var update AuthorUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	author, err := h.service.UpdateAuthor(r.Context(), id, update)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, author)
}

func (h *Handler) HandleDeleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid author id")
		return
	}

	if err := h.service.DeleteAuthor(r.Context(), id); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	// Books default to available unless the request says otherwise.
	book := Book{Available: true}
	if err := httpx.DecodeJSON(r, &book); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateBook(r.Context(), &book)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	filter := BookFilter{
		Title: r.URL.Query().Get("title"),
		ISBN:  r.URL.Query().Get("isbn"),
	}

	if raw := r.URL.Query().Get("author_id"); raw != "" {
		authorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid author_id filter")
			return
		}
		filter.AuthorID = &authorID
	}
	if raw := r.URL.Query().Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid available filter")
			return
		}
		filter.Available = &available
	}

	books, err := h.service.ListBooks(r.Context(), filter)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, books)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	var update BookUpdate
	if err := httpx.DecodeJSON(r, &update); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, update)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid book id")
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
