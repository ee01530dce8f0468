// Package api wires the HTTP surface over the domain services.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"librarium/internal/auth"
	"librarium/internal/catalog"
	"librarium/internal/circulation"
	"librarium/internal/httpx"
	"librarium/internal/identity"
)

// NewRouter mounts every endpoint with its role requirement.
func NewRouter(
	logger *slog.Logger,
	gate *auth.Gate,
	identityHandler *identity.Handler,
	catalogHandler *catalog.Handler,
	circulationHandler *circulation.Handler,
) http.Handler {
	router := chi.NewRouter()
	router.Use(httpx.RequestLogger(logger))

	router.Post("/role/register", identityHandler.HandleRegister)
	router.Post("/role/login", identityHandler.HandleLogin)

	staffOrAdmin := gate.RequireRole(identity.RoleStaff, identity.RoleAdmin)

	router.Route("/authors", func(r chi.Router) {
		r.Get("/", catalogHandler.HandleListAuthors)
		r.Get("/{id}", catalogHandler.HandleGetAuthor)
		r.Group(func(r chi.Router) {
			r.Use(staffOrAdmin)
			r.Post("/", catalogHandler.HandleCreateAuthor)
			r.Put("/{id}", catalogHandler.HandleUpdateAuthor)
			r.Delete("/{id}", catalogHandler.HandleDeleteAuthor)
		})
	})

	router.Route("/books", func(r chi.Router) {
		r.Get("/", catalogHandler.HandleListBooks)
		r.Get("/{id}", catalogHandler.HandleGetBook)
		r.Group(func(r chi.Router) {
			r.Use(staffOrAdmin)
			r.Post("/", catalogHandler.HandleCreateBook)
			r.Put("/{id}", catalogHandler.HandleUpdateBook)
			r.Delete("/{id}", catalogHandler.HandleDeleteBook)
		})
	})

	// Borrowing is gated to the user role only; staff and admin cannot
	// borrow under the current policy.
	router.Group(func(r chi.Router) {
		r.Use(gate.RequireRole(identity.RoleUser))
		r.Post("/borrow/{book_id}", circulationHandler.HandleBorrow)
		r.Post("/return/{book_id}", circulationHandler.HandleReturn)
	})

	return router
}
