package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"librarium/internal/httpx"
	"librarium/internal/identity"
)

// UserSource resolves authenticated user ids to user records.
// Satisfied by identity.Service.
type UserSource interface {
	UserByID(ctx context.Context, id int64) (*identity.User, error)
}

type contextKey string

const userKey contextKey = "librarium.user"

// CurrentUser returns the authenticated user stored by the gate middleware.
func CurrentUser(ctx context.Context) (*identity.User, bool) {
	user, ok := ctx.Value(userKey).(*identity.User)
	return user, ok
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// Authorize compares a user's role against the required role set.
func Authorize(user *identity.User, required ...identity.Role) error {
	for _, role := range required {
		if user.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// Gate authenticates bearer tokens and enforces per-route role requirements.
type Gate struct {
	tokens *TokenManager
	users  UserSource
}

func NewGate(tokens *TokenManager, users UserSource) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// RequireRole returns middleware that admits only callers whose resolved
// role is in the given set.
func (g *Gate) RequireRole(required ...identity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.authenticate(r)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}

			if err := Authorize(user, required...); err != nil {
				httpx.WriteError(w, http.StatusForbidden, "Not authorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func (g *Gate) authenticate(r *http.Request) (*identity.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrUnauthenticated
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return nil, ErrUnauthenticated
	}

	userID, err := g.tokens.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	// The token may outlive the account it was issued for.
	user, err := g.users.UserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	return user, nil
}
