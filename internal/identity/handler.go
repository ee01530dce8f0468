package identity

import (
	"errors"
	"net/http"

	"librarium/internal/httpx"
)

// TokenIssuer mints access tokens for authenticated users.
// Satisfied by the auth package.
type TokenIssuer interface {
	Issue(user *User) (string, error)
}

type Handler struct {
	service Service
	tokens  TokenIssuer
}

func NewHandler(service Service, tokens TokenIssuer) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type userRead struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// HandleRegister creates a new user account.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "username and password are required")
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Password, Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken):
			httpx.WriteError(w, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, ErrInvalidRole):
			httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, ErrRateLimited):
			httpx.WriteError(w, http.StatusTooManyRequests, err.Error())
		default:
			httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userRead{ID: user.ID, Username: user.Username, Role: string(user.Role)})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// HandleLogin verifies credentials and returns a bearer token.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "Invalid username or password")
		case errors.Is(err, ErrRateLimited):
			httpx.WriteError(w, http.StatusTooManyRequests, err.Error())
		default:
			httpx.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}
