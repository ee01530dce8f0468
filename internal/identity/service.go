package identity

import "context"

// Service defines the interface for the identity store.
type Service interface {
	Register(ctx context.Context, username, password string, role Role) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	UserByID(ctx context.Context, id int64) (*User, error)
}
