package account

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no account matches the requested username.
var ErrNotFound = errors.New("account not found")

// ErrAlreadyExists is returned when creation races another request for the
// same username. Callers are expected to re-lookup.
var ErrAlreadyExists = errors.New("account already exists")

// Store is the account lookup-or-create contract consumed by the SSO core
type Store interface {
	// LookupByName returns the account with the given username or ErrNotFound
	LookupByName(ctx context.Context, username string) (*Account, error)

	// LookupByID returns the account with the given ID or ErrNotFound
	LookupByID(ctx context.Context, id int64) (*Account, error)

	// Create creates a new enabled account with the given username.
	// Usernames are unique-constrained; a conflict surfaces as ErrAlreadyExists.
	Create(ctx context.Context, username string) (*Account, error)
}
