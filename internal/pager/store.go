package pager

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by a Store for an unknown or already
// expired session ID.
var ErrSessionNotFound = errors.New("page session not found")

// Store keeps page sessions between navigation calls.
type Store interface {
	Save(ctx context.Context, state *PageState) error
	Get(ctx context.Context, id string) (*PageState, error)
	Delete(ctx context.Context, id string) error
}
