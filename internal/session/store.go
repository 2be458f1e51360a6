// Package session keeps server-side login sessions and the signed cookie that points at them.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/splax/gameportal/internal/domain"
)

// ErrNotFound is returned by a Store when the token is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store persists identities keyed by opaque session token.
type Store interface {
	Get(ctx context.Context, token string) (domain.Identity, error)
	Put(ctx context.Context, token string, identity domain.Identity, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}
