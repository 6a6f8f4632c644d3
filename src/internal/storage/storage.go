// Package storage persists the per-client auth state: tokens, the cached
// user and the permission set. The cache package keeps portal-wide entries
// under its own reserved owner.
package storage

import "context"

// Fixed key names of the persisted client state.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyPermissions  = "permissions"
)

// AllKeys is the whole persisted surface of a client.
var AllKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyPermissions}

// Storage is a key-value store partitioned by portal client id.
type Storage interface {
	// Get returns models.ErrStorageNotFound when the key is not set.
	Get(ctx context.Context, clientID, key string) (string, error)
	Set(ctx context.Context, clientID, key, value string) error
	Remove(ctx context.Context, clientID string, keys ...string) error
	Ping(ctx context.Context) error
}
