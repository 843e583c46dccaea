// Package presence publishes the server's user list to a store that other
// processes can read, and logs who came and went between two lists.
package presence

import (
	"context"
	"errors"
	"time"
)

// DefaultKey is the key the user list is stored under.
const DefaultKey = "udpchat:presence"

// ErrNoStore is returned by NewMirror without a Store.
var ErrNoStore = errors.New("presence: store is required")

// Snapshot is the stored form of a user list.
type Snapshot struct {
	Users     []string  `json:"users"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps the latest user list. Entries expire after the store's TTL so
// that a crashed server does not advertise users forever.
type Store interface {
	// Publish replaces the stored list.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - users: Usernames in registry order
	//
	// Returns:
	//   - An error if the list could not be stored
	Publish(ctx context.Context, users []string) error

	// Online returns the stored list, or an empty list when nothing is
	// stored or the entry expired.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - The stored usernames
	//   - An error if the store could not be read
	Online(ctx context.Context) ([]string, error)

	// Clear removes the stored list.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - An error if the operation fails
	Clear(ctx context.Context) error
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
