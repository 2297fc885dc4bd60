package directory

import "context"

// Store is the remote persistence consumed by the Repository.
// Implementations return ErrNotFound for unknown ids and wrap transport failures
// so that they match ErrRemoteUnavailable.
type Store interface {
	// List returns all records in store-defined order.
	List(ctx context.Context) ([]UserRecord, error)
	// Get returns a single record.
	Get(ctx context.Context, id string) (*UserRecord, error)
	// Create persists rec (its ID is ignored) and returns the store-assigned id.
	Create(ctx context.Context, rec UserRecord) (string, error)
	// Update applies a partial update, leaving the face descriptor untouched.
	Update(ctx context.Context, id string, p Partial) error
	// Delete removes a record.
	Delete(ctx context.Context, id string) error
	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
