package profile

import "context"

// Store is the "users" collection of the document store.
// Get returns (nil, nil) when no document exists for subject.
type Store interface {
	Get(ctx context.Context, subject string) (*Profile, error)
	Create(ctx context.Context, p Profile) (created bool, err error)
}
