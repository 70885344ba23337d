package identity

import (
	"context"

	"identity-gate/internal/profile"
)

// SessionSource is the auth provider's session-change stream.
//
// OnSessionChange registers handler and returns a disposer. The source
// calls handler sequentially, in delivery order, with the new session or
// nil on sign-out. No call happens after dispose returns.
type SessionSource interface {
	OnSessionChange(handler func(*Session)) (dispose func(), err error)
	SignOut(ctx context.Context) error
}

// ProfileStore reads profiles from the document store.
// Get returns (nil, nil) when the subject has no profile.
type ProfileStore interface {
	Get(ctx context.Context, subject string) (*profile.Profile, error)
}
