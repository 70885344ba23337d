package resolver

import (
	"context"

	"identity-gate/internal/auth"
)

// Resolver maps an external identity onto the internal subject that
// sessions and profiles are keyed by.
type Resolver interface {
	Resolve(
		ctx context.Context,
		identity *auth.Identity,
	) (subject string, err error)
}
