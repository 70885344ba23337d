package profile

import (
	"context"
	"strings"

	"identity-gate/internal/logger"
)

// Policy assigns the initial role of a new profile.
type Policy struct {
	admins map[string]struct{}
}

// NewPolicy builds a policy granting RoleAdmin to the listed emails.
func NewPolicy(adminEmails []string) Policy {
	m := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		m[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return Policy{admins: m}
}

func (p Policy) RoleFor(email string) Role {
	if _, ok := p.admins[strings.ToLower(strings.TrimSpace(email))]; ok {
		return RoleAdmin
	}
	return RoleUser
}

// Provisioner creates profiles at sign-up time.
type Provisioner struct {
	store  Store
	policy Policy
}

func NewProvisioner(store Store, policy Policy) *Provisioner {
	return &Provisioner{store: store, policy: policy}
}

// Provision creates the profile for subject unless one already exists.
// The role of an existing profile is never recomputed.
func (p *Provisioner) Provision(
	ctx context.Context,
	subject string,
	email string,
	emailVerified bool,
	displayName string,
) error {

	created, err := p.store.Create(ctx, Profile{
		Subject:     subject,
		Role:        p.policy.RoleFor(email),
		Status:      StatusActive,
		DisplayName: displayName,
		Verified:    emailVerified,
	})
	if err != nil {
		return err
	}

	if created {
		logger.Info("profile provisioned", map[string]any{
			"subject": subject,
		})
	}
	return nil
}
