package identity

import (
	"encoding/json"

	"identity-gate/internal/profile"
)

// Session is the authenticated principal as known to the auth provider.
// It contains facts only, no decisions.
type Session struct {
	Subject       string `json:"subject"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

type State int

const (
	StateLoading State = iota
	StateSignedOut
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSignedOut:
		return "signed_out"
	case StateSignedIn:
		return "signed_in"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable identity value. Exactly one state holds.
// Session and profile are only reachable once the state is SignedIn.
type Snapshot struct {
	state   State
	session Session
	profile *profile.Profile
	version uint64
}

func Loading() Snapshot { return Snapshot{state: StateLoading} }

func SignedOut() Snapshot { return Snapshot{state: StateSignedOut} }

// SignedIn builds a signed-in snapshot; p is nil for a subject without a profile.
func SignedIn(s Session, p *profile.Profile) Snapshot {
	return Snapshot{state: StateSignedIn, session: s, profile: p}
}

func (s Snapshot) State() State { return s.state }

// Session returns the principal; ok is false unless signed in.
func (s Snapshot) Session() (Session, bool) {
	if s.state != StateSignedIn {
		return Session{}, false
	}
	return s.session, true
}

// Profile returns nil unless signed in with a profile.
func (s Snapshot) Profile() *profile.Profile {
	if s.state != StateSignedIn {
		return nil
	}
	return s.profile
}

// Version increases by one for every snapshot a resolver publishes.
func (s Snapshot) Version() uint64 { return s.version }

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := struct {
		State   string           `json:"state"`
		Version uint64           `json:"version"`
		Session *Session         `json:"session,omitempty"`
		Profile *profile.Profile `json:"profile"`
	}{
		State:   s.state.String(),
		Version: s.version,
	}
	if sess, ok := s.Session(); ok {
		out.Session = &sess
		out.Profile = s.profile
	}
	return json.Marshal(out)
}
