package identity

import (
	"context"
	"encoding/json"
	"testing"

	"identity-gate/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Accessors(t *testing.T) {
	assert.Nil(t, Loading().Profile())
	_, ok := SignedOut().Session()
	assert.False(t, ok)

	p := &profile.Profile{Subject: "u1", Role: profile.RoleUser, Status: profile.StatusActive}
	s := SignedIn(Session{Subject: "u1"}, p)
	sess, ok := s.Session()
	assert.True(t, ok)
	assert.Equal(t, "u1", sess.Subject)
	assert.Same(t, p, s.Profile())
}

func TestSnapshot_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{
			name: "loading",
			snap: Loading(),
			want: `{"state":"loading","version":0,"profile":null}`,
		},
		{
			name: "signed out",
			snap: SignedOut(),
			want: `{"state":"signed_out","version":0,"profile":null}`,
		},
		{
			name: "signed in without profile",
			snap: SignedIn(Session{Subject: "u1", Email: "u1@example.com"}, nil),
			want: `{"state":"signed_in","version":0,"session":{"subject":"u1","email":"u1@example.com","email_verified":false},"profile":null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.snap)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestSnapshotFromContext(t *testing.T) {
	assert.Equal(t, StateSignedOut, SnapshotFromContext(context.Background()).State())

	r := NewResolver(&fakeSource{}, newFakeStore())
	ctx := WithResolver(context.Background(), r)

	got, ok := ResolverFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, StateLoading, SnapshotFromContext(ctx).State())
}
