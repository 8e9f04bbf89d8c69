package claims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterForKind(t *testing.T) {
	identity := NewIdentity(
		NewClaim(TypeSubject, "user-1"),
		NewClaim("role", "admin").WithDestination(DestinationAccessToken),
		NewClaim("email", "user@example.com").WithDestination(DestinationIdentityToken),
		NewClaim("internal_note", "not scoped anywhere"),
	)

	tests := []struct {
		name     string
		kind     Kind
		wantType []string
	}{
		{
			name:     "access token keeps sub and token-destined claims only",
			kind:     KindAccessToken,
			wantType: []string{TypeSubject, "role"},
		},
		{
			name:     "identity token keeps sub and id_token-destined claims only",
			kind:     KindIdentityToken,
			wantType: []string{TypeSubject, "email"},
		},
		{
			name:     "code is the identity function",
			kind:     KindCode,
			wantType: []string{TypeSubject, "role", "email", "internal_note"},
		},
		{
			name:     "refresh is the identity function",
			kind:     KindRefreshToken,
			wantType: []string{TypeSubject, "role", "email", "internal_note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered := identity.CloneWithFilter(FilterForKind(tt.kind))
			var gotTypes []string
			for _, c := range filtered.Claims {
				gotTypes = append(gotTypes, c.Type)
			}
			assert.ElementsMatch(t, tt.wantType, gotTypes)
		})
	}
}

func TestCloneWithFilterIsIndependentOfSource(t *testing.T) {
	identity := NewIdentity(NewClaim(TypeSubject, "user-1"))
	filtered := identity.CloneWithFilter(func(Claim) bool { return true })

	filtered.Claims[0].Value = "mutated"

	assert.Equal(t, "user-1", identity.Claims[0].Value, "filtering must not alias the source identity's claims")
}

func TestCloneWithFilterRecursesIntoActor(t *testing.T) {
	actor := NewIdentity(
		NewClaim(TypeSubject, "service-account"),
		NewClaim("scope", "internal").WithDestination(DestinationAccessToken),
	)
	identity := &Identity{
		Claims: []Claim{NewClaim(TypeSubject, "user-1")},
		Actor:  actor,
	}

	filtered := identity.CloneWithFilter(FilterForKind(KindAccessToken))

	require.NotNil(t, filtered.Actor)
	_, ok := filtered.Actor.Find("scope")
	assert.True(t, ok)
}

func TestNormalizeSubject(t *testing.T) {
	t.Run("substitutes sub from NameIdentifier when sub missing", func(t *testing.T) {
		identity := NewIdentity(NewClaim(TypeNameIdentifier, "legacy-id"))
		out, ok := identity.NormalizeSubject()
		require.True(t, ok)
		sub, found := out.Find(TypeSubject)
		require.True(t, found)
		assert.Equal(t, "legacy-id", sub.Value)
	})

	t.Run("dedupes NameIdentifier once sub is present", func(t *testing.T) {
		identity := NewIdentity(
			NewClaim(TypeSubject, "user-1"),
			NewClaim(TypeNameIdentifier, "user-1"),
			NewClaim(TypeNameIdentifier, "user-1-dup"),
		)
		out, ok := identity.NormalizeSubject()
		require.True(t, ok)

		count := 0
		for _, c := range out.Claims {
			if c.Type == TypeNameIdentifier {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("reports false when neither sub nor NameIdentifier present", func(t *testing.T) {
		identity := NewIdentity(NewClaim("email", "user@example.com"))
		_, ok := identity.NormalizeSubject()
		assert.False(t, ok)
	})
}

func TestClaimExemption(t *testing.T) {
	sub := NewClaim(TypeSubject, "user-1")
	nameID := NewClaim(TypeNameIdentifier, "user-1")
	other := NewClaim("role", "admin")

	assert.True(t, sub.IsExempt())
	assert.True(t, nameID.IsExempt())
	assert.False(t, other.IsExempt())
}
