package claims

// Kind identifies which credential a filter predicate is scoped for.
type Kind string

const (
	KindCode          Kind = "code"
	KindAccessToken   Kind = "token"
	KindIdentityToken Kind = "id_token"
	KindRefreshToken  Kind = "refresh"
)

// Identity is an ordered multiset of claims plus an optional actor chain,
// modeling a delegated identity (e.g. a service acting on a user's behalf).
type Identity struct {
	Claims []Claim
	Actor  *Identity
}

// NewIdentity builds an Identity from the given claims.
func NewIdentity(c ...Claim) *Identity {
	return &Identity{Claims: append([]Claim(nil), c...)}
}

// Find returns the first claim of the given type, if present.
func (i *Identity) Find(typ string) (Claim, bool) {
	if i == nil {
		return Claim{}, false
	}
	for _, c := range i.Claims {
		if c.Type == typ {
			return c, true
		}
	}
	return Claim{}, false
}

// AddClaim returns a new Identity with c appended; the receiver is untouched.
func (i *Identity) AddClaim(c Claim) *Identity {
	if i == nil {
		return &Identity{Claims: []Claim{c}}
	}
	out := i.clone()
	out.Claims = append(out.Claims, c)
	return out
}

// Predicate decides whether a claim survives a filter.
type Predicate func(Claim) bool

// FilterForKind returns the predicate §4.1 prescribes for a credential kind.
// Opaque kinds (code, refresh) carry the full identity unfiltered.
func FilterForKind(kind Kind) Predicate {
	switch kind {
	case KindAccessToken:
		return func(c Claim) bool {
			return c.IsExempt() || c.HasDestination(DestinationAccessToken)
		}
	case KindIdentityToken:
		return func(c Claim) bool {
			return c.IsExempt() || c.HasDestination(DestinationIdentityToken)
		}
	default: // code, refresh: identity function
		return func(Claim) bool { return true }
	}
}

// CloneWithFilter returns a deep clone of the identity (and every actor in
// its chain) with pred applied to each claim. Claims failing pred are
// dropped. The clone is independent of the receiver so concurrent hook
// observers never see a half-filtered claim set (§9 design note).
func (i *Identity) CloneWithFilter(pred Predicate) *Identity {
	if i == nil {
		return nil
	}
	out := &Identity{Claims: make([]Claim, 0, len(i.Claims))}
	for _, c := range i.Claims {
		if pred(c) {
			out.Claims = append(out.Claims, c.clone())
		}
	}
	out.Actor = i.Actor.CloneWithFilter(pred)
	return out
}

// clone performs a shallow structural copy without filtering.
func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	out := &Identity{Claims: append([]Claim(nil), i.Claims...)}
	if i.Actor != nil {
		out.Actor = i.Actor.clone()
	}
	return out
}

// NormalizeSubject enforces I2/I3: ensures a `sub` claim is present,
// substituting it from NameIdentifier when missing, then drops any
// duplicate NameIdentifier claim that substitution would otherwise leave
// behind. Returns false if neither claim is present after the call.
func (i *Identity) NormalizeSubject() (*Identity, bool) {
	if i == nil {
		return nil, false
	}
	out := i.clone()

	sub, hasSub := out.Find(TypeSubject)
	nameID, hasNameID := out.Find(TypeNameIdentifier)

	if !hasSub {
		if !hasNameID {
			return out, false
		}
		out.Claims = append(out.Claims, Claim{Type: TypeSubject, Value: nameID.Value})
		hasSub = true
		sub = out.Claims[len(out.Claims)-1]
	}

	_ = sub
	if hasNameID {
		out.Claims = dedupeNameIdentifier(out.Claims)
	}
	return out, hasSub
}

// dedupeNameIdentifier removes every NameIdentifier claim after the first,
// per I3 ("filtered identities contain no duplicate NameIdentifier claims").
func dedupeNameIdentifier(in []Claim) []Claim {
	out := make([]Claim, 0, len(in))
	seen := false
	for _, c := range in {
		if c.Type == TypeNameIdentifier {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, c)
	}
	return out
}
