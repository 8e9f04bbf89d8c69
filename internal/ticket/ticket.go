// Package ticket holds the (identity, properties) bundle that flows
// through every issue/redeem pipeline before it is serialized into a
// credential handle.
package ticket

import (
	"time"

	"github.com/jermoo/tokencore/internal/claims"
)

// Properties is the recognized-key bag described in spec §3. Unknown
// entries set by host code are preserved verbatim in Extra.
type Properties struct {
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	Nonce     string
	Resources []string
	Audiences []string
	Extra     map[string]any
}

// Clone returns a deep copy of p; nil-safe.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return &Properties{}
	}
	out := &Properties{
		Nonce:     p.Nonce,
		Resources: append([]string(nil), p.Resources...),
		Audiences: append([]string(nil), p.Audiences...),
	}
	if p.IssuedAt != nil {
		t := *p.IssuedAt
		out.IssuedAt = &t
	}
	if p.ExpiresAt != nil {
		t := *p.ExpiresAt
		out.ExpiresAt = &t
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Ticket is an immutable (per §3) handle bundling an identity with its
// lifetime/audience properties. Mutating operations return a new Ticket;
// callers must not mutate Identity/Properties in place.
type Ticket struct {
	Identity   *claims.Identity
	Properties *Properties
}

// New builds a Ticket from an identity and properties, deep-copying both.
func New(identity *claims.Identity, props *Properties) *Ticket {
	return &Ticket{
		Identity:   identity.CloneWithFilter(func(claims.Claim) bool { return true }),
		Properties: props.Clone(),
	}
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	return &Ticket{
		Identity:   t.Identity.CloneWithFilter(func(claims.Claim) bool { return true }),
		Properties: t.Properties.Clone(),
	}
}

// WithFilteredIdentity returns a new Ticket whose identity is the filtered
// view prescribed by pred; Properties is shared by deep copy.
func (t *Ticket) WithFilteredIdentity(pred claims.Predicate) *Ticket {
	return &Ticket{
		Identity:   t.Identity.CloneWithFilter(pred),
		Properties: t.Properties.Clone(),
	}
}
