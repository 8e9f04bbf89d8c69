package ticket

import (
	"encoding/json"
	"time"

	"github.com/jermoo/tokencore/internal/claims"
)

// wireClaim/wireIdentity/wireTicket are the JSON-serializable mirrors of
// the in-memory types; kept separate so the public types stay free of
// struct tags and so actor chains round-trip exactly.
type wireClaim struct {
	Type         string   `json:"type"`
	Value        string   `json:"value"`
	Destinations []string `json:"dst,omitempty"`
}

type wireIdentity struct {
	Claims []wireClaim   `json:"claims"`
	Actor  *wireIdentity `json:"actor,omitempty"`
}

type wireTicket struct {
	Identity  *wireIdentity  `json:"identity"`
	IssuedAt  *time.Time     `json:"iat,omitempty"`
	ExpiresAt *time.Time     `json:"exp,omitempty"`
	Nonce     string         `json:"nonce,omitempty"`
	Resources []string       `json:"resources,omitempty"`
	Audiences []string       `json:"audiences,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

func toWireIdentity(i *claims.Identity) *wireIdentity {
	if i == nil {
		return nil
	}
	w := &wireIdentity{Claims: make([]wireClaim, 0, len(i.Claims))}
	for _, c := range i.Claims {
		wc := wireClaim{Type: c.Type, Value: c.Value}
		for d := range c.Destinations {
			wc.Destinations = append(wc.Destinations, d)
		}
		w.Claims = append(w.Claims, wc)
	}
	w.Actor = toWireIdentity(i.Actor)
	return w
}

func fromWireIdentity(w *wireIdentity) *claims.Identity {
	if w == nil {
		return nil
	}
	out := &claims.Identity{Claims: make([]claims.Claim, 0, len(w.Claims))}
	for _, wc := range w.Claims {
		c := claims.Claim{Type: wc.Type, Value: wc.Value}
		if len(wc.Destinations) > 0 {
			c.Destinations = make(map[string]struct{}, len(wc.Destinations))
			for _, d := range wc.Destinations {
				c.Destinations[d] = struct{}{}
			}
		}
		out.Claims = append(out.Claims, c)
	}
	out.Actor = fromWireIdentity(w.Actor)
	return out
}

// Serialize encodes the ticket as JSON bytes, the payload DataFormat.Protect
// consumes for opaque credentials (JWS credentials are built from the
// identity's claims instead).
func (t *Ticket) Serialize() ([]byte, error) {
	w := wireTicket{Identity: toWireIdentity(t.Identity)}
	if t.Properties != nil {
		w.IssuedAt = t.Properties.IssuedAt
		w.ExpiresAt = t.Properties.ExpiresAt
		w.Nonce = t.Properties.Nonce
		w.Resources = t.Properties.Resources
		w.Audiences = t.Properties.Audiences
		w.Extra = t.Properties.Extra
	}
	return json.Marshal(w)
}

// Deserialize decodes a ticket previously produced by Serialize.
func Deserialize(data []byte) (*Ticket, error) {
	var w wireTicket
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &Ticket{
		Identity: fromWireIdentity(w.Identity),
		Properties: &Properties{
			IssuedAt:  w.IssuedAt,
			ExpiresAt: w.ExpiresAt,
			Nonce:     w.Nonce,
			Resources: w.Resources,
			Audiences: w.Audiences,
			Extra:     w.Extra,
		},
	}, nil
}
