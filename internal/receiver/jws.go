package receiver

import (
	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/signer"
	"github.com/jermoo/tokencore/internal/ticket"
)

// reservedRawKeys are the JWT claims already surfaced structurally on
// signer.ValidResult (or, like nonce, read separately by
// ticketFromValidResult); they never become identity claims themselves.
var reservedRawKeys = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {},
	"act": {}, "nonce": {}, "c_hash": {}, "at_hash": {},
}

// identityFromClaims rebuilds an Identity from a JWS's decoded raw claim
// map plus its subject, inverting jws.go's claimsToExtra on the issuer
// side: a string value becomes one claim, a string array becomes one
// claim per element, and a nested "act" object becomes the Actor chain.
func identityFromClaims(raw map[string]any, subject string) *claims.Identity {
	identity := &claims.Identity{}
	if subject != "" {
		identity.Claims = append(identity.Claims, claims.Claim{Type: claims.TypeSubject, Value: subject})
	}
	for k, v := range raw {
		if _, skip := reservedRawKeys[k]; skip {
			continue
		}
		switch val := v.(type) {
		case string:
			identity.Claims = append(identity.Claims, claims.Claim{Type: k, Value: val})
		case []any:
			for _, elem := range val {
				if s, ok := elem.(string); ok {
					identity.Claims = append(identity.Claims, claims.Claim{Type: k, Value: s})
				}
			}
		}
	}
	if act, ok := raw["act"].(map[string]any); ok {
		actSub, _ := act["sub"].(string)
		identity.Actor = identityFromClaims(act, actSub)
	}
	return identity
}

// ticketFromValidResult builds a fresh Ticket from a verified JWS: the
// identity is reconstructed from its claims, and AuthProperties are
// stamped from the token's own validity window (ValidFrom/ValidTo) per
// §4.8 rather than trusted wholesale from the wire.
func ticketFromValidResult(v *signer.ValidResult) *ticket.Ticket {
	identity := identityFromClaims(v.Claims, v.Subject)
	props := &ticket.Properties{
		Audiences: v.Audience,
	}
	if !v.ValidFrom.IsZero() {
		t := v.ValidFrom
		props.IssuedAt = &t
	}
	if !v.ValidTo.IsZero() {
		t := v.ValidTo
		props.ExpiresAt = &t
	}
	if nonce, ok := v.Claims["nonce"].(string); ok {
		props.Nonce = nonce
	}
	return &ticket.Ticket{Identity: identity, Properties: props}
}
