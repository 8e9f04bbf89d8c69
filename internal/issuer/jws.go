package issuer

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/signer"
	"github.com/jermoo/tokencore/internal/ticket"
)

// claimsToExtra flattens a filtered identity's claims into a JSON-object
// shape for the JWS payload: a claim type appearing once becomes a
// scalar, a type appearing more than once becomes an array (mirroring
// how the teacher's KeycloakClaims nests `realm_access.roles` as a list
// while treating `email`/`name` as scalars). `sub` is carried by the
// standard jwt.Claims.Subject field instead and is not duplicated here.
// An actor chain, if present, is nested under the RFC 8693 `act` claim.
func claimsToExtra(identity *claims.Identity) map[string]any {
	extra := map[string]any{}
	if identity == nil {
		return extra
	}
	for _, c := range identity.Claims {
		if c.Type == claims.TypeSubject {
			continue
		}
		switch existing := extra[c.Type].(type) {
		case nil:
			extra[c.Type] = c.Value
		case string:
			extra[c.Type] = []string{existing, c.Value}
		case []string:
			extra[c.Type] = append(existing, c.Value)
		}
	}
	if identity.Actor != nil {
		act := claimsToExtra(identity.Actor)
		if sub, ok := identity.Actor.Find(claims.TypeSubject); ok {
			act[claims.TypeSubject] = sub.Value
		}
		extra["act"] = act
	}
	return extra
}

// serializeJWS mints a JWS for t via s, catching any signing failure the
// way serializeOpaque catches a DataFormat failure (§7 SerializationFailed:
// logged as a warning, never propagated, result is a null credential).
func serializeJWS(s *signer.Signer, t *ticket.Ticket, audience []string) (string, error) {
	return serializeJWSWithExtra(s, t, audience, nil)
}

// serializeJWSWithExtra is serializeJWS with additional claims merged in;
// see issueJWSWithExtra.
func serializeJWSWithExtra(s *signer.Signer, t *ticket.Ticket, audience []string, extra map[string]any) (string, error) {
	token, err := issueJWSWithExtra(s, t, audience, extra)
	if err != nil {
		log.Warn().Err(err).Msg("issuer: jws signing failed")
		return "", nil
	}
	return token, nil
}

// issueJWSWithExtra signs t's identity as a compact JWS with the given
// audience, implementing §4.4 steps 1-4 via the configured Signer, with
// additional claims (e.g. c_hash, at_hash, nonce) merged in on top of
// the identity's own claims; extra takes precedence on key collision.
func issueJWSWithExtra(s *signer.Signer, t *ticket.Ticket, audience []string, extra map[string]any) (string, error) {
	sub, _ := t.Identity.Find(claims.TypeSubject)

	var issuedAt, expiresAt time.Time
	if t.Properties.IssuedAt != nil {
		issuedAt = *t.Properties.IssuedAt
	}
	if t.Properties.ExpiresAt != nil {
		expiresAt = *t.Properties.ExpiresAt
	}

	payload := claimsToExtra(t.Identity)
	if jti, ok := t.Properties.Extra["jti"]; ok {
		payload["jti"] = jti
	}
	for k, v := range extra {
		payload[k] = v
	}

	return s.IssueJWS(signer.IssueParams{
		Subject:     sub.Value,
		Audience:    audience,
		IssuedAt:    issuedAt,
		ExpiresAt:   expiresAt,
		ExtraClaims: payload,
	})
}

// unionAudience merges request resources with properties resources,
// preserving first-seen order and dropping duplicates, per §4.6's
// "audience = resources ∪ properties.resources".
func unionAudience(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
