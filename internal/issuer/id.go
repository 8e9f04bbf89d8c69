package issuer

import (
	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/signer"
	"github.com/jermoo/tokencore/internal/ticket"
)

// IssueIdentityToken implements §4.6's identity-token pipeline: the
// identity is filtered to claims destined for `id_token` (I2), `sub` is
// mandatory (I3 — ErrMissingSubject otherwise), the audience is just the
// requesting client, and `c_hash`/`at_hash` are attached when a code or
// access token were already minted in this call. On the
// authorization_code grant the nonce is restored from the original
// authorization request; on every other grant it is taken from the
// request's own nonce parameter (§4.6).
func (iss *Issuer) IssueIdentityToken(t *ticket.Ticket, req Request, resp Response) (string, error) {
	if iss.cfg.IdentityTokenHandler == nil {
		return "", ErrIdentityTokenHandlerRequired
	}

	now := iss.cfg.Clock.Now()
	t = t.Clone()
	stampLifetimes(t.Properties, now, iss.cfg.Lifetimes.IdentityToken)
	stampTrackingID(t.Properties)

	filtered, err := filterForAccessOrID(t.Identity, claims.KindIdentityToken, true)
	if err != nil {
		return "", err
	}
	ft := &ticket.Ticket{Identity: filtered, Properties: t.Properties.Clone()}
	ft.Properties.Audiences = []string{req.ClientID}

	// §4.6: on the authorization_code grant the nonce comes from the
	// code's own ticket (properties.nonce, already present on t via the
	// clone above), never from the token-request parameter — this is
	// what keeps the nonce correct across the code-redeem-then-mint-id
	// hop (P5). Every other grant reads request.nonce directly.
	if req.GrantType != "authorization_code" {
		ft.Properties.Nonce = req.Nonce
	}

	active, err := iss.cfg.IdentityTokenHandler.Active()
	if err != nil {
		return "", err
	}
	alg := active.Algorithm

	extra := map[string]any{}
	if resp.Code != "" {
		h, err := signer.HashClaim(alg, resp.Code)
		if err != nil {
			return "", err
		}
		extra["c_hash"] = h
	}
	if resp.AccessToken != "" {
		h, err := signer.HashClaim(alg, resp.AccessToken)
		if err != nil {
			return "", err
		}
		extra["at_hash"] = h
	}
	if ft.Properties.Nonce != "" {
		extra["nonce"] = ft.Properties.Nonce
	}

	defaultSerialize := func() (string, error) {
		return serializeJWSWithExtra(iss.cfg.IdentityTokenHandler, ft, ft.Properties.Audiences, extra)
	}

	ctx := &hooks.IssueContext{
		Kind: hooks.KindID,
		Request: hooks.IssueRequest{
			GrantType: req.GrantType,
			ClientID:  req.ClientID,
			Nonce:     req.Nonce,
		},
		Response: &hooks.IssueResponse{
			Code:        resp.Code,
			AccessToken: resp.AccessToken,
		},
		Ticket:           ft,
		DefaultSerialize: defaultSerialize,
	}

	outcome := iss.cfg.Bus.DispatchIssue(ctx)
	switch outcome.Kind {
	case hooks.Skipped:
		return "", nil
	case hooks.Rejected:
		return "", rejectionError(outcome.Err)
	case hooks.HandledResponse:
		return outcome.Value, nil
	}
	return ctx.DefaultSerialize()
}
