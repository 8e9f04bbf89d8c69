package issuer

import (
	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// IssueAccessToken implements §4.6's access-token pipeline: the identity
// is filtered to claims destined for `token` (I2), the audience is the
// union of requested resources and the ticket's own resources, and the
// default serializer mints a JWS when AccessTokenHandler is configured,
// otherwise an opaque blob via AccessFormat.
func (iss *Issuer) IssueAccessToken(t *ticket.Ticket, req Request) (string, error) {
	now := iss.cfg.Clock.Now()
	t = t.Clone()
	stampLifetimes(t.Properties, now, iss.cfg.Lifetimes.AccessToken)
	stampTrackingID(t.Properties)

	filtered, err := filterForAccessOrID(t.Identity, claims.KindAccessToken, false)
	if err != nil {
		return "", err
	}
	ft := &ticket.Ticket{Identity: filtered, Properties: t.Properties.Clone()}
	ft.Properties.Audiences = unionAudience(req.Resources, ft.Properties.Resources)

	var defaultSerialize func() (string, error)
	if iss.cfg.AccessTokenHandler != nil {
		defaultSerialize = func() (string, error) {
			return serializeJWS(iss.cfg.AccessTokenHandler, ft, ft.Properties.Audiences)
		}
	} else {
		defaultSerialize = func() (string, error) {
			return serializeOpaque(iss.cfg.AccessFormat, ft)
		}
	}

	ctx := &hooks.IssueContext{
		Kind: hooks.KindAccess,
		Request: hooks.IssueRequest{
			GrantType: req.GrantType,
			ClientID:  req.ClientID,
			Nonce:     req.Nonce,
		},
		Response:         &hooks.IssueResponse{},
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
