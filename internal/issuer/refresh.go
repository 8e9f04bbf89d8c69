package issuer

import (
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// IssueRefreshToken implements §4.6's refresh-token pipeline: same shape
// as the authorization code (full identity, opaque serialization) but
// the result is handed back directly as the credential rather than
// stored in the cache — a refresh token is redeemed by deserializing it,
// not by looking it up.
func (iss *Issuer) IssueRefreshToken(t *ticket.Ticket, req Request) (string, error) {
	now := iss.cfg.Clock.Now()
	t = t.Clone()
	stampLifetimes(t.Properties, now, iss.cfg.Lifetimes.RefreshToken)
	stampTrackingID(t.Properties)

	ctx := &hooks.IssueContext{
		Kind: hooks.KindRefresh,
		Request: hooks.IssueRequest{
			GrantType: req.GrantType,
			ClientID:  req.ClientID,
			Nonce:     req.Nonce,
		},
		Response: &hooks.IssueResponse{},
		Ticket:   t,
		DefaultSerialize: func() (string, error) {
			return serializeOpaque(iss.cfg.RefreshFormat, t)
		},
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
