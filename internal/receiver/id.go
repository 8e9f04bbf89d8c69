package receiver

import (
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// ReceiveIdentityToken implements §4.8's identity-token pipeline: the
// handle is always a JWS (identity tokens have no opaque form, §4.4), so
// this simply validates it and rebuilds the Ticket from its claims,
// carrying `nonce` through for the host to compare against its own
// session state.
func (r *Receiver) ReceiveIdentityToken(req Request) (*ticket.Ticket, error) {
	ctx := &hooks.ReceiveContext{
		Kind: hooks.KindID,
		Request: hooks.ReceiveRequest{
			GrantType: req.GrantType,
			Handle:    req.Handle,
		},
		DefaultDeserialize: func() (*ticket.Ticket, bool) {
			if r.cfg.IdentityTokenHandler == nil {
				return nil, false
			}
			v, err := r.cfg.IdentityTokenHandler.ValidateJWS(req.Handle)
			if err != nil {
				return nil, false
			}
			return ticketFromValidResult(v), true
		},
	}

	outcome := r.cfg.Bus.DispatchReceive(ctx)
	switch outcome.Kind {
	case hooks.Skipped:
		return nil, nil
	case hooks.Rejected:
		return nil, rejectionError(outcome.Err)
	case hooks.HandledResponse:
		if ctx.Ticket == nil {
			return nil, ErrInvalidCredential
		}
		return ctx.Ticket, nil
	}

	t, ok := ctx.DefaultDeserialize()
	if !ok {
		return nil, ErrInvalidCredential
	}
	ctx.Ticket = t
	return t, nil
}
