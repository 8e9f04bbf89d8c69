package receiver

import (
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// ReceiveAccessToken implements §4.8's access-token pipeline: when an
// AccessTokenHandler is configured the handle is verified as a JWS and a
// fresh Ticket is rebuilt from its claims; otherwise it is unprotected
// as an opaque blob. The handle itself carries no cache entry to take —
// an access token is self-contained once minted.
func (r *Receiver) ReceiveAccessToken(req Request) (*ticket.Ticket, error) {
	ctx := &hooks.ReceiveContext{
		Kind: hooks.KindAccess,
		Request: hooks.ReceiveRequest{
			GrantType: req.GrantType,
			Handle:    req.Handle,
		},
		DefaultDeserialize: func() (*ticket.Ticket, bool) {
			if r.cfg.AccessTokenHandler != nil {
				v, err := r.cfg.AccessTokenHandler.ValidateJWS(req.Handle)
				if err != nil {
					return nil, false
				}
				return ticketFromValidResult(v), true
			}
			return deserializeOpaque(r.cfg.AccessFormat, req.Handle)
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
