package receiver

import (
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// ReceiveRefreshToken implements §4.8's refresh-token pipeline: the
// handle is unprotected and deserialized directly, with no cache lookup
// — a refresh token carries its own ticket rather than pointing at one.
func (r *Receiver) ReceiveRefreshToken(req Request) (*ticket.Ticket, error) {
	ctx := &hooks.ReceiveContext{
		Kind: hooks.KindRefresh,
		Request: hooks.ReceiveRequest{
			GrantType: req.GrantType,
			Handle:    req.Handle,
		},
		DefaultDeserialize: func() (*ticket.Ticket, bool) {
			return deserializeOpaque(r.cfg.RefreshFormat, req.Handle)
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
