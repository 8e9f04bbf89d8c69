package receiver

import (
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// ReceiveAuthorizationCode implements §4.8's code pipeline: the handle is
// atomically taken from the cache (P3 — a concurrent redeemer sees it
// gone, never half-consumed) and the stored blob is unprotected and
// deserialized back into a Ticket.
func (r *Receiver) ReceiveAuthorizationCode(req Request) (*ticket.Ticket, error) {
	ctx := &hooks.ReceiveContext{
		Kind: hooks.KindCode,
		Request: hooks.ReceiveRequest{
			GrantType: req.GrantType,
			Handle:    req.Handle,
		},
		DefaultDeserialize: func() (*ticket.Ticket, bool) {
			blob, ok := r.cfg.Cache.Take(req.Handle)
			if !ok {
				return nil, false
			}
			return deserializeOpaque(r.cfg.CodeFormat, blob)
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
		return nil, ErrNotFound
	}
	ctx.Ticket = t
	return t, nil
}
