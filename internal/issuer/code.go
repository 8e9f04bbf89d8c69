package issuer

import (
	"fmt"

	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/ticket"
)

// IssueAuthorizationCode implements §4.6's code pipeline: the full
// identity (no filter) is stamped with the code lifetime, dispatched
// through CreateAuthorizationCode, and on the default path the
// serialized ticket is stored in the cache under a fresh random handle
// — that handle, not the serialized blob, is the authorization code
// returned to the caller.
func (iss *Issuer) IssueAuthorizationCode(t *ticket.Ticket, req Request) (string, error) {
	now := iss.cfg.Clock.Now()
	t = t.Clone()
	stampLifetimes(t.Properties, now, iss.cfg.Lifetimes.AuthorizationCode)
	stampTrackingID(t.Properties)

	ctx := &hooks.IssueContext{
		Kind: hooks.KindCode,
		Request: hooks.IssueRequest{
			GrantType: req.GrantType,
			ClientID:  req.ClientID,
			Nonce:     req.Nonce,
		},
		Response: &hooks.IssueResponse{},
		Ticket:   t,
		DefaultSerialize: func() (string, error) {
			return serializeOpaque(iss.cfg.CodeFormat, t)
		},
	}

	outcome := iss.cfg.Bus.DispatchIssue(ctx)
	switch outcome.Kind {
	case hooks.Skipped:
		return "", nil
	case hooks.Rejected:
		return "", rejectionError(outcome.Err)
	case hooks.HandledResponse:
		// The hook minted its own handle; the cache is left untouched.
		return outcome.Value, nil
	}

	blob, err := ctx.DefaultSerialize()
	if err != nil {
		return "", err
	}
	if blob == "" {
		// SerializationFailed (§7): the default path yields no credential.
		return "", nil
	}

	handle, err := randomHandle()
	if err != nil {
		return "", err
	}
	if err := iss.cfg.Cache.Put(handle, blob, *t.Properties.ExpiresAt); err != nil {
		return "", fmt.Errorf("issuer: store authorization code: %w", err)
	}
	return handle, nil
}
