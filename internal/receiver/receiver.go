// Package receiver implements the four redeem pipelines (C8, §4.8): the
// mirror image of issuer, turning a credential handle back into a
// Ticket (or rejecting/skipping it) via the HookBus.
package receiver

import (
	"errors"
	"fmt"

	"github.com/jermoo/tokencore/internal/cache"
	"github.com/jermoo/tokencore/internal/dataformat"
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/signer"
	"github.com/jermoo/tokencore/internal/ticket"
)

// Config wires the Receiver's collaborators; fields mirror issuer.Config
// so the same Format/Signer instances can be shared between issuance and
// redemption.
type Config struct {
	CodeFormat    dataformat.Format
	AccessFormat  dataformat.Format
	RefreshFormat dataformat.Format

	AccessTokenHandler   *signer.Signer
	IdentityTokenHandler *signer.Signer

	Cache cache.Store
	Bus   *hooks.Bus
}

// Receiver implements the four redeem pipelines against a shared Config.
type Receiver struct {
	cfg Config
}

// New constructs a Receiver.
func New(cfg Config) *Receiver {
	return &Receiver{cfg: cfg}
}

// Request carries the inbound handle/grant-type pair a redeem pipeline
// needs (§4.8).
type Request struct {
	GrantType string
	Handle    string
}

// ErrNotFound is returned by ReceiveAuthorizationCode when its default
// path yields no ticket: the handle's cache entry is missing, already
// consumed, or expired (§4.8's "absent/expired" case), or the stored blob
// fails to unprotect or decode.
var ErrNotFound = errors.New("receiver: credential not found or already used")

// ErrInvalidCredential is returned by the access, identity and refresh
// pipelines when deserialization/unprotection or JWS verification fails,
// and by every pipeline when a hook handles the stage without setting a
// Ticket.
var ErrInvalidCredential = errors.New("receiver: credential invalid or tampered")

// rejectionError turns a hook's Rejection triple into a Go error.
func rejectionError(r *hooks.Rejection) error {
	if r == nil {
		return errors.New("receiver: rejected")
	}
	return fmt.Errorf("receiver: rejected (%s): %s", r.Error, r.Description)
}

// deserializeOpaque runs the DataFormat default deserializer (§4.8 step
// "default = unprotect + deserialize"), returning ok=false on any failure
// without distinguishing the cause (tamper and corruption look the same
// to the caller, matching C3's own Unprotect contract).
func deserializeOpaque(format dataformat.Format, blob string) (*ticket.Ticket, bool) {
	raw, ok := format.Unprotect(blob)
	if !ok {
		return nil, false
	}
	t, err := ticket.Deserialize(raw)
	if err != nil {
		return nil, false
	}
	return t, true
}
