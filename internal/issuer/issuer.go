// Package issuer implements the four issue pipelines (C7, §4.6): an
// authorization code, an access token, an identity token, and a refresh
// token, sharing the stamp -> filter -> dispatch -> serialize template.
package issuer

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jermoo/tokencore/internal/cache"
	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/clock"
	"github.com/jermoo/tokencore/internal/dataformat"
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/signer"
	"github.com/jermoo/tokencore/internal/ticket"
)

// ErrMissingSubject is raised as a hard failure (§7) when an identity
// token would be issued with neither `sub` nor `NameIdentifier` present.
var ErrMissingSubject = errors.New("issuer: identity token requires sub or NameIdentifier")

// ErrIdentityTokenHandlerRequired is returned when IssueIdentityToken is
// called without a configured IdentityTokenHandler; unlike access tokens,
// identity tokens have no opaque fallback (§4.4, §4.6).
var ErrIdentityTokenHandlerRequired = errors.New("issuer: identity token requires IdentityTokenHandler")

// Lifetimes holds the per-kind default lifetimes (§4.7). Exact values
// are a configuration concern; the Issuer only requires each to be set
// independently.
type Lifetimes struct {
	AuthorizationCode time.Duration
	AccessToken       time.Duration
	IdentityToken     time.Duration
	RefreshToken      time.Duration
}

// Config wires the Issuer's collaborators, matching the "Configuration
// surface" of spec §6.
type Config struct {
	Clock     clock.Clock
	Lifetimes Lifetimes

	CodeFormat    dataformat.Format
	AccessFormat  dataformat.Format // used when AccessTokenHandler is nil (opaque)
	RefreshFormat dataformat.Format

	AccessTokenHandler   *signer.Signer // non-nil => access tokens are JWS
	IdentityTokenHandler *signer.Signer // non-nil => identity tokens are JWS (required for id tokens)

	Cache cache.Store
	Bus   *hooks.Bus
}

// Issuer implements the four issue pipelines against a shared Config.
type Issuer struct {
	cfg Config
}

// New constructs an Issuer.
func New(cfg Config) *Issuer {
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &Issuer{cfg: cfg}
}

// Request carries the inbound token/authorize request fields the
// issuance pipelines need (§4.6 "Kind-specific behavior").
type Request struct {
	ClientID  string
	GrantType string
	Nonce     string // request.nonce, used for id tokens outside the authorization_code grant
	Resources []string
}

// Response accumulates the credentials minted so far in a single
// token-endpoint call, so identity-token issuance can read
// response.code / response.access_token for hash-claim derivation (I5).
type Response struct {
	Code          string
	AccessToken   string
	IdentityToken string
	RefreshToken  string
}

// stampLifetimes applies I1: issued_at defaults to now, expires_at
// defaults to issued_at + lifetime, only when the caller left them unset.
func stampLifetimes(p *ticket.Properties, now time.Time, lifetime time.Duration) {
	if p.IssuedAt == nil {
		t := now
		p.IssuedAt = &t
	}
	if p.ExpiresAt == nil {
		t := p.IssuedAt.Add(lifetime)
		p.ExpiresAt = &t
	}
}

// stampTrackingID tags a ticket with a unique id the first time it's
// issued, preserved verbatim through serialization so every credential
// minted from this ticket (including later refresh-driven reissues)
// shares one audit trail, matching the teacher's habit of stamping every
// JWT with a fresh uuid (internal/auth/local_jwt.go's `ID: uuid.New()`).
func stampTrackingID(p *ticket.Properties) {
	if p.Extra == nil {
		p.Extra = map[string]any{}
	}
	if _, ok := p.Extra["jti"]; !ok {
		p.Extra["jti"] = newTrackingID()
	}
}

// filterForAccessOrID applies the §4.1 filter policy for a self-contained
// credential kind, then enforces I2/I3 (sub present, no duplicate
// NameIdentifier). requireSubject turns a missing subject into an error
// instead of silently proceeding (identity tokens only, §4.6).
func filterForAccessOrID(identity *claims.Identity, kind claims.Kind, requireSubject bool) (*claims.Identity, error) {
	filtered := identity.CloneWithFilter(claims.FilterForKind(kind))
	normalized, hasSubject := filtered.NormalizeSubject()
	if requireSubject && !hasSubject {
		return nil, ErrMissingSubject
	}
	return normalized, nil
}

// randomHandle returns a 256-bit random value, base64url-encoded, per
// §4.6's "key is 256 random bits, base64-url encoded" — adapted from
// the teacher's GenerateInviteToken (internal/storage/invite_tokens.go),
// switched from hex to base64url per §3's wire-format note.
func randomHandle() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("issuer: generate random handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// newTrackingID tags a minted credential with a unique id for audit/
// revocation purposes, matching the teacher's habit of stamping every
// JWT with a fresh uuid (internal/auth/local_jwt.go's `ID: uuid.New()`).
func newTrackingID() string {
	return uuid.NewString()
}

// rejectionError turns a hook's Rejection triple into a Go error for
// callers that don't need the wire-level error/description/uri split.
func rejectionError(r *hooks.Rejection) error {
	if r == nil {
		return errors.New("issuer: rejected")
	}
	return fmt.Errorf("issuer: rejected (%s): %s", r.Error, r.Description)
}

// serializeOpaque runs the DataFormat default serializer (§4.6 step 5),
// catching any failure and logging it as a warning rather than
// propagating it (§7 SerializationFailed).
func serializeOpaque(format dataformat.Format, t *ticket.Ticket) (string, error) {
	payload, err := t.Serialize()
	if err != nil {
		log.Warn().Err(err).Msg("issuer: ticket serialization failed")
		return "", nil
	}
	handle, err := format.Protect(payload)
	if err != nil {
		log.Warn().Err(err).Msg("issuer: dataformat protect failed")
		return "", nil
	}
	return handle, nil
}
