// Package signer implements the Signer component (§4.4): an ordered list
// of signing credentials used to produce and validate RFC 7515 compact
// JWS credentials (access and identity tokens when a JWS handler is
// configured). Adapted from the teacher's HS256-only
// internal/auth/local_jwt.go and internal/middleware/auth.go's JWKS
// verification path, generalized to the ordered, multi-algorithm
// credential model the spec requires.
package signer

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// ErrNoCredentials is returned when a Signer has no signing credentials.
var ErrNoCredentials = errors.New("signer: no signing credentials configured")

// ErrIssuerMismatch is returned by ValidateJWS when the token's iss claim
// does not match the expected issuer.
var ErrIssuerMismatch = errors.New("signer: issuer mismatch")

// Credential binds a signing key to an algorithm and, optionally, a
// certificate and an explicit key identifier. The first credential in a
// Signer's list is always the active signer (§4.4).
type Credential struct {
	Algorithm    jose.SignatureAlgorithm
	PrivateKey   crypto.Signer // asymmetric private key; nil for symmetric algs
	SymmetricKey []byte        // HMAC key; nil for asymmetric algs
	Certificate  *x509.Certificate
	KeyID        string // explicit kid override, highest priority
}

func (c Credential) signingKey() (jose.SigningKey, error) {
	switch {
	case c.SymmetricKey != nil:
		return jose.SigningKey{Algorithm: c.Algorithm, Key: c.SymmetricKey}, nil
	case c.PrivateKey != nil:
		return jose.SigningKey{Algorithm: c.Algorithm, Key: c.PrivateKey}, nil
	default:
		return jose.SigningKey{}, errors.New("signer: credential has no key material")
	}
}

func (c Credential) verificationKey() (any, error) {
	switch {
	case c.SymmetricKey != nil:
		return c.SymmetricKey, nil
	case c.PrivateKey != nil:
		return c.PrivateKey.Public(), nil
	default:
		return nil, errors.New("signer: credential has no key material")
	}
}

// Signer holds an ordered, atomically-swappable list of signing
// credentials. Rotation (§5, §9) replaces the whole list in one atomic
// store, so no lock is ever held across a hook dispatch or sign/verify
// call.
type Signer struct {
	creds atomic.Pointer[[]Credential]
	// Issuer is stamped into every JWS's iss claim and checked on validate.
	Issuer string
}

// New constructs a Signer from an ordered credential list; creds[0] is
// the active signer.
func New(issuer string, creds []Credential) (*Signer, error) {
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}
	s := &Signer{Issuer: issuer}
	cp := append([]Credential(nil), creds...)
	s.creds.Store(&cp)
	return s, nil
}

// Rotate atomically replaces the credential list.
func (s *Signer) Rotate(creds []Credential) error {
	if len(creds) == 0 {
		return ErrNoCredentials
	}
	cp := append([]Credential(nil), creds...)
	s.creds.Store(&cp)
	return nil
}

// Active returns the current first (active) credential.
func (s *Signer) Active() (Credential, error) {
	list := s.creds.Load()
	if list == nil || len(*list) == 0 {
		return Credential{}, ErrNoCredentials
	}
	return (*list)[0], nil
}

// credentialByKeyID finds a credential to verify with, by kid derived
// from each configured credential — mirrors the JWKS-selection role a
// relying party plays against a published key set (§4.4).
func (s *Signer) credentialByKeyID(kid string) (Credential, bool) {
	list := s.creds.Load()
	if list == nil {
		return Credential{}, false
	}
	for _, c := range *list {
		derivedKID, _ := DeriveKeyID(c)
		if kid == "" || derivedKID == kid {
			return c, true
		}
	}
	return Credential{}, false
}

// IssueParams carries everything IssueJWS needs beyond the active
// credential.
type IssueParams struct {
	Subject     string
	Audience    []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	ExtraClaims map[string]any // identity claims + nonce/c_hash/at_hash etc.
}

// IssueJWS builds and signs a compact JWS per §4.4 steps 1-4. Audience
// shaping (bare string vs array) is handled natively by jwt.Audience's
// own marshaling, resolving the spec's "brittle post-edit workaround"
// open question (see DESIGN.md) rather than re-implementing it.
func (s *Signer) IssueJWS(p IssueParams) (string, error) {
	cred, err := s.Active()
	if err != nil {
		return "", err
	}

	key, err := cred.signingKey()
	if err != nil {
		return "", err
	}

	kid, x5t := DeriveKeyID(cred)
	opts := (&jose.SignerOptions{}).WithType("JWT")
	if kid != "" {
		opts = opts.WithHeader("kid", kid)
	}
	if x5t != "" {
		opts = opts.WithHeader("x5t", x5t)
	}

	jwsSigner, err := jose.NewSigner(key, opts)
	if err != nil {
		return "", fmt.Errorf("signer: new signer: %w", err)
	}

	std := jwt.Claims{
		Issuer:    s.Issuer,
		Subject:   p.Subject,
		Audience:  jwt.Audience(p.Audience),
		IssuedAt:  jwt.NewNumericDate(p.IssuedAt),
		Expiry:    jwt.NewNumericDate(p.ExpiresAt),
		NotBefore: jwt.NewNumericDate(p.IssuedAt),
	}

	builder := jwt.Signed(jwsSigner).Claims(std)
	if len(p.ExtraClaims) > 0 {
		builder = builder.Claims(p.ExtraClaims)
	}

	token, err := builder.Serialize()
	if err != nil {
		return "", fmt.Errorf("signer: serialize: %w", err)
	}
	return token, nil
}

// ValidResult is what ValidateJWS returns on success: the decoded
// claims and the token's validity window, per §4.4's "Receiver" rules.
type ValidResult struct {
	Claims    map[string]any
	Subject   string
	Audience  []string
	ValidFrom time.Time
	ValidTo   time.Time
}

// ValidateJWS verifies a compact JWS's signature against the configured
// credentials, checks issuer match, and deliberately skips audience and
// lifetime checks — those are the caller's responsibility (§4.8 step 4).
func (s *Signer) ValidateJWS(token string) (*ValidResult, error) {
	algs := s.supportedAlgorithms()
	parsed, err := jwt.ParseSigned(token, algs)
	if err != nil {
		return nil, fmt.Errorf("signer: parse: %w", err)
	}

	var headerKID string
	if len(parsed.Headers) > 0 {
		headerKID = parsed.Headers[0].KeyID
	}
	cred, ok := s.credentialByKeyID(headerKID)
	if !ok {
		return nil, errors.New("signer: no matching verification credential")
	}

	verKey, err := cred.verificationKey()
	if err != nil {
		return nil, err
	}

	var std jwt.Claims
	raw := map[string]any{}
	if err := parsed.Claims(verKey, &std, &raw); err != nil {
		return nil, fmt.Errorf("signer: signature verification failed: %w", err)
	}

	if std.Issuer != s.Issuer {
		return nil, ErrIssuerMismatch
	}

	result := &ValidResult{
		Claims:   raw,
		Subject:  std.Subject,
		Audience: []string(std.Audience),
	}
	if std.NotBefore != nil {
		result.ValidFrom = std.NotBefore.Time()
	} else if std.IssuedAt != nil {
		result.ValidFrom = std.IssuedAt.Time()
	}
	if std.Expiry != nil {
		result.ValidTo = std.Expiry.Time()
	}
	return result, nil
}

func (s *Signer) supportedAlgorithms() []jose.SignatureAlgorithm {
	list := s.creds.Load()
	if list == nil {
		return nil
	}
	seen := make(map[jose.SignatureAlgorithm]struct{})
	var algs []jose.SignatureAlgorithm
	for _, c := range *list {
		if _, ok := seen[c.Algorithm]; ok {
			continue
		}
		seen[c.Algorithm] = struct{}{}
		algs = append(algs, c.Algorithm)
	}
	return algs
}
