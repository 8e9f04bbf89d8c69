package signer

import (
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// DeriveKeyID computes a credential's kid and x5t per §4.4's priority
// rules. These are identity-of-key decisions, not cryptography, and are
// kept as a pure function over Credential for straightforward unit
// testing, per the spec's own design note (§9).
func DeriveKeyID(c Credential) (kid string, x5t string) {
	if c.Certificate != nil {
		sum := sha1.Sum(c.Certificate.Raw)
		x5t = base64.RawURLEncoding.EncodeToString(sum[:])
	}

	switch {
	case c.KeyID != "":
		kid = c.KeyID
	case c.Certificate != nil:
		sum := sha1.Sum(c.Certificate.Raw)
		kid = strings.ToUpper(hex.EncodeToString(sum[:]))
	default:
		if rsaKey, ok := rsaPublicKey(c); ok {
			kid = rsaModulusFingerprint(rsaKey)
		}
	}
	return kid, x5t
}

func rsaPublicKey(c Credential) (*rsa.PublicKey, bool) {
	if c.PrivateKey == nil {
		return nil, false
	}
	pub, ok := c.PrivateKey.Public().(*rsa.PublicKey)
	return pub, ok
}

// rsaModulusFingerprint implements §4.4 rule 3: base64url(public modulus),
// truncated to the first 40 characters, uppercased.
func rsaModulusFingerprint(pub *rsa.PublicKey) string {
	encoded := base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
	if len(encoded) > 40 {
		encoded = encoded[:40]
	}
	return strings.ToUpper(encoded)
}
