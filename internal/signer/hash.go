package signer

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"hash"

	"github.com/go-jose/go-jose/v4"
)

// HashClaim derives the `c_hash`/`at_hash` left-half hash (§4.6, I5, P4):
// base64url(left_half(H(ascii(value)))), where H is the hash matched to
// the JWS algorithm and "left half" is the first len(H)/2 bytes.
func HashClaim(alg jose.SignatureAlgorithm, value string) (string, error) {
	h, err := hasherFor(alg)
	if err != nil {
		return "", err
	}
	h.Write([]byte(value))
	sum := h.Sum(nil)
	left := sum[:len(sum)/2]
	return base64.RawURLEncoding.EncodeToString(left), nil
}

func hasherFor(alg jose.SignatureAlgorithm) (hash.Hash, error) {
	switch alg {
	case jose.HS256, jose.RS256, jose.ES256, jose.PS256:
		return sha256.New(), nil
	case jose.HS384, jose.RS384, jose.ES384, jose.PS384:
		return sha512.New384(), nil
	case jose.HS512, jose.RS512, jose.ES512, jose.PS512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("signer: no hash claim mapping for algorithm %q", alg)
	}
}
