package issuer

import (
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jermoo/tokencore/internal/cache"
	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/clock"
	"github.com/jermoo/tokencore/internal/dataformat"
	"github.com/jermoo/tokencore/internal/hooks"
	"github.com/jermoo/tokencore/internal/signer"
	"github.com/jermoo/tokencore/internal/ticket"
)

func testFormat(t *testing.T) dataformat.Format {
	t.Helper()
	f, err := dataformat.NewAEADFormat([]byte("01234567890123456789012345678901"))
	require.NoError(t, err)
	return f
}

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	s, err := signer.New("https://tokencore.test", []signer.Credential{{
		Algorithm:    jose.HS256,
		SymmetricKey: []byte("01234567890123456789012345678901"),
		KeyID:        "kid-1",
	}})
	require.NoError(t, err)
	return s
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Clock: clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Lifetimes: Lifetimes{
			AuthorizationCode: time.Minute,
			AccessToken:       time.Hour,
			IdentityToken:     time.Hour,
			RefreshToken:      24 * time.Hour,
		},
		CodeFormat:    testFormat(t),
		AccessFormat:  testFormat(t),
		RefreshFormat: testFormat(t),
		Cache:         cache.NewMemory(time.Hour),
		Bus:           hooks.New(hooks.NoopProvider{}),
	}
}

func testIdentity() *claims.Identity {
	return claims.NewIdentity(
		claims.NewClaim(claims.TypeSubject, "user-1"),
		claims.NewClaim("role", "admin").WithDestination(claims.DestinationAccessToken),
		claims.NewClaim("email", "user@example.com").WithDestination(claims.DestinationIdentityToken),
	)
}

func TestIssueAuthorizationCodeStoresInCacheAndReturnsHandle(t *testing.T) {
	cfg := testConfig(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{Nonce: "n-1"})
	code, err := iss.IssueAuthorizationCode(ti, Request{ClientID: "client-1", GrantType: "authorization_code"})
	require.NoError(t, err)
	require.NotEmpty(t, code)

	// The code is the cache handle: taking it back must yield a blob.
	_, ok := cfg.Cache.Take(code)
	assert.True(t, ok)
}

func TestIssueAuthorizationCodeRejectedByHook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bus = hooks.New(rejectEverythingProvider{})
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	_, err := iss.IssueAuthorizationCode(ti, Request{ClientID: "client-1"})
	assert.Error(t, err)
}

func TestIssueAuthorizationCodeSkippedByHookReturnsNoError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bus = hooks.New(skipEverythingProvider{})
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	code, err := iss.IssueAuthorizationCode(ti, Request{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestIssueAccessTokenOpaqueWhenNoHandlerConfigured(t *testing.T) {
	cfg := testConfig(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{Resources: []string{"api://one"}})
	token, err := iss.IssueAccessToken(ti, Request{ClientID: "client-1", Resources: []string{"api://two"}})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// It must be an opaque handle, not a JWS (no two dots).
	assert.NotRegexp(t, `^[^.]+\.[^.]+\.[^.]+$`, token)
}

func TestIssueAccessTokenJWSSigningFailureYieldsNullCredentialNotError(t *testing.T) {
	cfg := testConfig(t)
	// A credential with no key material makes every signing attempt fail,
	// simulating a SerializationFailed condition (§7): it must be caught
	// and warned, not propagated.
	brokenSigner, err := signer.New("https://tokencore.test", []signer.Credential{{Algorithm: jose.HS256}})
	require.NoError(t, err)
	cfg.AccessTokenHandler = brokenSigner
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	token, err := iss.IssueAccessToken(ti, Request{ClientID: "client-1"})
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestIssueAccessTokenJWSWhenHandlerConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.AccessTokenHandler = testSigner(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	token, err := iss.IssueAccessToken(ti, Request{ClientID: "client-1"})
	require.NoError(t, err)

	result, err := cfg.AccessTokenHandler.ValidateJWS(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", result.Subject)
	// Only the role claim (destined for token) should have survived the
	// access-token filter; email (destined for id_token) must not.
	assert.Equal(t, "admin", result.Claims["role"])
	_, hasEmail := result.Claims["email"]
	assert.False(t, hasEmail)
}

func TestIssueAccessTokenAudienceIsUnionOfRequestAndTicketResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.AccessTokenHandler = testSigner(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{Resources: []string{"api://one"}})
	token, err := iss.IssueAccessToken(ti, Request{ClientID: "client-1", Resources: []string{"api://two", "api://one"}})
	require.NoError(t, err)

	result, err := cfg.AccessTokenHandler.ValidateJWS(token)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"api://two", "api://one"}, result.Audience)
}

func TestIssueIdentityTokenRequiresHandler(t *testing.T) {
	cfg := testConfig(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	_, err := iss.IssueIdentityToken(ti, Request{ClientID: "client-1"}, Response{})
	assert.ErrorIs(t, err, ErrIdentityTokenHandlerRequired)
}

func TestIssueIdentityTokenRequiresSubject(t *testing.T) {
	cfg := testConfig(t)
	cfg.IdentityTokenHandler = testSigner(t)
	iss := New(cfg)

	// No sub, no NameIdentifier.
	identity := claims.NewIdentity(claims.NewClaim("email", "x@example.com").WithDestination(claims.DestinationIdentityToken))
	ti := ticket.New(identity, &ticket.Properties{})

	_, err := iss.IssueIdentityToken(ti, Request{ClientID: "client-1"}, Response{})
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestIssueIdentityTokenJWSSigningFailureYieldsNullCredentialNotError(t *testing.T) {
	cfg := testConfig(t)
	brokenSigner, err := signer.New("https://tokencore.test", []signer.Credential{{Algorithm: jose.HS256}})
	require.NoError(t, err)
	cfg.IdentityTokenHandler = brokenSigner
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	token, err := iss.IssueIdentityToken(ti, Request{ClientID: "client-1"}, Response{})
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestIssueIdentityTokenNonceFromPropertiesOnAuthorizationCodeGrant(t *testing.T) {
	cfg := testConfig(t)
	cfg.IdentityTokenHandler = testSigner(t)
	iss := New(cfg)

	// properties.nonce was set at authorization time; req.Nonce simulates
	// a (wrong) value arriving on the token request itself, which must be
	// ignored on the authorization_code grant (P5).
	ti := ticket.New(testIdentity(), &ticket.Properties{Nonce: "original-nonce"})
	token, err := iss.IssueIdentityToken(ti, Request{ClientID: "client-1", GrantType: "authorization_code", Nonce: "request-nonce"}, Response{})
	require.NoError(t, err)

	result, err := cfg.IdentityTokenHandler.ValidateJWS(token)
	require.NoError(t, err)
	assert.Equal(t, "original-nonce", result.Claims["nonce"])
}

func TestIssueIdentityTokenNonceFromRequestOnOtherGrants(t *testing.T) {
	cfg := testConfig(t)
	cfg.IdentityTokenHandler = testSigner(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{Nonce: "stale-nonce"})
	token, err := iss.IssueIdentityToken(ti, Request{ClientID: "client-1", GrantType: "refresh_token", Nonce: "fresh-nonce"}, Response{})
	require.NoError(t, err)

	result, err := cfg.IdentityTokenHandler.ValidateJWS(token)
	require.NoError(t, err)
	_, hasNonce := result.Claims["nonce"]
	if hasNonce {
		assert.Equal(t, "fresh-nonce", result.Claims["nonce"])
	}
}

func TestIssueIdentityTokenAttachesCHashAndAtHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.IdentityTokenHandler = testSigner(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	token, err := iss.IssueIdentityToken(ti, Request{ClientID: "client-1"}, Response{Code: "the-code", AccessToken: "the-access-token"})
	require.NoError(t, err)

	result, err := cfg.IdentityTokenHandler.ValidateJWS(token)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Claims["c_hash"])
	assert.NotEmpty(t, result.Claims["at_hash"])
}

func TestIssueRefreshTokenOpaque(t *testing.T) {
	cfg := testConfig(t)
	iss := New(cfg)

	ti := ticket.New(testIdentity(), &ticket.Properties{})
	token, err := iss.IssueRefreshToken(ti, Request{ClientID: "client-1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestUnionAudienceDedupesPreservingFirstSeenOrder(t *testing.T) {
	out := unionAudience([]string{"a", "b", "a"}, []string{"b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestClaimsToExtraFlattensRepeatedClaimTypesToArray(t *testing.T) {
	identity := claims.NewIdentity(
		claims.NewClaim(claims.TypeSubject, "user-1"),
		claims.NewClaim("role", "admin"),
		claims.NewClaim("role", "editor"),
	)
	extra := claimsToExtra(identity)
	assert.Equal(t, []string{"admin", "editor"}, extra["role"])
	_, hasSub := extra[claims.TypeSubject]
	assert.False(t, hasSub, "sub is carried by the JWT standard claim, not duplicated into extra")
}

func TestClaimsToExtraNestsActorChain(t *testing.T) {
	actor := claims.NewIdentity(claims.NewClaim(claims.TypeSubject, "service-1"))
	identity := &claims.Identity{
		Claims: []claims.Claim{claims.NewClaim(claims.TypeSubject, "user-1")},
		Actor:  actor,
	}
	extra := claimsToExtra(identity)
	act, ok := extra["act"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "service-1", act[claims.TypeSubject])
}

// rejectEverythingProvider rejects every Create* hook.
type rejectEverythingProvider struct{ hooks.NoopProvider }

func (rejectEverythingProvider) CreateAuthorizationCode(ctx *hooks.IssueContext) {
	ctx.Reject(hooks.Rejection{Error: "access_denied", Description: "no"})
}

// skipEverythingProvider skips every Create* hook.
type skipEverythingProvider struct{ hooks.NoopProvider }

func (skipEverythingProvider) CreateAuthorizationCode(ctx *hooks.IssueContext) {
	ctx.Skip()
}
