package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rejectingProvider rejects the CreateAccessToken stage when the
// context's Kind equals rejectKind and leaves every other stage at
// Default (by embedding NoopProvider).
type rejectingProvider struct {
	NoopProvider
	rejectKind CredentialKind
}

func (p rejectingProvider) CreateAccessToken(ctx *IssueContext) {
	if ctx.Kind == p.rejectKind {
		ctx.Reject(Rejection{Error: "access_denied", Description: "no thanks"})
	}
}

func TestDispatchIssueClassifiesRejection(t *testing.T) {
	bus := New(rejectingProvider{rejectKind: KindAccess})
	ctx := &IssueContext{Kind: KindAccess, Response: &IssueResponse{}}

	outcome := bus.DispatchIssue(ctx)

	require.Equal(t, Rejected, outcome.Kind)
	assert.Equal(t, "access_denied", outcome.Err.Error)
}

func TestDispatchIssueDefaultPassesThrough(t *testing.T) {
	bus := New(NoopProvider{})
	ctx := &IssueContext{Kind: KindCode, Response: &IssueResponse{}}

	outcome := bus.DispatchIssue(ctx)

	assert.Equal(t, Default, outcome.Kind)
}

// handledCredentialProvider leaves Response.Credential set without ever
// calling Handle explicitly, exercising IssueContext.Classify's
// issuance-only promotion rule.
type handledCredentialProvider struct {
	NoopProvider
}

func (handledCredentialProvider) CreateRefreshToken(ctx *IssueContext) {
	ctx.Response.Credential = "rt-minted-by-hook"
}

func TestIssueContextClassifyPromotesResponseCredential(t *testing.T) {
	bus := New(handledCredentialProvider{})
	ctx := &IssueContext{Kind: KindRefresh, Response: &IssueResponse{}}

	outcome := bus.DispatchIssue(ctx)

	require.Equal(t, HandledResponse, outcome.Kind)
	assert.Equal(t, "rt-minted-by-hook", outcome.Value)
}

func TestDispatchLogoutResetsOutcomeBetweenStages(t *testing.T) {
	bus := New(NoopProvider{})
	ctx := &LogoutContext{}
	ctx.Reject(Rejection{Error: "stale", Description: "from a previous stage"})

	outcome := bus.DispatchLogout(StageValidate, ctx)

	assert.Equal(t, Default, outcome.Kind, "DispatchLogout must reset ctx's outcome before invoking the stage hook")
}

func TestReceiveContextClassifyHasNoIssuanceRule(t *testing.T) {
	bus := New(NoopProvider{})
	ctx := &ReceiveContext{Kind: KindAccess}

	outcome := bus.DispatchReceive(ctx)

	// Unlike IssueContext, ReceiveContext has no Response.Credential-style
	// promotion rule: a Default stage stays Default, full stop.
	assert.Equal(t, Default, outcome.Kind)
}
