package hooks

import "github.com/jermoo/tokencore/internal/ticket"

// CredentialKind identifies which of the four credentials a pipeline
// stage is operating on.
type CredentialKind string

const (
	KindCode    CredentialKind = "authorization_code"
	KindAccess  CredentialKind = "access_token"
	KindID      CredentialKind = "identity_token"
	KindRefresh CredentialKind = "refresh_token"
)

// IssueRequest carries the inbound parameters an issue pipeline needs;
// fields are a superset across the four kinds (e.g. Nonce only matters
// for identity tokens), matching the spec's single Provider-context
// shape per hook (§6).
type IssueRequest struct {
	GrantType string
	ClientID  string
	Nonce     string
}

// IssueResponse carries the outbound values other stages may need to
// see (e.g. the identity token hook reads Code/AccessToken to derive
// c_hash/at_hash, §4.6).
type IssueResponse struct {
	Code        string
	AccessToken string
	Credential  string // the output of this stage once produced
}

// IssueContext is the mutable context passed to every Create* hook.
// DefaultSerialize implements the stage's built-in serialization path
// (opaque DataFormat or Signer JWS); the Provider may call it itself to
// observe-then-pass-through, or ignore it and call Handle/Skip/Reject.
type IssueContext struct {
	base

	Kind             CredentialKind
	Request          IssueRequest
	Response         *IssueResponse
	Ticket           *ticket.Ticket
	DefaultSerialize func() (string, error)
}

// Classify applies §4.5's issuance-specific HandledResponse rule: a
// non-empty Response.Credential counts as HandledResponse even if the
// caller never called Handle explicitly.
func (c *IssueContext) Classify() Outcome {
	o := c.Outcome()
	if o.Kind != Default {
		return o
	}
	if c.Response != nil && c.Response.Credential != "" {
		return Outcome{Kind: HandledResponse, Value: c.Response.Credential}
	}
	return Outcome{Kind: Default}
}

// ReceiveRequest carries the inbound credential handle plus enough
// context (grant type) for the receiver pipeline's nonce/audience logic.
type ReceiveRequest struct {
	GrantType string
	Handle    string
}

// ReceiveContext is the mutable context passed to every Receive* hook.
type ReceiveContext struct {
	base

	Kind               CredentialKind
	Request            ReceiveRequest
	Ticket             *ticket.Ticket // set by DefaultDeserialize or the Provider
	DefaultDeserialize func() (*ticket.Ticket, bool)
}

// Classify is the plain four-way classification (no issuance-only rule).
func (c *ReceiveContext) Classify() Outcome {
	return c.Outcome()
}

// LogoutRequest is the parsed inbound logout request (§4.9 Parse state).
type LogoutRequest struct {
	Method string
	Params map[string]string // merged query or form values
}

// LogoutResponse accumulates the outbound response parameters; every
// entry except post_logout_redirect_uri is appended to the redirect
// query string by Apply. Params is map[string]any (not map[string]string)
// because a Provider may stash a non-scalar value here — Apply logs a
// warning and skips it rather than rejecting the whole response.
type LogoutResponse struct {
	Params                map[string]any
	PostLogoutRedirectURI string
}

// LogoutContext is the single mutable context threaded through
// Extract -> Validate -> Handle -> Apply (§4.9). The same struct is
// reused across stages (mirroring the source's single request-scoped
// object), with `base`'s outcome reset between stages by the pipeline.
type LogoutContext struct {
	base

	Request                     *LogoutRequest
	Response                    *LogoutResponse
	Err                         *Rejection
	ApplicationCanDisplayErrors bool
}
