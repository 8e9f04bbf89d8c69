// Package logout implements the logout pipeline (C9, §4.9): a small
// Parse -> Extract -> Validate -> Handle -> Apply state machine that
// dispatches each non-Parse stage through the HookBus, falling back to a
// built-in redirect-or-error-page behavior at Apply.
package logout

import (
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jermoo/tokencore/internal/hooks"
)

// Config wires the Pipeline's collaborators.
type Config struct {
	Bus *hooks.Bus
	// ApplicationCanDisplayErrors mirrors the host config flag of the
	// same name (§6): when true, Apply leaves error rendering to the
	// caller instead of emitting the built-in page.
	ApplicationCanDisplayErrors bool
}

// Pipeline runs logout requests through Config.Bus.
type Pipeline struct {
	cfg Config
}

// New constructs a Pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Result is the pipeline's terminal instruction to the HTTP layer: either
// a redirect, a rendered body, or "nothing more to do".
type Result struct {
	// Handled is true once the pipeline (or a hook) has fully disposed
	// of the request; false means the host must still act itself: a hook
	// returned Skipped and the pipeline was abandoned, or Err is set and
	// ApplicationCanDisplayErrors is true so the host renders the error.
	Handled     bool
	StatusCode  int
	RedirectURL string
	Body        []byte
	ContentType string
	Err         *hooks.Rejection
}

var invalidRequest = &hooks.Rejection{
	Error:       "invalid_request",
	Description: "the logout request must be a GET with query parameters or a POST with an application/x-www-form-urlencoded body",
}

// Run executes the full state machine against an inbound HTTP request.
func (p *Pipeline) Run(r *http.Request) (*Result, error) {
	ctx := &hooks.LogoutContext{
		ApplicationCanDisplayErrors: p.cfg.ApplicationCanDisplayErrors,
	}

	if !parse(r, ctx) {
		return p.apply(ctx)
	}

	for _, stage := range []hooks.LogoutStage{hooks.StageExtract, hooks.StageValidate, hooks.StageHandle} {
		outcome := p.cfg.Bus.DispatchLogout(stage, ctx)
		switch outcome.Kind {
		case hooks.HandledResponse:
			return &Result{Handled: true}, nil
		case hooks.Skipped:
			// Abandons the pipeline entirely (§4.5/§4.9): no Apply, no
			// result, the host proceeds as if this middleware weren't here.
			return &Result{Handled: false}, nil
		case hooks.Rejected:
			ctx.Err = outcome.Err
			return p.apply(ctx)
		}
		// Default means "no override here", move on to the next stage.
	}
	return p.apply(ctx)
}

// parse implements the Parse state: GET query or form-urlencoded POST
// body, merged into a flat string map. Any other shape sets ctx.Err and
// returns false so Run jumps straight to Apply.
func parse(r *http.Request, ctx *hooks.LogoutContext) bool {
	switch r.Method {
	case http.MethodGet:
		ctx.Request = &hooks.LogoutRequest{Method: r.Method, Params: squash(r.URL.Query())}
		return true
	case http.MethodPost:
		if !isFormEncoded(r.Header.Get("Content-Type")) {
			ctx.Request = &hooks.LogoutRequest{Method: r.Method}
			ctx.Err = invalidRequest
			return false
		}
		if err := r.ParseForm(); err != nil {
			ctx.Request = &hooks.LogoutRequest{Method: r.Method}
			ctx.Err = invalidRequest
			return false
		}
		ctx.Request = &hooks.LogoutRequest{Method: r.Method, Params: squash(r.PostForm)}
		return true
	default:
		ctx.Request = &hooks.LogoutRequest{Method: r.Method}
		ctx.Err = invalidRequest
		return false
	}
}

// isFormEncoded checks the content-type ignoring any charset/other
// parameters, case-insensitively, per §4.9's Parse transition.
func isFormEncoded(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, "application/x-www-form-urlencoded")
}

// squash takes the first value for each query/form key, matching the
// "merged query or form values" shape of hooks.LogoutRequest.Params.
func squash(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// apply implements the Apply state (§4.9): it always dispatches
// ApplyLogoutResponse first, then falls back to the built-in
// error-page/redirect/no-op behavior on Default.
func (p *Pipeline) apply(ctx *hooks.LogoutContext) (*Result, error) {
	if ctx.Response == nil {
		ctx.Response = &hooks.LogoutResponse{Params: map[string]any{}}
	}

	outcome := p.cfg.Bus.DispatchLogout(hooks.StageApply, ctx)
	switch outcome.Kind {
	case hooks.HandledResponse:
		return &Result{Handled: true}, nil
	case hooks.Skipped:
		return &Result{Handled: false}, nil
	case hooks.Rejected:
		ctx.Err = outcome.Err
	}

	if ctx.Err != nil {
		if ctx.ApplicationCanDisplayErrors {
			return &Result{Handled: false, StatusCode: http.StatusBadRequest, Err: ctx.Err}, nil
		}
		return &Result{
			Handled:     true,
			StatusCode:  http.StatusBadRequest,
			Body:        renderErrorPage(ctx.Err),
			ContentType: "text/html; charset=utf-8",
		}, nil
	}

	if ctx.Response.PostLogoutRedirectURI == "" {
		return &Result{Handled: true}, nil
	}

	u, err := url.Parse(ctx.Response.PostLogoutRedirectURI)
	if err != nil {
		log.Warn().Err(err).Msg("logout: invalid post_logout_redirect_uri, dropping redirect")
		return &Result{Handled: true}, nil
	}

	q := u.Query()
	for k, v := range ctx.Response.Params {
		if k == "post_logout_redirect_uri" {
			continue
		}
		s, ok := v.(string)
		if !ok {
			log.Warn().Str("param", k).Msg("logout: non-scalar response parameter dropped from redirect")
			continue
		}
		q.Set(k, s)
	}
	u.RawQuery = q.Encode()

	return &Result{Handled: true, RedirectURL: u.String()}, nil
}
