package main

import "github.com/jermoo/tokencore/internal/hooks"

// demoProvider is the wiring demo's Provider: it leaves every issue/
// receive hook at its Default behavior (embedding NoopProvider) and
// only overrides ApplyLogoutResponse, echoing the RP-initiated-logout
// parameters a real host would typically want forwarded to the redirect
// (state) and used as the redirect target (post_logout_redirect_uri).
type demoProvider struct {
	hooks.NoopProvider
}

func (demoProvider) ApplyLogoutResponse(ctx *hooks.LogoutContext) {
	if ctx.Request == nil {
		return
	}
	if ctx.Response == nil {
		ctx.Response = &hooks.LogoutResponse{Params: map[string]any{}}
	}
	if v, ok := ctx.Request.Params["post_logout_redirect_uri"]; ok {
		ctx.Response.PostLogoutRedirectURI = v
	}
	if v, ok := ctx.Request.Params["state"]; ok {
		ctx.Response.Params["state"] = v
	}
}
