package main

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jermoo/tokencore/internal/claims"
	"github.com/jermoo/tokencore/internal/issuer"
	"github.com/jermoo/tokencore/internal/logout"
	"github.com/jermoo/tokencore/internal/receiver"
	"github.com/jermoo/tokencore/internal/ticket"
)

// api bundles the three pipelines a token-endpoint-shaped HTTP surface
// needs; its methods are chi handlers.
type api struct {
	issuer   *issuer.Issuer
	receiver *receiver.Receiver
	logout   *logout.Pipeline
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("tokencored: failed to encode response")
	}
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

// handleAuthorize is a stand-in for a full authorization endpoint: this
// core has no UI/consent component (out of scope, §1), so the demo
// trusts the caller's `sub` query parameter directly and mints a code
// for it. A real deployment puts a login/consent screen in front of
// this call.
func (a *api) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub := q.Get("sub")
	clientID := q.Get("client_id")
	if sub == "" || clientID == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "sub and client_id are required")
		return
	}

	identity := claims.NewIdentity(claims.NewClaim(claims.TypeSubject, sub))
	if role := q.Get("role"); role != "" {
		identity = identity.AddClaim(claims.NewClaim("role", role).WithDestination(claims.DestinationAccessToken))
	}
	if email := q.Get("email"); email != "" {
		identity = identity.AddClaim(claims.NewClaim("email", email).WithDestination(claims.DestinationIdentityToken))
	}

	t := ticket.New(identity, &ticket.Properties{Nonce: q.Get("nonce")})

	code, err := a.issuer.IssueAuthorizationCode(t, issuer.Request{
		ClientID:  clientID,
		GrantType: "authorization_code",
		Nonce:     q.Get("nonce"),
	})
	if err != nil {
		log.Error().Err(err).Msg("tokencored: authorization code issuance failed")
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue authorization code")
		return
	}
	if code == "" {
		writeOAuthError(w, http.StatusBadRequest, "access_denied", "authorization code issuance was declined")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

// handleToken implements a minimal token endpoint over the authorization_code
// and refresh_token grants, exercising the full issue/receive round trip.
func (a *api) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	grantType := r.PostForm.Get("grant_type")
	clientID := r.PostForm.Get("client_id")

	var (
		t   *ticket.Ticket
		err error
	)
	switch grantType {
	case "authorization_code":
		code := r.PostForm.Get("code")
		t, err = a.receiver.ReceiveAuthorizationCode(receiver.Request{GrantType: grantType, Handle: code})
		if err == nil && t != nil {
			a.mintAndRespond(w, t, issuer.Request{ClientID: clientID, GrantType: grantType}, code)
			return
		}
	case "refresh_token":
		rt := r.PostForm.Get("refresh_token")
		t, err = a.receiver.ReceiveRefreshToken(receiver.Request{GrantType: grantType, Handle: rt})
		if err == nil && t != nil {
			a.mintAndRespond(w, t, issuer.Request{ClientID: clientID, GrantType: grantType}, "")
			return
		}
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", grantType)
		return
	}

	if err != nil {
		log.Warn().Err(err).Str("grant_type", grantType).Msg("tokencored: token redemption rejected")
	}
	writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "the credential is invalid, expired, or already used")
}

// mintAndRespond issues access, identity (when configured), and refresh
// credentials from a redeemed ticket, then writes the token response.
func (a *api) mintAndRespond(w http.ResponseWriter, t *ticket.Ticket, req issuer.Request, originalCode string) {
	resp := issuer.Response{Code: originalCode}

	accessToken, err := a.issuer.IssueAccessToken(t, req)
	if err != nil {
		log.Error().Err(err).Msg("tokencored: access token issuance failed")
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue access token")
		return
	}
	resp.AccessToken = accessToken

	body := map[string]string{
		"access_token": accessToken,
		"token_type":   "Bearer",
	}

	idToken, err := a.issuer.IssueIdentityToken(t, req, resp)
	switch {
	case err == issuer.ErrIdentityTokenHandlerRequired:
		// No identity token handler configured; access-token-only deployment.
	case err != nil:
		log.Error().Err(err).Msg("tokencored: identity token issuance failed")
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue identity token")
		return
	default:
		body["id_token"] = idToken
	}

	refreshToken, err := a.issuer.IssueRefreshToken(t, req)
	if err != nil {
		log.Error().Err(err).Msg("tokencored: refresh token issuance failed")
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to issue refresh token")
		return
	}
	if refreshToken != "" {
		body["refresh_token"] = refreshToken
	}

	writeJSON(w, http.StatusOK, body)
}

// handleLogout runs the logout pipeline and executes its Result against
// the live ResponseWriter.
func (a *api) handleLogout(w http.ResponseWriter, r *http.Request) {
	result, err := a.logout.Run(r)
	if err != nil {
		log.Error().Err(err).Msg("tokencored: logout pipeline error")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch {
	case result.RedirectURL != "":
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	case len(result.Body) > 0:
		if result.ContentType != "" {
			w.Header().Set("Content-Type", result.ContentType)
		}
		status := result.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(result.Body)
	case result.Err != nil:
		writeOAuthError(w, http.StatusBadRequest, result.Err.Error, result.Err.Description)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
