package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/articles-api/internal/apperror"
	"github.com/sakif/articles-api/internal/auth"
	"github.com/sakif/articles-api/internal/service"
)

// AuthHandler manages registration, login and session cookies.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account, return an access token
//   - HandleLogin    → check credentials, return an access token
//   - HandleLogout   → clear the token cookie
//   - HandleMe       → return the currently logged-in user's profile
//
// Clients may send the token back either as "Authorization: Bearer <jwt>" or
// through the HttpOnly cookie set here; auth.RequireAuth accepts both.
type AuthHandler struct {
	auth      *service.AuthService
	cookieTTL time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieTTL should match the token
// lifetime so the cookie never outlives the JWT inside it.
func NewAuthHandler(authService *service.AuthService, cookieTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      authService,
		cookieTTL: cookieTTL,
		logger:    logger,
	}
}

// credentialsRequest is the body of both /auth/register and /auth/login.
type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

// tokenResponse is returned by register and login.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// HandleRegister creates a user account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username": "alice", "password": "..."}
// RESPONSE: 201 {"access_token": "<jwt>"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := bindJSON[credentialsRequest](w, r)
	if !ok {
		return
	}

	result, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: result.Token})
}

// HandleLogin exchanges credentials for an access token.
//
// HTTP: POST /auth/login
// RESPONSE: 200 {"access_token": "<jwt>"}, or 401 for any bad credential
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := bindJSON[credentialsRequest](w, r)
	if !ok {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: result.Token})
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless: one already handed out stays valid until it
// expires. Logout only stops the browser from sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), id)
	if err != nil {
		h.logger.Warn("HandleMe: user lookup failed",
			slog.Int64("userID", id.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie stores the JWT in an HttpOnly cookie.
// HttpOnly keeps it away from JavaScript; SameSite=Lax keeps it off
// cross-site POSTs.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
