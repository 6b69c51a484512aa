package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/TheManchineel/titilda-music/core/auth"
	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"
)

const maxCredentialLength = 256

type contextKey int

const userContextKey contextKey = iota

// SignupRequest is the body of POST /api/signup.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

func validCredentialField(s string) bool {
	return strings.TrimSpace(s) != "" && len(s) <= maxCredentialLength
}

// SignupHandler creates an account.
func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validCredentialField(req.Username) || !validCredentialField(req.Password) || !validCredentialField(req.FullName) {
		writeError(w, http.StatusBadRequest, "Username, password and full name are required")
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			logger.Warn("[Signup] username already taken", logger.String("username", req.Username))
			writeError(w, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, auth.ErrPasswordTooLong):
			writeError(w, http.StatusBadRequest, "Password is too long")
		default:
			writeDomainError(w, "[Signup]", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{Username: user.Username, FullName: user.FullName})
}

// LoginHandler exchanges credentials for a session token.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.auth.ValidateCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, "[Login]", err)
		return
	}
	if user == nil {
		logger.Warn("[Login] invalid credentials", logger.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, expiresAt, err := h.auth.IssueSession(user)
	if err != nil {
		writeDomainError(w, "[Login]", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.auth.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logger.Info("[Login] login succeeded", logger.String("username", user.Username))
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *APIHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// LogoutHandler drops the session cookie. The token itself stays valid
// until it expires or the user revokes all sessions.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// MeHandler returns the authenticated user.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, UserResponse{Username: user.Username, FullName: user.FullName})
}

// RevokeSessionsHandler invalidates every token of the user, the one used
// for this request included.
func (h *APIHandler) RevokeSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.auth.RevokeAllSessions(r.Context(), user); err != nil {
		writeDomainError(w, "[Sessions]", err)
		return
	}
	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requestToken reads the bearer token, falling back to the session cookie.
func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware resolves the request's token to a user and stores it in
// the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, msgInvalidToken)
			return
		}

		user, err := h.auth.Validate(r.Context(), token)
		if err != nil {
			writeDomainError(w, "[Auth]", err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// UserFromContext returns the user stored by AuthMiddleware.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}
