package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"mitabo/internal/database"
	"mitabo/internal/logging"
	"mitabo/internal/metrics"
)

// sessionCookie is the cookie carrying the opaque session token.
const sessionCookie = "mitabo_session"

type contextKey string

const userContextKey contextKey = "user"

// userFrom returns the authenticated user placed on the context by
// RequireAuth.
func userFrom(ctx context.Context) *database.User {
	u, _ := ctx.Value(userContextKey).(*database.User)
	return u
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

// Register creates an account and logs it in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	switch {
	case req.Username == "" || req.Email == "":
		writeJSONError(w, http.StatusBadRequest, "username and email are required")
		return
	case len(req.Password) < 6:
		writeJSONError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	case !strings.Contains(req.Email, "@"):
		writeJSONError(w, http.StatusBadRequest, "invalid email address")
		return
	}

	user, err := h.db.CreateUser(r.Context(), req.Username, req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			writeJSONError(w, http.StatusConflict, "username or email already in use")
			return
		}
		logging.Error("Failed to create user: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials and opens a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.db.ValidateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, database.ErrInvalidCredentials) {
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			writeJSONError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		logging.Error("Login failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	h.startSession(w, r, user, http.StatusOK)
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, user *database.User, status int) {
	sess, err := h.db.CreateSession(r.Context(), user.ID)
	if err != nil {
		logging.Error("Failed to create session for user %d: %v", user.ID, err)
		writeJSONError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSONStatus(w, status, map[string]interface{}{
		"user": user,
	})
}

// Logout ends the current session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := h.db.DeleteSession(r.Context(), cookie.Value); err != nil {
			logging.Warn("Failed to delete session: %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, map[string]bool{"loggedOut": true})
}

// CheckAuth reports whether the request carries a valid session.
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	user := h.sessionUser(r)
	if user == nil {
		writeJSON(w, map[string]interface{}{"authenticated": false})
		return
	}
	writeJSON(w, map[string]interface{}{
		"authenticated": true,
		"user":          user,
	})
}

// sessionUser resolves the request's session cookie to a user, or nil.
func (h *Handlers) sessionUser(r *http.Request) *database.User {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil
	}
	user, err := h.db.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Error("Session validation failed: %v", err)
		}
		return nil
	}
	return user
}

// RequireAuth wraps a handler, rejecting requests without a valid
// session and placing the user on the request context.
func (h *Handlers) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := h.sessionUser(r)
		if user == nil {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	}
}

// RequireAdmin is RequireAuth plus an admin check.
func (h *Handlers) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !userFrom(r.Context()).IsAdmin {
			writeJSONError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	})
}
