package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/erazemk/lofoph/internal/auth"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/store"
)

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	DB           *sql.DB
	JWTSecret    string
	SecureCookie bool
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Login handles POST /api/v1/users/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "Please provide email and password!")
		return
	}

	user, err := store.GetUserByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	slog.Info("user logged in", "user", user.ID)
	h.sendSession(w, http.StatusOK, user)
}

// Signup handles POST /api/v1/users/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Name == "" || req.Email == "" || req.Password == "":
		jsonError(w, http.StatusBadRequest, "Please provide name, email and password")
		return
	case !validEmail(req.Email):
		jsonError(w, http.StatusBadRequest, "Please provide a valid email")
		return
	case req.Password != req.PasswordConfirm:
		jsonError(w, http.StatusBadRequest, "Passwords are not the same!")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	user, err := store.CreateUser(r.Context(), h.DB, req.Name, req.Email, hash, model.RoleUser)
	if errors.Is(err, store.ErrDuplicateEmail) {
		jsonErrorCode(w, http.StatusBadRequest, "Duplicate field value: email. Please use another value!", duplicateKeyCode)
		return
	}
	if err != nil {
		slog.Error("failed to create user", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	slog.Info("user signed up", "user", user.ID)
	h.sendSession(w, http.StatusCreated, user)
}

// Logout handles GET /api/v1/users/logout. It always succeeds; a valid
// token is revoked so copies of it stop working too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := requestToken(r); token != "" {
		if claims, err := auth.ValidateToken(h.JWTSecret, token); err == nil {
			if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
				slog.Error("failed to revoke token", "error", err)
			} else {
				slog.Info("user logged out", "user", claims.UserID)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	jsonResponse(w, http.StatusOK, envelope{Status: statusSuccess})
}

func (h *AuthHandler) sendSession(w http.ResponseWriter, status int, user *store.Account) {
	token, err := auth.GenerateToken(h.JWTSecret, user.ID, user.Email, user.Role)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		jsonError(w, http.StatusInternalServerError, "Something went wrong!")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(auth.TokenExpiry),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	jsonSuccess(w, status, map[string]any{"user": user.User})
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
