package handlers

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"branddos/internal/middleware"
	"branddos/internal/models"
	"branddos/internal/session"
	"branddos/internal/store"
)

// totpIssuer is the issuer name shown in authenticator apps.
const totpIssuer = "Brand Dos"

// Auth groups the account and session handlers.
type Auth struct {
	sessions *session.Store
	users    UserStore
}

// NewAuth creates a new Auth handler group.
func NewAuth(sessions *session.Store, users UserStore) *Auth {
	return &Auth{sessions: sessions, users: users}
}

type signupRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type verifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

type loginResponse struct {
	User              *models.User `json:"user"`
	TwoFactorRequired bool         `json:"two_factor_required"`
}

type setupResponse struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"`
}

// Signup creates a local account and signs the new user in.
func (a *Auth) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(req.Email, "@")
	}

	user, err := a.users.Create(req.Email, req.Password, displayName)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusConflict, "An account with this email already exists.")
		return
	}
	if err != nil {
		slog.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account.")
		return
	}

	// A fresh account has no second factor yet.
	if !a.startSession(w, r, user, true) {
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{User: user})
}

// Login checks the password and opens a session. When the account has 2FA
// enabled the session stays pending until Verify2FA succeeds.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := a.users.FindByEmail(req.Email)
	if err != nil {
		slog.Error("login lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if user == nil || !a.users.CheckPassword(user, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	pending := user.Requires2FA()
	if !a.startSession(w, r, user, !pending) {
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{User: user, TwoFactorRequired: pending})
}

func (a *Auth) startSession(w http.ResponseWriter, r *http.Request, user *models.User, twoFADone bool) bool {
	_, err := a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		TwoFADone:   twoFADone,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		slog.Error("session create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start session.")
		return false
	}
	return true
}

// Setup2FA generates a new TOTP secret for the signed-in user and returns it
// with a QR code. 2FA is enabled once Verify2FA accepts a code.
func (a *Auth) Setup2FA(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: sess.Email,
	})
	if err != nil {
		slog.Error("totp generate failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to set up two-factor authentication.")
		return
	}

	if err := a.users.SetTOTPSecret(sess.UserID, key.Secret()); err != nil {
		slog.Error("save totp secret failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to set up two-factor authentication.")
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		slog.Error("qr code generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to set up two-factor authentication.")
		return
	}

	writeJSON(w, http.StatusOK, setupResponse{
		Secret: key.Secret(),
		QRCode: base64.StdEncoding.EncodeToString(qrPNG),
	})
}

// Verify2FA validates a TOTP code. It completes a pending login, or enables
// 2FA on the first successful code after Setup2FA.
func (a *Auth) Verify2FA(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())

	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := a.users.FindByID(sess.UserID)
	if err != nil || user == nil {
		slog.Error("user lookup for 2fa failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if user.TOTPSecret == nil {
		writeError(w, http.StatusBadRequest, "Two-factor authentication is not set up.")
		return
	}

	if !totp.Validate(req.Code, *user.TOTPSecret) {
		writeError(w, http.StatusUnauthorized, "Invalid code. Please try again.")
		return
	}

	if !user.TOTPEnabled {
		if err := a.users.EnableTOTP(user.ID); err != nil {
			slog.Error("enable totp failed", "error", err)
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
			return
		}
		user.TOTPEnabled = true
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		slog.Error("session update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// Logout destroys the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the signed-in user.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.FindByID(middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("user lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}
