// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/blogd-app/blogd/internal/auth"
	"github.com/blogd-app/blogd/internal/imaging"
	"github.com/blogd-app/blogd/internal/middleware"
	"github.com/blogd-app/blogd/internal/model"
	"github.com/blogd-app/blogd/internal/store"
	"github.com/blogd-app/blogd/internal/util"
)

const birthDateLayout = "2006-01-02"

// registerRequest carries the registration fields. The same shape is accepted
// as a JSON body or as multipart form fields (with optional avatar and cover
// image parts).
type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	BirthDate  string `json:"birth_date,omitempty"`
	Location   string `json:"location,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

func (req *registerRequest) validate() map[string]string {
	fieldErrors := make(map[string]string)

	if req.Email == "" {
		fieldErrors["email"] = "Email is required"
	} else if !model.ValidEmail(req.Email) {
		fieldErrors["email"] = "Invalid email address"
	}
	if req.Password == "" {
		fieldErrors["password"] = "Password is required"
	} else if !model.ValidPassword(req.Password) {
		fieldErrors["password"] = fmt.Sprintf("Password must be at least %d characters with a letter and a digit", model.MinPasswordLength)
	}
	if strings.TrimSpace(req.FirstName) == "" {
		fieldErrors["first_name"] = "First name is required"
	}
	if strings.TrimSpace(req.LastName) == "" {
		fieldErrors["last_name"] = "Last name is required"
	}
	if req.BirthDate != "" {
		if _, err := time.Parse(birthDateLayout, req.BirthDate); err != nil {
			fieldErrors["birth_date"] = "Birth date must be YYYY-MM-DD"
		}
	}

	if len(fieldErrors) == 0 {
		return nil
	}
	return fieldErrors
}

// formImage saves an optional uploaded image part. Returns the stored
// relative path, or an invalid NullString when the part is absent.
func (h *Handler) formImage(r *http.Request, field, kind string) (sql.NullString, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return sql.NullString{}, nil
		}
		return sql.NullString{}, err
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	result, err := h.images.SaveImage(file, kind)
	if err != nil {
		return sql.NullString{}, err
	}
	return util.NullStringFromValue(result.RelPath), nil
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	var avatarPath, coverPath sql.NullString

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
			WriteBadRequest(w, "Invalid multipart form", nil)
			return
		}
		req = registerRequest{
			Email:      r.FormValue("email"),
			Password:   r.FormValue("password"),
			FirstName:  r.FormValue("first_name"),
			LastName:   r.FormValue("last_name"),
			BirthDate:  r.FormValue("birth_date"),
			Location:   r.FormValue("location"),
			Occupation: r.FormValue("occupation"),
		}
	} else if !decodeJSON(w, r, &req) {
		return
	}

	if fieldErrors := req.validate(); fieldErrors != nil {
		WriteValidationError(w, fieldErrors)
		return
	}

	email := model.NormalizeEmail(req.Email)
	if _, err := h.queries.GetUserByEmail(r.Context(), email); err == nil {
		WriteConflict(w, "Email is already registered")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		slog.Error("register: email lookup failed", "error", err)
		WriteInternalError(w, "Failed to register")
		return
	}

	if strings.HasPrefix(contentType, "multipart/form-data") {
		var err error
		if avatarPath, err = h.formImage(r, "avatar", imaging.KindAvatar); err != nil {
			WriteValidationError(w, map[string]string{"avatar": "Invalid image"})
			return
		}
		if coverPath, err = h.formImage(r, "cover", imaging.KindCover); err != nil {
			WriteValidationError(w, map[string]string{"cover": "Invalid image"})
			return
		}
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("register: password hashing failed", "error", err)
		WriteInternalError(w, "Failed to register")
		return
	}

	var birthDate sql.NullTime
	if req.BirthDate != "" {
		parsed, _ := time.Parse(birthDateLayout, req.BirthDate)
		birthDate = sql.NullTime{Time: parsed, Valid: true}
	}

	now := time.Now().UTC()
	user, err := h.queries.CreateUser(r.Context(), store.CreateUserParams{
		Email:         email,
		PasswordHash:  passwordHash,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		BirthDate:     birthDate,
		Location:      strings.TrimSpace(req.Location),
		Occupation:    strings.TrimSpace(req.Occupation),
		AuthLevel:     model.AuthLevelBasic,
		AvatarPath:    avatarPath,
		CoverPath:     coverPath,
		EmailVerified: !h.cfg.VerifyEmail,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		slog.Error("register: user insert failed", "error", err)
		WriteInternalError(w, "Failed to register")
		return
	}

	if h.cfg.VerifyEmail {
		h.issueVerification(r, user)
	}

	slog.Info("user registered", "category", model.EventCategoryAuth, "user_id", user.ID, "email", user.Email)
	WriteCreated(w, user)
}

// issueVerification stores a verification token and mails the link. Failures
// are logged but never fail the registration; the user can re-request later.
func (h *Handler) issueVerification(r *http.Request, user model.User) {
	token, err := model.GenerateToken()
	if err != nil {
		slog.Error("register: verification token generation failed", "error", err, "user_id", user.ID)
		return
	}
	if err := h.queries.SetVerifyToken(r.Context(), user.ID, model.HashToken(token)); err != nil {
		slog.Error("register: verification token store failed", "error", err, "user_id", user.ID)
		return
	}
	if err := h.mailer.SendVerificationEmail(r.Context(), user.Email, token); err != nil {
		slog.Error("register: verification mail failed", "error", err, "user_id", user.ID)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the authenticated user.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      model.User `json:"user"`
}

// Login handles POST /api/auth/login.
// Unknown email is 404, unverified email 403, wrong password 401, so the SPA
// can show a precise message for each case.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		WriteValidationError(w, map[string]string{"credentials": "Email and password are required"})
		return
	}

	email := model.NormalizeEmail(req.Email)

	if locked, remaining := h.protection.IsAccountLocked(email); locked {
		WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
			fmt.Sprintf("Account temporarily locked. Try again in %s.", remaining.Round(time.Second)), nil)
		return
	}

	user, err := h.queries.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "No account with that email")
			return
		}
		slog.Error("login: user lookup failed", "error", err)
		WriteInternalError(w, "Failed to log in")
		return
	}

	if h.cfg.VerifyEmail && !user.EmailVerified {
		WriteError(w, http.StatusForbidden, "email_unverified", "Email address has not been verified", nil)
		return
	}

	ok, err := auth.CheckPassword(req.Password, user.PasswordHash)
	if err != nil {
		slog.Error("login: password check failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to log in")
		return
	}
	if !ok {
		if locked, duration := h.protection.RecordFailedAttempt(email); locked {
			slog.Warn("login: account locked", "category", model.EventCategoryAuth, "user_id", user.ID, "duration", duration)
			WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded",
				fmt.Sprintf("Too many failed attempts. Account locked for %s.", duration), nil)
			return
		}
		WriteUnauthorized(w, "Invalid password")
		return
	}
	h.protection.RecordSuccessfulLogin(email)

	token, expiresAt, err := h.issuer.Issue(user.ID, user.Email, user.AuthLevel)
	if err != nil {
		slog.Error("login: token issue failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to log in")
		return
	}

	now := time.Now().UTC()
	if _, err := h.queries.CreateSession(r.Context(), store.CreateSessionParams{
		TokenHash: model.HashToken(token),
		UserID:    user.ID,
		UserAgent: userAgentSummary(r),
		IP:        middleware.ClientIP(r),
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}); err != nil {
		slog.Error("login: session insert failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to log in")
		return
	}

	if err := h.queries.SetUserLastLogin(r.Context(), user.ID, now); err != nil {
		slog.Warn("login: last login update failed", "error", err, "user_id", user.ID)
	}
	user.LastLoginAt = sql.NullTime{Time: now, Valid: true}

	slog.Info("user logged in", "category", model.EventCategoryAuth, "user_id", user.ID)
	WriteSuccess(w, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil)
}

// userAgentSummary condenses the User-Agent header into a short
// "browser version on OS" line for the session record.
func userAgentSummary(r *http.Request) string {
	raw := r.UserAgent()
	if raw == "" {
		return ""
	}
	ua := useragent.Parse(raw)
	if ua.Name == "" {
		return raw
	}
	summary := ua.Name
	if ua.Version != "" {
		summary += " " + ua.Version
	}
	if ua.OS != "" {
		summary += " on " + ua.OS
	}
	return summary
}

// Logout handles POST /api/auth/logout. Deletes the session row for the
// presented token; the JWT becomes unusable immediately.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.RawBearerToken(r)
	if token == "" {
		WriteUnauthorized(w, "Missing or malformed Authorization header. Use: Bearer <token>")
		return
	}

	err := h.queries.DeleteSessionByTokenHash(r.Context(), model.HashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "Session not found")
			return
		}
		slog.Error("logout: session delete failed", "error", err)
		WriteInternalError(w, "Failed to log out")
		return
	}

	slog.Info("user logged out", "category", model.EventCategoryAuth, "user_id", middleware.GetUserID(r))
	WriteSuccess(w, map[string]string{"message": "Logged out"}, nil)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword handles POST /api/auth/forgot-password. Always responds 200
// so the endpoint cannot be used to probe for registered addresses.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp := map[string]string{"message": "If that email is registered, a reset link has been sent"}

	email := model.NormalizeEmail(req.Email)
	user, err := h.queries.GetUserByEmail(r.Context(), email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("forgot password: user lookup failed", "error", err)
		}
		WriteSuccess(w, resp, nil)
		return
	}

	token, err := model.GenerateToken()
	if err != nil {
		slog.Error("forgot password: token generation failed", "error", err, "user_id", user.ID)
		WriteSuccess(w, resp, nil)
		return
	}

	expiresAt := time.Now().UTC().Add(time.Duration(h.cfg.ResetTokenMinute) * time.Minute)
	if err := h.queries.SetResetToken(r.Context(), store.SetResetTokenParams{
		ID:        user.ID,
		TokenHash: model.HashToken(token),
		ExpiresAt: expiresAt,
	}); err != nil {
		slog.Error("forgot password: token store failed", "error", err, "user_id", user.ID)
		WriteSuccess(w, resp, nil)
		return
	}

	if err := h.mailer.SendPasswordResetEmail(r.Context(), user.Email, token); err != nil {
		slog.Error("forgot password: reset mail failed", "error", err, "user_id", user.ID)
	}

	slog.Info("password reset requested", "category", model.EventCategoryAuth, "user_id", user.ID)
	WriteSuccess(w, resp, nil)
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword handles POST /api/auth/reset-password. Consumes the single-use
// token and invalidates every session of the user.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteValidationError(w, map[string]string{"token": "Token is required"})
		return
	}
	if !model.ValidPassword(req.Password) {
		WriteValidationError(w, map[string]string{
			"password": fmt.Sprintf("Password must be at least %d characters with a letter and a digit", model.MinPasswordLength),
		})
		return
	}

	user, expiresAt, err := h.queries.GetUserByResetToken(r.Context(), model.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteBadRequest(w, "Invalid or expired reset token", nil)
			return
		}
		slog.Error("reset password: token lookup failed", "error", err)
		WriteInternalError(w, "Failed to reset password")
		return
	}
	if !expiresAt.Valid || time.Now().After(expiresAt.Time) {
		WriteBadRequest(w, "Invalid or expired reset token", nil)
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("reset password: hashing failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to reset password")
		return
	}

	if err := h.queries.UpdateUserPassword(r.Context(), user.ID, passwordHash); err != nil {
		slog.Error("reset password: update failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to reset password")
		return
	}
	if err := h.queries.ClearResetToken(r.Context(), user.ID); err != nil {
		slog.Error("reset password: token clear failed", "error", err, "user_id", user.ID)
	}
	if err := h.queries.DeleteSessionsByUser(r.Context(), user.ID); err != nil {
		slog.Error("reset password: session invalidation failed", "error", err, "user_id", user.ID)
	}

	slog.Info("password reset", "category", model.EventCategoryAuth, "user_id", user.ID)
	WriteSuccess(w, map[string]string{"message": "Password has been reset"}, nil)
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		WriteValidationError(w, map[string]string{"token": "Token is required"})
		return
	}

	user, err := h.queries.GetUserByVerifyToken(r.Context(), model.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteBadRequest(w, "Invalid verification token", nil)
			return
		}
		slog.Error("verify email: token lookup failed", "error", err)
		WriteInternalError(w, "Failed to verify email")
		return
	}

	if err := h.queries.VerifyUserEmail(r.Context(), user.ID); err != nil {
		slog.Error("verify email: update failed", "error", err, "user_id", user.ID)
		WriteInternalError(w, "Failed to verify email")
		return
	}

	slog.Info("email verified", "category", model.EventCategoryAuth, "user_id", user.ID)
	WriteSuccess(w, map[string]string{"message": "Email verified"}, nil)
}

// ValidateToken handles GET /api/session/validate_token. The bearer
// middleware has already verified the token and session; this simply echoes
// the authenticated user back.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.queries.GetUserByID(r.Context(), ident.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteNotFound(w, "User not found")
			return
		}
		slog.Error("validate token: user lookup failed", "error", err, "user_id", ident.UserID)
		WriteInternalError(w, "Failed to validate token")
		return
	}

	WriteSuccess(w, user, nil)
}
