package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"social/internal/auth"
	"social/internal/httpx"
	"social/internal/infrastructure/postgres"
)

// Store is what the handlers need from the identity repository.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	FindByLogin(ctx context.Context, login string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	SaveRefreshToken(ctx context.Context, t *RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
}

type Handlers struct {
	store      Store
	tx         postgres.Transactor
	tokens     *auth.TokenManager
	refreshTTL time.Duration
	validate   *validator.Validate
	log        *slog.Logger
}

func NewHandlers(store Store, tx postgres.Transactor, tokens *auth.TokenManager, refreshTTL time.Duration, log *slog.Logger) *Handlers {
	return &Handlers{
		store:      store,
		tx:         tx,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		validate:   validator.New(),
		log:        log,
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.log.Warn("registration validation failed", "error", err)
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		h.log.Error("password hashing failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	var access, refresh string
	err = h.tx.WithinTransaction(r.Context(), func(ctx context.Context) error {
		if err := h.store.CreateUser(ctx, user); err != nil {
			return err
		}
		access, refresh, err = h.issueTokens(ctx, user)
		return err
	})
	if errors.Is(err, ErrUserExists) {
		h.log.Warn("user already exists", "username", req.Username)
		httpx.Fail(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		h.log.Error("registration failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.log.Info("user created", "user_id", user.ID)
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"message":      "User created successfully",
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.store.FindByLogin(r.Context(), req.Login)
	if errors.Is(err, ErrUserNotFound) {
		httpx.Fail(w, http.StatusBadRequest, "Invalid user")
		return
	}
	if err != nil {
		h.log.Error("login failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil || !match {
		httpx.Fail(w, http.StatusBadRequest, "Invalid password")
		return
	}

	access, refresh, err := h.issueTokens(r.Context(), user)
	if err != nil {
		h.log.Error("token issue failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.log.Info("user logged in", "user_id", user.ID)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "User logged in successfully",
		"accessToken":  access,
		"refreshToken": refresh,
		"userId":       user.ID,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.Fail(w, http.StatusBadRequest, "Refresh token missing")
		return
	}

	stored, err := h.store.FindRefreshToken(r.Context(), req.RefreshToken)
	if errors.Is(err, ErrTokenInvalid) {
		httpx.Fail(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	if err != nil {
		h.log.Error("refresh lookup failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if stored.ExpiresAt.Before(time.Now()) {
		// A dead token has no further use; reap the row while rejecting.
		if err := h.store.DeleteRefreshToken(r.Context(), stored.Token); err != nil {
			h.log.Error("failed to delete expired refresh token", "error", err)
		}
		httpx.Fail(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}

	user, err := h.store.FindByID(r.Context(), stored.UserID)
	if errors.Is(err, ErrUserNotFound) {
		httpx.Fail(w, http.StatusUnauthorized, "User not found")
		return
	}
	if err != nil {
		h.log.Error("refresh user lookup failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Rotation: the old token dies and the new one is born atomically.
	var access, refresh string
	err = h.tx.WithinTransaction(r.Context(), func(ctx context.Context) error {
		if err := h.store.DeleteRefreshToken(ctx, stored.Token); err != nil {
			return err
		}
		access, refresh, err = h.issueTokens(ctx, user)
		return err
	})
	if err != nil {
		h.log.Error("refresh rotation failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.Fail(w, http.StatusBadRequest, "Refresh token missing")
		return
	}

	if err := h.store.DeleteRefreshToken(r.Context(), req.RefreshToken); err != nil {
		h.log.Error("logout failed", "error", err)
		httpx.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.log.Info("refresh token deleted for logout")
	httpx.OK(w, "Logged out successfully")
}

func (h *Handlers) issueTokens(ctx context.Context, user *User) (string, string, error) {
	access, err := h.tokens.Access(user.ID, user.Username)
	if err != nil {
		return "", "", err
	}
	refresh := auth.NewRefreshToken()
	err = h.store.SaveRefreshToken(ctx, &RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(h.refreshTTL),
	})
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
