package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/pathrpg/engine/internal/auth"
	"github.com/pathrpg/engine/internal/storage"
)

// Username and password rules, matching the registration form.
const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
)

// UserStore is the account persistence the auth handler needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*storage.User, error)
	GetUserByUsername(ctx context.Context, username string) (*storage.User, error)
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	users  UserStore
	tokens *auth.Tokens
	logger *slog.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users UserStore, tokens *auth.Tokens, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a fresh bearer token.
type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Username) < minUsernameLen || len(req.Username) > maxUsernameLen {
		writeError(w, h.logger, http.StatusBadRequest, "Username must be 3-50 characters")
		return
	}
	if len(req.Password) < minPasswordLen {
		writeError(w, h.logger, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Registration failed")
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeError(w, h.logger, http.StatusConflict, "Username already taken")
			return
		}
		h.logger.Error("Failed to create user", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Registration failed")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.Error("Failed to issue token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.logger.Info("User registered", "username", user.Username)
	writeJSON(w, h.logger, http.StatusCreated, TokenResponse{Token: token, Username: user.Username})
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.logger.Error("Failed to look up user", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Login failed")
		return
	}

	// Same rejection for unknown user and wrong password.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, h.logger, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.Error("Failed to issue token", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Login failed")
		return
	}

	h.logger.Info("User logged in", "username", user.Username)
	writeJSON(w, h.logger, http.StatusOK, TokenResponse{Token: token, Username: user.Username})
}
