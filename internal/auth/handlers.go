package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/internal/store"
	"github.com/mergelens/mergelens/pkg/models"
)

// Handlers serves the /api/auth endpoints
type Handlers struct {
	users             *store.UserStore
	tokens            *TokenService
	allowRegistration bool
}

// NewHandlers creates auth handlers
func NewHandlers(users *store.UserStore, tokens *TokenService, allowRegistration bool) *Handlers {
	return &Handlers{
		users:             users,
		tokens:            tokens,
		allowRegistration: allowRegistration,
	}
}

// CredentialsRequest is the register/login payload
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *models.User `json:"user"`
}

// Register creates a new account
func (h *Handlers) Register(c echo.Context) error {
	if !h.allowRegistration {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "registration is disabled"})
	}

	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	user, err := h.users.Create(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "username already taken"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	log.Info().Str("username", user.Username).Msg("Registered new user")
	return c.JSON(http.StatusCreated, user)
}

// Login authenticates and returns a bearer token
func (h *Handlers) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	user, err := h.users.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid username or password"})
	}

	token, expiresAt, err := h.tokens.Issue(c.Request().Context(), user)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	return c.JSON(http.StatusOK, LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		User:        user,
	})
}

// Logout revokes the presented token
func (h *Handlers) Logout(c echo.Context) error {
	if token := GetToken(c); token != "" {
		if err := h.tokens.Revoke(c.Request().Context(), token); err != nil {
			log.Warn().Err(err).Msg("Failed to revoke token on logout")
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the current user
func (h *Handlers) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, GetUser(c))
}

// VerifyToken confirms the presented token is still valid
func (h *Handlers) VerifyToken(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"valid": true,
		"user":  GetUser(c),
	})
}
