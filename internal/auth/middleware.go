package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mergelens/mergelens/pkg/models"
)

// Context keys
const (
	UserContextKey  = "user"
	TokenContextKey = "token"
)

// RequireAuth validates the Authorization header and stashes the user in
// the echo context.
func RequireAuth(tokens *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			user, err := tokens.Validate(c.Request().Context(), parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(UserContextKey, user)
			c.Set(TokenContextKey, parts[1])
			return next(c)
		}
	}
}

// GetUser extracts the authenticated user from the echo context
func GetUser(c echo.Context) *models.User {
	user, _ := c.Get(UserContextKey).(*models.User)
	return user
}

// GetToken extracts the raw bearer token from the echo context
func GetToken(c echo.Context) string {
	token, _ := c.Get(TokenContextKey).(string)
	return token
}
