package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/internal/store"
	"github.com/mergelens/mergelens/pkg/models"
)

// ErrInvalidToken is returned for tokens that fail validation for any reason
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService issues and validates bearer tokens. Every issued JWT is
// backed by a hashed row in auth_tokens so logout takes effect immediately.
type TokenService struct {
	db        *sql.DB
	users     *store.UserStore
	secretKey []byte

	TokenTTL time.Duration
}

// Claims are the JWT claims carried by access tokens
type Claims struct {
	Username  string `json:"username"`
	TokenHash string `json:"token_hash"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(db *sql.DB, users *store.UserStore, secretKey string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		db:        db,
		users:     users,
		secretKey: []byte(secretKey),
		TokenTTL:  ttl,
	}
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Issue creates a signed token for the user and stores its hash
func (ts *TokenService) Issue(ctx context.Context, user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(ts.TokenTTL)

	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "mergelens",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	_, err = ts.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, user.ID, hashToken(signed), expiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate checks a token's signature and its live row, returning the user
func (ts *TokenService) Validate(ctx context.Context, tokenString string) (*models.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, ok := token.Claims.(*Claims); !ok {
		return nil, ErrInvalidToken
	}

	var userID int64
	err = ts.db.QueryRowContext(ctx, `
		SELECT user_id FROM auth_tokens
		WHERE token_hash = $1
		AND revoked_at IS NULL
		AND expires_at > NOW()
	`, hashToken(tokenString)).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to check token: %w", err)
	}

	user, err := ts.users.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return user, nil
}

// Revoke marks the presented token as revoked
func (ts *TokenService) Revoke(ctx context.Context, tokenString string) error {
	_, err := ts.db.ExecContext(ctx, `
		UPDATE auth_tokens
		SET revoked_at = NOW()
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, hashToken(tokenString))
	return err
}

// CleanupExpired deletes expired and revoked token rows
func (ts *TokenService) CleanupExpired(ctx context.Context) error {
	result, err := ts.db.ExecContext(ctx, `
		DELETE FROM auth_tokens
		WHERE expires_at < NOW() OR revoked_at IS NOT NULL AND revoked_at < NOW() - INTERVAL '1 day'
	`)
	if err != nil {
		return fmt.Errorf("failed to cleanup tokens: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows > 0 {
		log.Debug().Int64("rows", rows).Msg("Cleaned up expired auth tokens")
	}
	return nil
}

// StartCleanupScheduler runs CleanupExpired on a fixed interval until the
// context is cancelled.
func (ts *TokenService) StartCleanupScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		if err := ts.CleanupExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("Token cleanup failed")
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.CleanupExpired(ctx); err != nil {
					log.Warn().Err(err).Msg("Token cleanup failed")
				}
			}
		}
	}()
}
