package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mergelens/mergelens/pkg/models"
)

// SettingsStore manages per-user GitLab and AI settings
type SettingsStore struct {
	db *sql.DB
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetGitLab fetches a user's GitLab settings
func (s *SettingsStore) GetGitLab(ctx context.Context, userID int64) (*models.GitLabSettings, error) {
	settings := &models.GitLabSettings{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, url, token, updated_at
		FROM gitlab_settings WHERE user_id = $1
	`, userID).Scan(&settings.UserID, &settings.URL, &settings.Token, &settings.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get gitlab settings: %w", err)
	}

	return settings, nil
}

// UpsertGitLab creates or updates a user's GitLab settings
func (s *SettingsStore) UpsertGitLab(ctx context.Context, userID int64, url, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gitlab_settings (user_id, url, token, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET url = EXCLUDED.url, token = EXCLUDED.token, updated_at = NOW()
	`, userID, url, token)

	if err != nil {
		return fmt.Errorf("failed to upsert gitlab settings: %w", err)
	}
	return nil
}

// GetAI fetches a user's AI settings
func (s *SettingsStore) GetAI(ctx context.Context, userID int64) (*models.AISettings, error) {
	settings := &models.AISettings{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, provider, api_key, base_url, model, temperature, updated_at
		FROM ai_settings WHERE user_id = $1
	`, userID).Scan(&settings.UserID, &settings.Provider, &settings.APIKey,
		&settings.BaseURL, &settings.Model, &settings.Temperature, &settings.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ai settings: %w", err)
	}

	return settings, nil
}

// UpsertAI creates or updates a user's AI settings
func (s *SettingsStore) UpsertAI(ctx context.Context, settings *models.AISettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_settings (user_id, provider, api_key, base_url, model, temperature, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET provider = EXCLUDED.provider,
		    api_key = EXCLUDED.api_key,
		    base_url = EXCLUDED.base_url,
		    model = EXCLUDED.model,
		    temperature = EXCLUDED.temperature,
		    updated_at = NOW()
	`, settings.UserID, settings.Provider, settings.APIKey,
		settings.BaseURL, settings.Model, settings.Temperature)

	if err != nil {
		return fmt.Errorf("failed to upsert ai settings: %w", err)
	}
	return nil
}
