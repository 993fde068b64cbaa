package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mergelens/mergelens/internal/ai"
	"github.com/mergelens/mergelens/internal/config"
	"github.com/mergelens/mergelens/internal/store"
	"github.com/mergelens/mergelens/pkg/models"
)

// getConfig returns the effective per-user settings. Secrets are
// masked; the client only needs to know whether one is set.
func (s *Server) getConfig(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	gitlabURL := s.cfg.GitLab.URL
	gitlabToken := s.cfg.GitLab.Token
	if saved, err := s.settings.GetGitLab(ctx, user.ID); err == nil {
		if saved.URL != "" {
			gitlabURL = saved.URL
		}
		if saved.Token != "" {
			gitlabToken = saved.Token
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
	}

	aiSettings, err := s.aiSettingsFor(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"gitlab": map[string]interface{}{
			"url":   gitlabURL,
			"token": maskSecret(gitlabToken),
		},
		"ai": map[string]interface{}{
			"provider":    aiSettings.Provider,
			"api_key":     maskSecret(aiSettings.APIKey),
			"base_url":    aiSettings.BaseURL,
			"model":       aiSettings.Model,
			"temperature": aiSettings.Temperature,
		},
	})
}

type updateConfigRequest struct {
	GitLab *struct {
		URL   string `json:"url"`
		Token string `json:"token"`
	} `json:"gitlab"`
	AI *struct {
		Provider    string  `json:"provider"`
		APIKey      string  `json:"api_key"`
		BaseURL     string  `json:"base_url"`
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
	} `json:"ai"`
}

// updateConfig upserts the user's stored settings. The YAML file on
// disk is never rewritten; these rows overlay it at request time.
func (s *Server) updateConfig(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req updateConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.GitLab == nil && req.AI == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}
	ctx := c.Request().Context()

	if req.GitLab != nil {
		if req.GitLab.URL == "" || req.GitLab.Token == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "gitlab url and token are required")
		}
		if err := s.settings.UpsertGitLab(ctx, user.ID, req.GitLab.URL, req.GitLab.Token); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to save gitlab settings")
		}
	}

	if req.AI != nil {
		switch req.AI.Provider {
		case ai.ProviderOpenAI, ai.ProviderOllama:
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "provider must be openai or ollama")
		}
		model := req.AI.Model
		if model == "" {
			model = config.DefaultModel(req.AI.Provider)
		}
		if err := s.settings.UpsertAI(ctx, &models.AISettings{
			UserID:      user.ID,
			Provider:    req.AI.Provider,
			APIKey:      req.AI.APIKey,
			BaseURL:     req.AI.BaseURL,
			Model:       model,
			Temperature: req.AI.Temperature,
		}); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to save ai settings")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}
