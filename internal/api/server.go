// Package api exposes the HTTP surface: auth, GitLab pass-through,
// review orchestration, and settings, plus static hosting for the SPA.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/internal/ai"
	"github.com/mergelens/mergelens/internal/auth"
	"github.com/mergelens/mergelens/internal/config"
	"github.com/mergelens/mergelens/internal/gitlab"
	"github.com/mergelens/mergelens/internal/jobqueue"
	"github.com/mergelens/mergelens/internal/redact"
	"github.com/mergelens/mergelens/internal/review"
	"github.com/mergelens/mergelens/internal/store"
	"github.com/mergelens/mergelens/pkg/models"
)

// Version is stamped at build time
var Version = "dev"

// Server wires the echo instance to the application services
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	users    *store.UserStore
	settings *store.SettingsStore
	reviews  *store.ReviewStore
	tokens   *auth.TokenService
	registry *review.TaskRegistry
	queue    *jobqueue.Queue
	redactor *redact.Redactor
}

// NewServer builds the HTTP server and registers every route
func NewServer(cfg *config.Config, users *store.UserStore, settings *store.SettingsStore, reviews *store.ReviewStore, tokens *auth.TokenService, registry *review.TaskRegistry, queue *jobqueue.Queue) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	redactor, err := redact.New()
	if err != nil {
		// Reviews still run, secrets just reach the LLM unmasked
		log.Warn().Err(err).Msg("Secret redaction unavailable")
	}

	server := &Server{
		echo:     e,
		cfg:      cfg,
		users:    users,
		settings: settings,
		reviews:  reviews,
		tokens:   tokens,
		registry: registry,
		queue:    queue,
		redactor: redactor,
	}

	server.setupRoutes()
	server.setupStatic()

	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})

	authHandlers := auth.NewHandlers(s.users, s.tokens, s.cfg.Auth.AllowRegistration)
	requireAuth := auth.RequireAuth(s.tokens)

	authGroup := s.echo.Group("/api/auth")
	authGroup.POST("/register", authHandlers.Register)
	authGroup.POST("/login", authHandlers.Login)
	authGroup.POST("/logout", authHandlers.Logout, requireAuth)
	authGroup.GET("/me", authHandlers.Me, requireAuth)
	authGroup.GET("/verify-token", authHandlers.VerifyToken, requireAuth)

	gl := s.echo.Group("/api/gitlab", requireAuth)
	gl.GET("/connect", s.gitlabConnect)
	gl.GET("/projects", s.listProjects)
	gl.GET("/projects/:id", s.getProject)
	gl.GET("/projects/:id/merge-requests", s.listProjectMergeRequests)
	gl.GET("/merge-requests/related", s.relatedMergeRequests)
	gl.GET("/merge-requests/authored", s.authoredMergeRequests)
	gl.GET("/projects/:id/merge-requests/:iid", s.getMergeRequest)
	gl.GET("/projects/:id/merge-requests/:iid/diffs", s.getMergeRequestDiffs)
	gl.GET("/projects/:id/merge-requests/:iid/notes", s.listNotes)
	gl.POST("/projects/:id/merge-requests/:iid/notes", s.createNote)
	gl.PUT("/projects/:id/merge-requests/:iid/notes/:note_id", s.updateNote)
	gl.DELETE("/projects/:id/merge-requests/:iid/notes/:note_id", s.deleteNote)
	gl.GET("/projects/:id/merge-requests/:iid/discussions", s.listDiscussions)
	gl.POST("/projects/:id/merge-requests/:iid/discussions", s.createDiscussion)
	gl.POST("/projects/:id/merge-requests/:iid/discussions/:discussion_id/replies", s.replyToDiscussion)
	gl.GET("/projects/:id/merge-requests/:iid/approval-state", s.getApprovalState)
	gl.POST("/projects/:id/merge-requests/:iid/approve", s.approveMergeRequest)
	gl.POST("/projects/:id/merge-requests/:iid/unapprove", s.unapproveMergeRequest)
	gl.PUT("/projects/:id/merge-requests/:iid/merge", s.mergeMergeRequest)
	gl.GET("/users", s.listUsers)

	aiGroup := s.echo.Group("/api/ai", requireAuth)
	aiGroup.POST("/review", s.startReview)
	aiGroup.GET("/review/:task_id", s.getReviewTask)
	aiGroup.POST("/review/file", s.reviewFile)
	aiGroup.GET("/config", s.getAIConfig)
	aiGroup.GET("/reviews", s.listReviewHistory)

	configGroup := s.echo.Group("/api/config", requireAuth)
	configGroup.GET("", s.getConfig)
	configGroup.POST("", s.updateConfig)
}

// setupStatic serves the SPA bundle, falling back to index.html for
// client-side routes.
func (s *Server) setupStatic() {
	if s.cfg.Server.StaticDir == "" {
		return
	}
	s.echo.Use(middleware.StaticWithConfig(middleware.StaticConfig{
		Root:  s.cfg.Server.StaticDir,
		Index: "index.html",
		HTML5: true,
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/")
		},
	}))
}

// Start begins serving. It blocks until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// gitlabClientFor resolves the requesting user's GitLab connection,
// preferring stored settings over the server-wide configuration.
func (s *Server) gitlabClientFor(c echo.Context) (*gitlab.Client, error) {
	user := auth.GetUser(c)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	url := s.cfg.GitLab.URL
	token := s.cfg.GitLab.Token

	saved, err := s.settings.GetGitLab(c.Request().Context(), user.ID)
	if err == nil && saved.URL != "" && saved.Token != "" {
		url = saved.URL
		token = saved.Token
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
	}

	if url == "" || token == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "GitLab is not connected; save a URL and token first")
	}

	client, err := gitlab.NewClient(gitlab.Options{
		BaseURL:            url,
		Token:              token,
		RateLimitRPS:       s.cfg.GitLab.RateLimitRPS,
		Timeout:            s.cfg.GitLab.Timeout,
		InsecureSkipVerify: s.cfg.GitLab.InsecureSkipVerify,
	})
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return client, nil
}

// aiSettingsFor resolves the requesting user's AI settings over the
// server-wide configuration.
func (s *Server) aiSettingsFor(c echo.Context) (ai.Settings, error) {
	settings := ai.Settings{
		Provider:    s.cfg.AI.Provider,
		APIKey:      s.cfg.AI.APIKey,
		BaseURL:     s.cfg.AI.BaseURL,
		Model:       s.cfg.AI.Model,
		Temperature: s.cfg.AI.Temperature,
		MaxTokens:   s.cfg.AI.MaxTokens,
	}

	user := auth.GetUser(c)
	if user == nil {
		return settings, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	saved, err := s.settings.GetAI(c.Request().Context(), user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return settings, nil
		}
		return settings, echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
	}

	if saved.Provider != "" {
		settings.Provider = saved.Provider
		settings.Temperature = saved.Temperature
		settings.Model = saved.Model
		if settings.Model == "" {
			settings.Model = config.DefaultModel(saved.Provider)
		}
		if saved.APIKey != "" {
			settings.APIKey = saved.APIKey
		}
		if saved.BaseURL != "" {
			settings.BaseURL = saved.BaseURL
		}
	}
	return settings, nil
}

// gitlabError translates an upstream GitLab failure into a response
// for our client. Upstream auth failures become 400 so the SPA does
// not mistake them for an expired local session.
func gitlabError(err error) error {
	var apiErr *gitlab.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return echo.NewHTTPError(http.StatusBadRequest, "GitLab rejected the token: "+apiErr.Body)
		}
		return echo.NewHTTPError(status, apiErr.Body)
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}

func currentUser(c echo.Context) (*models.User, error) {
	user := auth.GetUser(c)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return user, nil
}
