package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mergelens/mergelens/internal/ai"
	"github.com/mergelens/mergelens/internal/review"
)

type startReviewRequest struct {
	ProjectID    int  `json:"project_id"`
	MRIID        int  `json:"mr_iid"`
	PostComments bool `json:"post_comments"`
}

// startReview queues a full MR review and hands back a task id for
// polling.
func (s *Server) startReview(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var req startReviewRequest
	if err := c.Bind(&req); err != nil || req.ProjectID <= 0 || req.MRIID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id and mr_iid are required")
	}

	taskID, err := s.queue.EnqueueReview(c.Request().Context(), user.ID, req.ProjectID, req.MRIID, req.PostComments)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":  "started",
		"task_id": taskID,
	})
}

func (s *Server) getReviewTask(c echo.Context) error {
	task, ok := s.registry.Get(c.Param("task_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown task id")
	}

	switch task.Status {
	case review.StatusError:
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  task.Err,
		})
	case review.StatusCompleted:
		return c.JSON(http.StatusOK, task.Result)
	default:
		return c.JSON(http.StatusOK, map[string]string{"status": "running"})
	}
}

type reviewFileRequest struct {
	ProjectID int    `json:"project_id"`
	MRIID     int    `json:"mr_iid"`
	FilePath  string `json:"file_path"`
}

// reviewFile runs a synchronous single-file review
func (s *Server) reviewFile(c echo.Context) error {
	var req reviewFileRequest
	if err := c.Bind(&req); err != nil || req.ProjectID <= 0 || req.MRIID <= 0 || req.FilePath == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_id, mr_iid and file_path are required")
	}

	client, err := s.gitlabClientFor(c)
	if err != nil {
		return err
	}

	settings, err := s.aiSettingsFor(c)
	if err != nil {
		return err
	}
	reviewer, err := ai.NewReviewer(settings)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	changes, err := client.GetMergeRequestChanges(ctx, strconv.Itoa(req.ProjectID), req.MRIID)
	if err != nil {
		return gitlabError(err)
	}

	service := review.NewService(client, reviewer, s.redactor, s.cfg.AI.ReviewRules, review.Limits{
		MaxFiles:     s.cfg.Review.MaxFiles,
		MaxDiffBytes: s.cfg.Review.MaxDiffBytes,
	})

	for _, change := range changes {
		if change.NewPath != req.FilePath {
			continue
		}
		comments, err := service.ReviewFile(ctx, change)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"file_path": req.FilePath,
			"comments":  comments,
		})
	}

	return echo.NewHTTPError(http.StatusNotFound, "file not found in merge request diff")
}

// getAIConfig returns the effective AI settings with the key masked
func (s *Server) getAIConfig(c echo.Context) error {
	settings, err := s.aiSettingsFor(c)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"provider":    settings.Provider,
		"api_key":     maskSecret(settings.APIKey),
		"base_url":    settings.BaseURL,
		"model":       settings.Model,
		"temperature": settings.Temperature,
		"max_tokens":  settings.MaxTokens,
	})
}

func (s *Server) listReviewHistory(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	records, err := s.reviews.ListByUser(c.Request().Context(), user.ID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load review history")
	}
	return c.JSON(http.StatusOK, records)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
