// Package jobqueue runs merge request reviews on a River job queue
// backed by Postgres. Each review is a single job; the in-memory task
// registry carries its status back to polling API clients.
package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/internal/ai"
	"github.com/mergelens/mergelens/internal/config"
	"github.com/mergelens/mergelens/internal/gitlab"
	"github.com/mergelens/mergelens/internal/redact"
	"github.com/mergelens/mergelens/internal/review"
	"github.com/mergelens/mergelens/internal/store"
	"github.com/mergelens/mergelens/pkg/models"
)

// ReviewArgs describes one merge request review job
type ReviewArgs struct {
	TaskID       string `json:"task_id"`
	UserID       int64  `json:"user_id"`
	ProjectID    int    `json:"project_id"`
	MRIID        int    `json:"mr_iid"`
	PostComments bool   `json:"post_comments"`
}

// Kind returns the job kind for River
func (ReviewArgs) Kind() string {
	return "mr_review"
}

// InsertOpts disables retries: a failed review is reported to the user
// instead of silently re-running the LLM calls.
func (ReviewArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

// ReviewWorker executes review jobs. It resolves the requesting user's
// GitLab and AI settings, runs the review pipeline, and finalizes both
// the task registry entry and the persisted review history row.
type ReviewWorker struct {
	river.WorkerDefaults[ReviewArgs]

	cfg      *config.Config
	settings *store.SettingsStore
	reviews  *store.ReviewStore
	registry *review.TaskRegistry
	redactor *redact.Redactor
	qc       *QueueConfig
}

// Work runs a single review job
func (w *ReviewWorker) Work(ctx context.Context, job *river.Job[ReviewArgs]) error {
	args := job.Args

	ctx, cancel := context.WithTimeout(ctx, w.qc.JobTimeout)
	defer cancel()

	log.Info().
		Str("task_id", args.TaskID).
		Int("project_id", args.ProjectID).
		Int("mr_iid", args.MRIID).
		Bool("post_comments", args.PostComments).
		Msg("Starting merge request review")

	result, err := w.runReview(ctx, args)
	if err != nil {
		log.Error().Err(err).Str("task_id", args.TaskID).Msg("Review failed")
		w.registry.Fail(args.TaskID, err.Error())
		return err
	}

	w.registry.Complete(args.TaskID, result)

	// Poller-triggered runs (user id 0) have no account to attach
	// history to.
	if args.UserID > 0 {
		record := &models.ReviewRecord{
			UserID:     args.UserID,
			ProjectID:  args.ProjectID,
			MRIID:      args.MRIID,
			Score:      result.Score,
			Critical:   result.Stats.Critical,
			Warning:    result.Stats.Warning,
			Suggestion: result.Stats.Suggestion,
			Summary:    result.Summary,
		}
		if err := w.reviews.Insert(ctx, record); err != nil {
			// History is best effort, the user already has the result
			log.Warn().Err(err).Str("task_id", args.TaskID).Msg("Failed to persist review history")
		}
	}

	log.Info().
		Str("task_id", args.TaskID).
		Float64("score", result.Score).
		Int("files_reviewed", result.Stats.FilesReviewed).
		Msg("Review completed")

	return nil
}

func (w *ReviewWorker) runReview(ctx context.Context, args ReviewArgs) (*models.ReviewResult, error) {
	glClient, err := w.gitlabClientFor(ctx, args.UserID)
	if err != nil {
		return nil, err
	}

	reviewer, err := w.reviewerFor(ctx, args.UserID)
	if err != nil {
		return nil, err
	}

	// Check the provider up front so a bad key or missing model fails
	// the task once instead of on every file.
	if err := reviewer.Validate(ctx); err != nil {
		return nil, err
	}

	service := review.NewService(glClient, reviewer, w.redactor, w.cfg.AI.ReviewRules, review.Limits{
		MaxFiles:     w.cfg.Review.MaxFiles,
		MaxDiffBytes: w.cfg.Review.MaxDiffBytes,
	})

	return service.ReviewMergeRequest(ctx, args.ProjectID, args.MRIID, args.PostComments)
}

// gitlabClientFor builds a client from the user's stored settings,
// falling back to the server-wide configuration.
func (w *ReviewWorker) gitlabClientFor(ctx context.Context, userID int64) (*gitlab.Client, error) {
	url := w.cfg.GitLab.URL
	token := w.cfg.GitLab.Token

	saved, err := w.settings.GetGitLab(ctx, userID)
	if err == nil && saved.URL != "" && saved.Token != "" {
		url = saved.URL
		token = saved.Token
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load gitlab settings: %w", err)
	}

	if url == "" || token == "" {
		return nil, fmt.Errorf("no GitLab connection configured for user %d", userID)
	}

	return gitlab.NewClient(gitlab.Options{
		BaseURL:            url,
		Token:              token,
		RateLimitRPS:       w.cfg.GitLab.RateLimitRPS,
		Timeout:            w.cfg.GitLab.Timeout,
		InsecureSkipVerify: w.cfg.GitLab.InsecureSkipVerify,
	})
}

// reviewerFor builds an AI reviewer from the user's stored settings,
// falling back to the server-wide configuration.
func (w *ReviewWorker) reviewerFor(ctx context.Context, userID int64) (*ai.Reviewer, error) {
	settings := ai.Settings{
		Provider:    w.cfg.AI.Provider,
		APIKey:      w.cfg.AI.APIKey,
		BaseURL:     w.cfg.AI.BaseURL,
		Model:       w.cfg.AI.Model,
		Temperature: w.cfg.AI.Temperature,
		MaxTokens:   w.cfg.AI.MaxTokens,
	}

	saved, err := w.settings.GetAI(ctx, userID)
	if err == nil && saved.Provider != "" {
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
	} else if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load ai settings: %w", err)
	}

	return ai.NewReviewer(settings)
}

// Queue manages the River client and its workers
type Queue struct {
	client   *river.Client[pgx.Tx]
	pool     *pgxpool.Pool
	config   *QueueConfig
	registry *review.TaskRegistry
}

// NewQueue creates the review queue on an existing pgx pool
func NewQueue(pool *pgxpool.Pool, cfg *config.Config, settings *store.SettingsStore, reviews *store.ReviewStore, registry *review.TaskRegistry) (*Queue, error) {
	qc := DefaultQueueConfig()
	if cfg.Review.QueueWorkers > 0 {
		qc.MaxWorkers = cfg.Review.QueueWorkers
	}

	redactor, err := redact.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create redactor: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &ReviewWorker{
		cfg:      cfg,
		settings: settings,
		reviews:  reviews,
		registry: registry,
		redactor: redactor,
		qc:       qc,
	})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  qc.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &Queue{
		client:   client,
		pool:     pool,
		config:   qc,
		registry: registry,
	}, nil
}

// Migrate applies River's own schema
func (q *Queue) Migrate(ctx context.Context) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(q.pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("failed to run river migrations: %w", err)
	}
	return nil
}

// Start starts the queue workers
func (q *Queue) Start(ctx context.Context) error {
	return q.client.Start(ctx)
}

// Stop stops the queue workers, waiting for running jobs
func (q *Queue) Stop(ctx context.Context) error {
	return q.client.Stop(ctx)
}

// EnqueueReview registers a task and inserts the review job. The
// returned task id is what clients poll.
func (q *Queue) EnqueueReview(ctx context.Context, userID int64, projectID, mrIID int, postComments bool) (string, error) {
	taskID := q.registry.Create()

	args := ReviewArgs{
		TaskID:       taskID,
		UserID:       userID,
		ProjectID:    projectID,
		MRIID:        mrIID,
		PostComments: postComments,
	}

	if _, err := q.client.Insert(ctx, args, nil); err != nil {
		q.registry.Fail(taskID, err.Error())
		return "", fmt.Errorf("failed to enqueue review job: %w", err)
	}

	return taskID, nil
}
