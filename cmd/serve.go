package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/mergelens/mergelens/internal/api"
	"github.com/mergelens/mergelens/internal/auth"
	"github.com/mergelens/mergelens/internal/config"
	"github.com/mergelens/mergelens/internal/database"
	"github.com/mergelens/mergelens/internal/gitlab"
	"github.com/mergelens/mergelens/internal/jobqueue"
	"github.com/mergelens/mergelens/internal/logging"
	"github.com/mergelens/mergelens/internal/poller"
	"github.com/mergelens/mergelens/internal/review"
	"github.com/mergelens/mergelens/internal/store"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the MergeLens server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override the configured port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := database.OpenPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open job queue pool: %w", err)
	}
	defer pool.Close()

	users := store.NewUserStore(db)
	settings := store.NewSettingsStore(db)
	reviews := store.NewReviewStore(db)

	tokens := auth.NewTokenService(db, users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	tokens.StartCleanupScheduler(ctx, cfg.Auth.CleanupInterval)

	registry := review.NewTaskRegistry(time.Hour)

	queue, err := jobqueue.NewQueue(pool, cfg, settings, reviews, registry)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.Migrate(ctx); err != nil {
		return err
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}

	var mrPoller *poller.Poller
	if cfg.Review.PollInterval > 0 {
		glClient, err := gitlab.NewClient(gitlab.Options{
			BaseURL:            cfg.GitLab.URL,
			Token:              cfg.GitLab.Token,
			RateLimitRPS:       cfg.GitLab.RateLimitRPS,
			Timeout:            cfg.GitLab.Timeout,
			InsecureSkipVerify: cfg.GitLab.InsecureSkipVerify,
		})
		if err != nil {
			return fmt.Errorf("failed to create poller gitlab client: %w", err)
		}
		mrPoller = poller.New(glClient, queue, 0, cfg.Review.PollInterval)
		mrPoller.Start()
	}

	server := api.NewServer(cfg, users, settings, reviews, tokens, registry, queue)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	if mrPoller != nil {
		mrPoller.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Job queue did not stop cleanly")
	}
	cancel()

	return server.Shutdown(shutdownCtx)
}
