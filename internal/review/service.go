package review

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mergelens/mergelens/internal/ai"
	"github.com/mergelens/mergelens/internal/diff"
	"github.com/mergelens/mergelens/internal/gitlab"
	"github.com/mergelens/mergelens/internal/redact"
	"github.com/mergelens/mergelens/internal/retry"
	"github.com/mergelens/mergelens/pkg/models"
)

// Limits caps how much of an MR gets sent to the LLM
type Limits struct {
	MaxFiles     int
	MaxDiffBytes int
}

// DefaultLimits returns the standard review limits
func DefaultLimits() Limits {
	return Limits{MaxFiles: 50, MaxDiffBytes: 100_000}
}

// Generator produces a model response for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Service runs the review pipeline for one MR: fetch diffs, redact,
// annotate, prompt, parse, validate, aggregate.
type Service struct {
	gitlab   *gitlab.Client
	reviewer Generator
	redactor *redact.Redactor
	rules    []string
	limits   Limits
}

// NewService wires a review pipeline
func NewService(gl *gitlab.Client, reviewer Generator, redactor *redact.Redactor, rules []string, limits Limits) *Service {
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = DefaultLimits().MaxFiles
	}
	if limits.MaxDiffBytes <= 0 {
		limits.MaxDiffBytes = DefaultLimits().MaxDiffBytes
	}
	return &Service{
		gitlab:   gl,
		reviewer: reviewer,
		redactor: redactor,
		rules:    rules,
		limits:   limits,
	}
}

// ReviewMergeRequest reviews every reviewable file in an MR. Per-file
// failures are recorded and skipped; fatal provider errors abort the run.
func (s *Service) ReviewMergeRequest(ctx context.Context, projectID, mrIID int, postComments bool) (*models.ReviewResult, error) {
	pid := strconv.Itoa(projectID)

	_, refs, err := s.gitlab.GetMergeRequest(ctx, pid, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch merge request: %w", err)
	}

	changes, err := s.gitlab.GetMergeRequestChanges(ctx, pid, mrIID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch merge request changes: %w", err)
	}

	result := &models.ReviewResult{
		ProjectID:  projectID,
		MRIID:      mrIID,
		FileErrors: make(map[string]string),
	}

	reviewed := 0
	for _, change := range changes {
		if reviewed >= s.limits.MaxFiles {
			result.Stats.FilesSkipped++
			continue
		}
		if change.DeletedFile || change.Diff == "" {
			result.Stats.FilesSkipped++
			continue
		}
		if len(change.Diff) > s.limits.MaxDiffBytes {
			log.Debug().Str("file", change.NewPath).Int("bytes", len(change.Diff)).Msg("Skipping oversized diff")
			result.Stats.FilesSkipped++
			continue
		}

		comments, err := s.ReviewFile(ctx, change)
		if err != nil {
			if ai.IsFatal(err) {
				return nil, fmt.Errorf("review aborted on %s: %w", change.NewPath, err)
			}
			result.FileErrors[change.NewPath] = err.Error()
			continue
		}

		reviewed++
		result.Stats.FilesReviewed++
		result.Files = append(result.Files, models.FileReview{
			FilePath: change.NewPath,
			Comments: comments,
		})

		for _, comment := range comments {
			switch comment.Severity {
			case models.SeverityCritical:
				result.Stats.Critical++
			case models.SeverityWarning:
				result.Stats.Warning++
			case models.SeveritySuggestion:
				result.Stats.Suggestion++
			}
		}
	}

	result.Score = Score(result.Stats)
	result.Summary = Summarize(result)

	if postComments {
		s.postComments(ctx, pid, mrIID, refs, result)
		now := time.Now()
		result.PostedAt = &now
	}

	return result, nil
}

// ReviewFile runs the pipeline for a single changed file
func (s *Service) ReviewFile(ctx context.Context, change models.DiffFile) ([]models.ReviewComment, error) {
	diffText := change.Diff
	if s.redactor != nil {
		var findings int
		diffText, findings = s.redactor.Redact(diffText)
		if findings > 0 {
			log.Info().Str("file", change.NewPath).Int("findings", findings).Msg("Redacted secrets before review")
		}
	}

	annotated := diff.Annotate(diffText)
	prompt := ai.BuildReviewPrompt(change.NewPath, annotated, s.rules)

	var response string
	retryResult := retry.WithBackoff(ctx, retry.LLMConfig(), func() error {
		var genErr error
		response, genErr = s.reviewer.Generate(ctx, prompt)
		return genErr
	})
	if !retryResult.Success {
		return nil, retryResult.LastError
	}

	comments, err := ai.ParseReviewResponse(change.NewPath, response)
	if err != nil {
		return nil, err
	}

	// Drop comments citing lines the diff does not contain
	newLines, _ := diff.CommentableLines(diffText)
	valid := comments[:0]
	for _, comment := range comments {
		if newLines[comment.Line] {
			valid = append(valid, comment)
		} else {
			log.Debug().
				Str("file", change.NewPath).
				Int("line", comment.Line).
				Msg("Dropping comment outside the diff")
		}
	}

	return valid, nil
}

// postComments posts per-line discussions and a summary note. Posting
// failures are logged but never fail the completed review.
func (s *Service) postComments(ctx context.Context, projectID string, mrIID int, refs *models.DiffRefs, result *models.ReviewResult) {
	for _, file := range result.Files {
		for _, comment := range file.Comments {
			body := fmt.Sprintf("**[%s]** %s", comment.Severity, comment.Description)
			if err := s.gitlab.PostLineComment(ctx, projectID, mrIID, refs, comment.FilePath, comment.Line, "new", body); err != nil {
				log.Warn().
					Err(err).
					Str("file", comment.FilePath).
					Int("line", comment.Line).
					Msg("Failed to post review comment")
			}
		}
	}

	if _, err := s.gitlab.CreateNote(ctx, projectID, mrIID, result.Summary); err != nil {
		log.Warn().Err(err).Msg("Failed to post review summary")
	}
}
