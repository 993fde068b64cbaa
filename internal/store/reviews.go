package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mergelens/mergelens/pkg/models"
)

// ReviewStore persists review history
type ReviewStore struct {
	db *sql.DB
}

// NewReviewStore creates a new review store
func NewReviewStore(db *sql.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

// Insert records a completed review
func (s *ReviewStore) Insert(ctx context.Context, record *models.ReviewRecord) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reviews (user_id, project_id, mr_iid, score, critical, warning, suggestion, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, record.UserID, record.ProjectID, record.MRIID, record.Score,
		record.Critical, record.Warning, record.Suggestion, record.Summary).
		Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert review record: %w", err)
	}
	return nil
}

// ListByUser returns a user's most recent reviews
func (s *ReviewStore) ListByUser(ctx context.Context, userID int64, limit int) ([]models.ReviewRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, mr_iid, score, critical, warning, suggestion, summary, created_at
		FROM reviews
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var records []models.ReviewRecord
	for rows.Next() {
		var r models.ReviewRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.ProjectID, &r.MRIID, &r.Score,
			&r.Critical, &r.Warning, &r.Suggestion, &r.Summary, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
