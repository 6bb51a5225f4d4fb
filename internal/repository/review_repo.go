package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskbarter/backend/internal/models"
)

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

func (r *ReviewRepo) Create(ctx context.Context, rev *models.Review) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO reviews (id, task_id, from_user, to_user, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, rev.ID, rev.TaskID, rev.FromUser, rev.ToUser, rev.Rating, rev.Comment).Scan(&rev.CreatedAt)
}

// ExistsForTaskAndReviewer reports whether the reviewer already reviewed the task.
func (r *ReviewRepo) ExistsForTaskAndReviewer(ctx context.Context, taskID, fromUser uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM reviews WHERE task_id = $1 AND from_user = $2)
	`, taskID, fromUser).Scan(&exists)
	return exists, err
}

func (r *ReviewRepo) ListByToUser(ctx context.Context, toUser uuid.UUID) ([]*models.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, task_id, from_user, to_user, rating, comment, created_at
		FROM reviews WHERE to_user = $1 ORDER BY created_at DESC
	`, toUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Review
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.TaskID, &rev.FromUser, &rev.ToUser, &rev.Rating, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rev)
	}
	return list, rows.Err()
}
