// Package reviews captures post-completion ratings. Reviews are gated by the
// task lifecycle but are not part of the state machine itself.
package reviews

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/models"
)

// ReviewStore is the repository surface the service needs.
type ReviewStore interface {
	Create(ctx context.Context, rev *models.Review) error
	ExistsForTaskAndReviewer(ctx context.Context, taskID, fromUser uuid.UUID) (bool, error)
	ListByToUser(ctx context.Context, toUser uuid.UUID) ([]*models.Review, error)
}

// TaskGetter resolves the task a review is attached to.
type TaskGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

type Service struct {
	Reviews ReviewStore
	Tasks   TaskGetter
}

func NewService(reviews ReviewStore, tasks TaskGetter) *Service {
	return &Service{Reviews: reviews, Tasks: tasks}
}

// Add records reviewer's rating of toUser for a completed task. Only task
// participants may review, only each other, and only once per task.
func (s *Service) Add(ctx context.Context, reviewer, taskID, toUser uuid.UUID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	task, err := s.Tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskStatusCompleted {
		return nil, apperr.Conflict("task is not completed", task.Status)
	}
	if !task.IsParticipant(reviewer) || reviewer == toUser {
		return nil, apperr.ErrForbidden
	}
	if !task.IsParticipant(toUser) {
		return nil, apperr.Validation("reviewed user did not take part in this task")
	}
	exists, err := s.Reviews.ExistsForTaskAndReviewer(ctx, taskID, reviewer)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("task already reviewed", task.Status)
	}

	rev := &models.Review{
		ID:       uuid.New(),
		TaskID:   taskID,
		FromUser: reviewer,
		ToUser:   toUser,
		Rating:   rating,
		Comment:  strings.TrimSpace(comment),
	}
	if err := s.Reviews.Create(ctx, rev); err != nil {
		return nil, err
	}
	return rev, nil
}

// ListForUser returns the reviews received by a user, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Review, error) {
	return s.Reviews.ListByToUser(ctx, userID)
}
