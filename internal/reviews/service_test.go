package reviews

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks
// ---------------------------------------------------------------------------

type mockReviews struct {
	mu      sync.Mutex
	reviews []*models.Review
}

func (m *mockReviews) Create(_ context.Context, rev *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rev
	m.reviews = append(m.reviews, &cp)
	return nil
}

func (m *mockReviews) ExistsForTaskAndReviewer(_ context.Context, taskID, fromUser uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.TaskID == taskID && r.FromUser == fromUser {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReviews) ListByToUser(_ context.Context, toUser uuid.UUID) ([]*models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Review
	for _, r := range m.reviews {
		if r.ToUser == toUser {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockTasks struct {
	tasks map[uuid.UUID]*models.Task
}

func (m *mockTasks) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, apperr.ErrNotFound)
	}
	return t, nil
}

func completedTask(creator, assignee uuid.UUID) *models.Task {
	return &models.Task{
		ID:         uuid.New(),
		CreatedBy:  creator,
		AssignedTo: &assignee,
		Status:     models.TaskStatusCompleted,
	}
}

// ---------------------------------------------------------------------------
// Add
// ---------------------------------------------------------------------------

func TestAdd(t *testing.T) {
	creator := uuid.New()
	assignee := uuid.New()
	task := completedTask(creator, assignee)

	store := &mockReviews{}
	svc := NewService(store, &mockTasks{tasks: map[uuid.UUID]*models.Task{task.ID: task}})
	ctx := context.Background()

	rev, err := svc.Add(ctx, creator, task.ID, assignee, 5, "  great work  ")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rev.Rating != 5 || rev.FromUser != creator || rev.ToUser != assignee {
		t.Errorf("review fields mismatch: %+v", rev)
	}
	if rev.Comment != "great work" {
		t.Errorf("comment should be trimmed, got %q", rev.Comment)
	}

	// Both parties may review, once each.
	if _, err := svc.Add(ctx, assignee, task.ID, creator, 4, ""); err != nil {
		t.Fatalf("Add (assignee): %v", err)
	}
	if _, err := svc.Add(ctx, creator, task.ID, assignee, 3, ""); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for second review by same reviewer, got: %v", err)
	}

	got, err := svc.ListForUser(ctx, assignee)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("reviews for assignee: got %d, want 1", len(got))
	}
}

func TestAdd_Guards(t *testing.T) {
	creator := uuid.New()
	assignee := uuid.New()
	stranger := uuid.New()

	completed := completedTask(creator, assignee)
	inProgress := completedTask(creator, assignee)
	inProgress.Status = models.TaskStatusInProgress

	svc := NewService(&mockReviews{}, &mockTasks{tasks: map[uuid.UUID]*models.Task{
		completed.ID:  completed,
		inProgress.ID: inProgress,
	}})
	ctx := context.Background()

	if _, err := svc.Add(ctx, creator, completed.ID, assignee, 0, ""); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for rating 0, got: %v", err)
	}
	if _, err := svc.Add(ctx, creator, completed.ID, assignee, 6, ""); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for rating 6, got: %v", err)
	}

	// Only completed tasks can be reviewed.
	if _, err := svc.Add(ctx, creator, inProgress.ID, assignee, 4, ""); !apperr.IsConflict(err) {
		t.Errorf("expected conflict for reviewing an unfinished task, got: %v", err)
	}

	// Outsiders cannot review, and participants cannot review themselves.
	if _, err := svc.Add(ctx, stranger, completed.ID, assignee, 4, ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for non-participant reviewer, got: %v", err)
	}
	if _, err := svc.Add(ctx, creator, completed.ID, creator, 4, ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden for self-review, got: %v", err)
	}

	// The reviewed user must be the other participant.
	if _, err := svc.Add(ctx, creator, completed.ID, stranger, 4, ""); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for reviewing an outsider, got: %v", err)
	}
}
