// Package tasks owns the task lifecycle state machine. Every mutating
// operation runs in a single transaction: the task row is locked FOR UPDATE,
// the transition is validated against the current status, escrow and ledger
// effects are applied through the same transaction, and a notification event
// is enqueued transactionally. Either everything commits or nothing does.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/events"
	"github.com/taskbarter/backend/internal/models"
)

// TaskStore is the repository surface the state machine needs.
type TaskStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	List(ctx context.Context) ([]*models.Task, error)
	ListByCreator(ctx context.Context, createdBy uuid.UUID) ([]*models.Task, error)
	ListByAssignee(ctx context.Context, assignedTo uuid.UUID) ([]*models.Task, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Task, error)
}

// Escrow is the subset of escrow operations the state machine invokes.
type Escrow interface {
	Open(ctx context.Context, tx pgx.Tx, taskID, fromUser, toUser uuid.UUID, amount int) (*models.Escrow, error)
	Release(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error)
	Refund(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertNotifyTxFunc enqueues a notify job within the given transaction.
// Provided by main using river.Client.InsertTx.
type InsertNotifyTxFunc func(ctx context.Context, tx pgx.Tx, args events.NotifyJobArgs) error

type Service struct {
	db           TxBeginner
	tasks        TaskStore
	escrow       Escrow
	insertNotify InsertNotifyTxFunc
	log          *slog.Logger
}

// NewService creates the state machine service. insertNotify is typically a
// closure over river.Client.InsertTx; pass nil to disable event emission.
func NewService(db TxBeginner, tasks TaskStore, esc Escrow, insertNotify InsertNotifyTxFunc, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, tasks: tasks, escrow: esc, insertNotify: insertNotify, log: log}
}

// CreateParams carries the creator-supplied fields of a new task.
type CreateParams struct {
	Title       string
	Description string
	Reward      int
	Deadline    time.Time
	MaxRequests int
}

// Create validates params and persists a new open task owned by actor.
func (s *Service) Create(ctx context.Context, actor uuid.UUID, p CreateParams) (*models.Task, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	if p.Title == "" {
		return nil, apperr.Validation("title is required")
	}
	if len(p.Title) > models.MaxTitleLen {
		return nil, apperr.Validation("title must be at most %d characters", models.MaxTitleLen)
	}
	if p.Description == "" {
		return nil, apperr.Validation("description is required")
	}
	if len(p.Description) > models.MaxDescriptionLen {
		return nil, apperr.Validation("description must be at most %d characters", models.MaxDescriptionLen)
	}
	if p.Reward < models.MinReward || p.Reward > models.MaxReward {
		return nil, apperr.Validation("reward must be between %d and %d", models.MinReward, models.MaxReward)
	}
	if !p.Deadline.After(time.Now()) {
		return nil, apperr.Validation("deadline must be in the future")
	}
	if p.MaxRequests == 0 {
		p.MaxRequests = models.DefaultMaxRequests
	}
	if p.MaxRequests < 1 || p.MaxRequests > models.MaxMaxRequests {
		return nil, apperr.Validation("max_requests must be between 1 and %d", models.MaxMaxRequests)
	}

	task := &models.Task{
		ID:          uuid.New(),
		Title:       p.Title,
		Description: p.Description,
		Reward:      p.Reward,
		CreatedBy:   actor,
		Status:      models.TaskStatusOpen,
		Deadline:    p.Deadline,
		MaxRequests: p.MaxRequests,
		Version:     1,
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.tasks.CreateTx(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := s.notify(ctx, tx, events.KindTaskCreated, task, actor); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// Request adds actor to the task's pending requests.
func (s *Service) Request(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.CreatedBy == actor {
			return apperr.Conflict("cannot request your own task", task.Status)
		}
		if task.HasRequestFrom(actor) {
			return apperr.Conflict("already requested", task.Status)
		}
		if !task.IsAcceptingRequests() {
			return apperr.Conflict("task is not accepting requests", task.Status)
		}
		task.Requests = append(task.Requests, actor)
		task.Status = models.TaskStatusRequested
		return s.notify(ctx, tx, events.KindTaskRequested, task, actor)
	})
}

// Accept assigns targetUser to the task. Only the creator may accept, and
// only a user with a pending request may be accepted. All other pending
// requests are discarded; notifying the losers is the caller's concern.
func (s *Service) Accept(ctx context.Context, actor, taskID, targetUser uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.CreatedBy != actor {
			return apperr.ErrForbidden
		}
		if task.AssignedTo != nil {
			return apperr.Conflict("task already assigned", task.Status)
		}
		if task.Status != models.TaskStatusOpen && task.Status != models.TaskStatusRequested {
			return apperr.Conflict("task cannot be assigned", task.Status)
		}
		if !task.HasRequestFrom(targetUser) {
			return apperr.Conflict("user did not request this task", task.Status)
		}
		task.AssignedTo = &targetUser
		task.Requests = nil
		task.Status = models.TaskStatusAssigned
		return s.notify(ctx, tx, events.KindTaskAssigned, task, actor)
	})
}

// Reject removes targetUser from the pending requests. When the last request
// is rejected and nobody is assigned, the task goes back to open.
func (s *Service) Reject(ctx context.Context, actor, taskID, targetUser uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.CreatedBy != actor {
			return apperr.ErrForbidden
		}
		kept := task.Requests[:0]
		for _, id := range task.Requests {
			if id != targetUser {
				kept = append(kept, id)
			}
		}
		task.Requests = kept
		if len(task.Requests) == 0 && task.AssignedTo == nil && task.Status == models.TaskStatusRequested {
			task.Status = models.TaskStatusOpen
		}
		return nil
	})
}

// Start moves an assigned task to in_progress, debiting the creator's
// balance into a holding escrow. Debit, escrow creation and the status
// change commit together or not at all.
func (s *Service) Start(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.CreatedBy != actor {
			return apperr.ErrForbidden
		}
		if task.AssignedTo == nil {
			return apperr.Conflict("no user assigned", task.Status)
		}
		if task.Status != models.TaskStatusAssigned {
			return apperr.Conflict("task not ready to start", task.Status)
		}
		if _, err := s.escrow.Open(ctx, tx, task.ID, task.CreatedBy, *task.AssignedTo, task.Reward); err != nil {
			return err
		}
		task.Status = models.TaskStatusInProgress
		return s.notify(ctx, tx, events.KindTaskStarted, task, actor)
	})
}

// ExtendDeadline replaces the deadline on a non-terminal task. The held
// escrow amount, if any, is untouched.
func (s *Service) ExtendDeadline(ctx context.Context, actor, taskID uuid.UUID, newDeadline time.Time) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.CreatedBy != actor {
			return apperr.ErrForbidden
		}
		if task.IsTerminal() {
			return apperr.Conflict("cannot extend a finished task", task.Status)
		}
		if !newDeadline.After(time.Now()) {
			return apperr.Validation("new deadline must be in the future")
		}
		task.Deadline = newDeadline
		return nil
	})
}

// Complete records actor's completion confirmation. Re-confirming is a
// no-op. Once both the creator and the assignee have confirmed, the task
// completes and the escrow is released to the assignee — unilateral claims
// never move credits.
func (s *Service) Complete(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.Status != models.TaskStatusInProgress {
			return apperr.Conflict("task not in progress", task.Status)
		}
		if !task.IsParticipant(actor) {
			return apperr.ErrForbidden
		}
		if !task.HasConfirmationFrom(actor) {
			task.CompletionConfirmations = append(task.CompletionConfirmations, actor)
		}
		if !task.HasConfirmationFrom(task.CreatedBy) || !task.HasConfirmationFrom(*task.AssignedTo) {
			return nil
		}
		task.Status = models.TaskStatusCompleted
		if _, err := s.escrow.Release(ctx, tx, task.ID); err != nil {
			return err
		}
		return s.notify(ctx, tx, events.KindTaskCompleted, task, actor)
	})
}

// Cancel moves any unfinished task to cancelled, refunding the holding
// escrow to the creator if the task was started.
func (s *Service) Cancel(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.CreatedBy != actor {
			return apperr.ErrForbidden
		}
		if task.Status == models.TaskStatusCompleted {
			return apperr.Conflict("cannot cancel completed task", task.Status)
		}
		if task.Status == models.TaskStatusCancelled {
			return apperr.Conflict("task already cancelled", task.Status)
		}
		if err := s.refundIfHolding(ctx, tx, task); err != nil {
			return err
		}
		task.Status = models.TaskStatusCancelled
		return s.notify(ctx, tx, events.KindTaskCancelled, task, actor)
	})
}

// Withdraw lets the assignee walk away from an assigned or started task.
// A started task's escrow is refunded to the creator; the task then returns
// to requested (if requests are pending) or open.
func (s *Service) Withdraw(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error) {
	return s.transition(ctx, taskID, func(tx pgx.Tx, task *models.Task) error {
		if task.AssignedTo == nil || *task.AssignedTo != actor {
			return apperr.ErrForbidden
		}
		if task.Status != models.TaskStatusAssigned && task.Status != models.TaskStatusInProgress {
			return apperr.Conflict("cannot withdraw from task at this stage", task.Status)
		}
		if task.Status == models.TaskStatusInProgress {
			if err := s.refundIfHolding(ctx, tx, task); err != nil {
				return err
			}
		}
		task.AssignedTo = nil
		// Stale confirmations must not carry over to a future assignee.
		task.CompletionConfirmations = nil
		if len(task.Requests) > 0 {
			task.Status = models.TaskStatusRequested
		} else {
			task.Status = models.TaskStatusOpen
		}
		return s.notify(ctx, tx, events.KindTaskWithdrawn, task, actor)
	})
}

// refundIfHolding refunds the task's holding escrow if one exists. A task
// whose escrow was already closed by dispute resolution has nothing to
// refund and that is not an error.
func (s *Service) refundIfHolding(ctx context.Context, tx pgx.Tx, task *models.Task) error {
	_, err := s.escrow.Refund(ctx, tx, task.ID)
	if err != nil && !apperr.IsConflict(err) {
		return err
	}
	return nil
}

// transition runs fn against the locked task row and persists the result.
func (s *Service) transition(ctx context.Context, taskID uuid.UUID, fn func(tx pgx.Tx, task *models.Task) error) (*models.Task, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := s.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if err := fn(tx, task); err != nil {
		return nil, err
	}
	if err := s.tasks.UpdateTx(ctx, tx, task); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) notify(ctx context.Context, tx pgx.Tx, kind string, task *models.Task, actor uuid.UUID) error {
	if s.insertNotify == nil {
		return nil
	}
	payload, err := json.Marshal(map[string]string{"status": task.Status, "title": task.Title})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return s.insertNotify(ctx, tx, events.NotifyJobArgs{
		Event:   kind,
		TaskID:  &task.ID,
		ActorID: actor,
		Payload: payload,
	})
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// ListFilter selects which tasks List returns. Zero value means all tasks.
type ListFilter struct {
	CreatedBy  *uuid.UUID
	AssignedTo *uuid.UUID
	Status     string
}

// List returns tasks matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*models.Task, error) {
	switch {
	case f.CreatedBy != nil:
		return s.tasks.ListByCreator(ctx, *f.CreatedBy)
	case f.AssignedTo != nil:
		return s.tasks.ListByAssignee(ctx, *f.AssignedTo)
	case f.Status != "":
		if !validStatus(f.Status) {
			return nil, apperr.Validation("unknown status %q", f.Status)
		}
		return s.tasks.ListByStatus(ctx, f.Status)
	default:
		return s.tasks.List(ctx)
	}
}

func validStatus(status string) bool {
	switch status {
	case models.TaskStatusOpen, models.TaskStatusRequested, models.TaskStatusAssigned,
		models.TaskStatusInProgress, models.TaskStatusCompleted, models.TaskStatusCancelled:
		return true
	}
	return false
}
