// Package disputes lets task participants escalate a disagreement to an
// admin. Resolution is the single sanctioned way an escrow changes hands
// outside the state machine's own complete/cancel/withdraw paths.
package disputes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/events"
	"github.com/taskbarter/backend/internal/models"
)

// DisputeStore is the repository surface the service needs.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Dispute, error)
	MarkResolvedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, resolution string) error
	ListByRaisedBy(ctx context.Context, userID uuid.UUID) ([]*models.Dispute, error)
	List(ctx context.Context) ([]*models.Dispute, error)
}

// TaskGetter resolves the disputed task.
type TaskGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// Escrow is the privileged close surface dispute resolution is allowed to use.
type Escrow interface {
	Release(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error)
	Refund(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertNotifyTxFunc enqueues a notify job within the given transaction.
type InsertNotifyTxFunc func(ctx context.Context, tx pgx.Tx, args events.NotifyJobArgs) error

type Service struct {
	db           TxBeginner
	disputes     DisputeStore
	tasks        TaskGetter
	escrow       Escrow
	insertNotify InsertNotifyTxFunc
}

func NewService(db TxBeginner, disputes DisputeStore, tasks TaskGetter, esc Escrow, insertNotify InsertNotifyTxFunc) *Service {
	return &Service{db: db, disputes: disputes, tasks: tasks, escrow: esc, insertNotify: insertNotify}
}

// Raise opens a dispute on a task. Only the task's participants may raise
// one, and only against the other participant.
func (s *Service) Raise(ctx context.Context, actor, taskID, againstUser uuid.UUID, reason string) (*models.Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason is required")
	}
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsParticipant(actor) {
		return nil, apperr.ErrForbidden
	}
	if !task.IsParticipant(againstUser) || againstUser == actor {
		return nil, apperr.Validation("dispute must be against the task's other participant")
	}

	d := &models.Dispute{
		ID:          uuid.New(),
		TaskID:      taskID,
		RaisedBy:    actor,
		AgainstUser: againstUser,
		Reason:      reason,
		Status:      models.DisputeStatusOpen,
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ListMine returns the disputes the user raised.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*models.Dispute, error) {
	return s.disputes.ListByRaisedBy(ctx, userID)
}

// ListAll returns every dispute; admin only (enforced by the route).
func (s *Service) ListAll(ctx context.Context) ([]*models.Dispute, error) {
	return s.disputes.List(ctx)
}

// Resolve closes a dispute with the admin's remarks and, when the disputed
// task still has a holding escrow, applies the chosen outcome: release pays
// the assignee, refund restores the creator. A dispute over a task whose
// escrow already closed resolves with no credit movement.
func (s *Service) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, resolution, action string) (*models.Dispute, error) {
	if action != models.DisputeActionRelease && action != models.DisputeActionRefund {
		return nil, apperr.Validation("action must be %q or %q", models.DisputeActionRelease, models.DisputeActionRefund)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	d, err := s.disputes.GetByIDForUpdate(ctx, tx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DisputeStatusResolved {
		return nil, apperr.Conflict("dispute already resolved", d.Status)
	}
	if err := s.disputes.MarkResolvedTx(ctx, tx, d.ID, resolution); err != nil {
		return nil, err
	}
	d.Status = models.DisputeStatusResolved
	d.Resolution = resolution

	switch action {
	case models.DisputeActionRelease:
		_, err = s.escrow.Release(ctx, tx, d.TaskID)
	case models.DisputeActionRefund:
		_, err = s.escrow.Refund(ctx, tx, d.TaskID)
	}
	if err != nil && !apperr.IsConflict(err) {
		return nil, err
	}

	if s.insertNotify != nil {
		payload, err := json.Marshal(map[string]string{"action": action, "resolution": resolution})
		if err != nil {
			return nil, fmt.Errorf("marshal resolution payload: %w", err)
		}
		if err := s.insertNotify(ctx, tx, events.NotifyJobArgs{
			Event:   events.KindDisputeResolved,
			TaskID:  &d.TaskID,
			ActorID: adminID,
			Payload: payload,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d, nil
}
