// Package escrow holds task rewards between debit and payout. Open is the
// only way credits leave a spendable balance for a task, and Release/Refund
// are the only way a holding escrow changes status — the state machine calls
// them from its complete/cancel/withdraw paths and dispute resolution calls
// them with an admin-chosen outcome.
package escrow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/models"
)

// Store is the minimal escrow repository interface.
type Store interface {
	CreateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error
	GetHoldingByTaskForUpdate(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error)
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// Ledger is the subset of ledger operations escrow needs.
type Ledger interface {
	Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) error
	Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) error
	Record(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int, txType string) (*models.Transaction, error)
}

type Service struct {
	Escrows Store
	Ledger  Ledger
}

func NewService(escrows Store, l Ledger) *Service {
	return &Service{Escrows: escrows, Ledger: l}
}

// Open debits the creator by amount and creates a holding escrow for the
// task. Call within the transaction that also moves the task status; if
// either half fails the caller's rollback undoes both. Fails with Conflict
// if the task already has a holding escrow, so a double start can never
// stack two holds.
func (s *Service) Open(ctx context.Context, tx pgx.Tx, taskID, fromUser, toUser uuid.UUID, amount int) (*models.Escrow, error) {
	if amount <= 0 {
		return nil, apperr.Validation("escrow amount must be positive")
	}
	if _, err := s.Escrows.GetHoldingByTaskForUpdate(ctx, tx, taskID); err == nil {
		return nil, apperr.Conflict("escrow already holding for task", models.EscrowStatusHolding)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if err := s.Ledger.Debit(ctx, tx, fromUser, amount); err != nil {
		return nil, err
	}
	e := &models.Escrow{
		ID:         uuid.New(),
		TaskID:     taskID,
		HeldAmount: amount,
		FromUser:   fromUser,
		ToUser:     toUser,
		Status:     models.EscrowStatusHolding,
	}
	if err := s.Escrows.CreateTx(ctx, tx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Release pays the held amount to the assignee and records an escrow_release
// transaction from creator to assignee.
func (s *Service) Release(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error) {
	return s.close(ctx, tx, taskID, models.EscrowStatusReleased)
}

// Refund restores the held amount to the creator. The refund transaction
// records the escrow's nominal parties (assignee -> creator), matching how
// the audit trail reads even though the assignee's balance never moved.
func (s *Service) Refund(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error) {
	return s.close(ctx, tx, taskID, models.EscrowStatusRefunded)
}

func (s *Service) close(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, outcome string) (*models.Escrow, error) {
	e, err := s.Escrows.GetHoldingByTaskForUpdate(ctx, tx, taskID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Conflict("no holding escrow for task", "")
		}
		return nil, err
	}
	if err := s.Escrows.UpdateStatusTx(ctx, tx, e.ID, outcome); err != nil {
		return nil, err
	}
	e.Status = outcome

	switch outcome {
	case models.EscrowStatusReleased:
		if err := s.Ledger.Credit(ctx, tx, e.ToUser, e.HeldAmount); err != nil {
			return nil, err
		}
		if _, err := s.Ledger.Record(ctx, tx, e.FromUser, e.ToUser, e.HeldAmount, models.TransactionEscrowRelease); err != nil {
			return nil, err
		}
	case models.EscrowStatusRefunded:
		if err := s.Ledger.Credit(ctx, tx, e.FromUser, e.HeldAmount); err != nil {
			return nil, err
		}
		if _, err := s.Ledger.Record(ctx, tx, e.ToUser, e.FromUser, e.HeldAmount, models.TransactionRefund); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Validation("invalid escrow outcome %q", outcome)
	}
	return e, nil
}
