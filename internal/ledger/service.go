// Package ledger owns every mutation of user credit balances. Nothing else
// in the codebase touches the credits column, so the conservation invariant
// (sum of balances plus holding escrow amounts is constant) reduces to the
// correctness of the operations here.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/models"
)

// ErrInsufficientFunds is returned when a debit would make a balance negative.
var ErrInsufficientFunds = errors.New("insufficient credits")

// UserStore is the minimal user repository interface the ledger needs.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.User, error)
	DeductCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// TransactionStore appends audit records.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
}

type Service struct {
	Users        UserStore
	Transactions TransactionStore
}

func NewService(users UserStore, transactions TransactionStore) *Service {
	return &Service{Users: users, Transactions: transactions}
}

// Debit locks the user row, verifies the balance covers amount, and deducts.
// Call within a transaction; the caller decides whether a Transaction record
// accompanies the movement.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return apperr.Validation("debit amount must be positive")
	}
	u, err := s.Users.GetByIDForUpdate(ctx, tx, userID)
	if err != nil {
		return err
	}
	if u.Credits < amount {
		return ErrInsufficientFunds
	}
	_, err = s.Users.DeductCredits(ctx, tx, userID, amount)
	return err
}

// Credit adds amount to the user's balance. Call within a transaction.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return apperr.Validation("credit amount must be positive")
	}
	_, err := s.Users.AddCredits(ctx, tx, userID, amount)
	return err
}

// Record appends the audit record mirroring a movement already applied in
// the same transaction.
func (s *Service) Record(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int, txType string) (*models.Transaction, error) {
	rec := &models.Transaction{
		ID:       uuid.New(),
		FromUser: from,
		ToUser:   to,
		Amount:   amount,
		Type:     txType,
	}
	if err := s.Transactions.CreateTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Send moves amount from one user to another and records a send transaction.
// Both rows are locked in deterministic UUID order to avoid deadlocks when
// two transfers cross.
func (s *Service) Send(ctx context.Context, tx pgx.Tx, from, to uuid.UUID, amount int) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive")
	}
	if from == to {
		return nil, apperr.Validation("cannot send credits to yourself")
	}

	var sender *models.User
	first, second := from, to
	if second.String() < first.String() {
		first, second = second, first
	}
	for _, id := range []uuid.UUID{first, second} {
		u, err := s.Users.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if id == from {
			sender = u
		}
	}
	if sender.Credits < amount {
		return nil, ErrInsufficientFunds
	}
	if _, err := s.Users.DeductCredits(ctx, tx, from, amount); err != nil {
		return nil, err
	}
	if _, err := s.Users.AddCredits(ctx, tx, to, amount); err != nil {
		return nil, err
	}
	return s.Record(ctx, tx, from, to, amount, models.TransactionSend)
}
