// Package credits covers direct user-to-user transfers and the transaction
// history view; escrowed movements live in the escrow package.
package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/events"
	"github.com/taskbarter/backend/internal/ledger"
	"github.com/taskbarter/backend/internal/models"
)

// TransactionLister reads the audit trail.
type TransactionLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error)
}

// UserGetter checks the recipient exists before any balance moves.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// InsertNotifyTxFunc enqueues a notify job within the given transaction.
type InsertNotifyTxFunc func(ctx context.Context, tx pgx.Tx, args events.NotifyJobArgs) error

type Service struct {
	db           TxBeginner
	ledger       *ledger.Service
	users        UserGetter
	transactions TransactionLister
	insertNotify InsertNotifyTxFunc
}

func NewService(db TxBeginner, l *ledger.Service, users UserGetter, transactions TransactionLister, insertNotify InsertNotifyTxFunc) *Service {
	return &Service{db: db, ledger: l, users: users, transactions: transactions, insertNotify: insertNotify}
}

// Send transfers amount from the actor to another user.
func (s *Service) Send(ctx context.Context, actor, toUser uuid.UUID, amount int) (*models.Transaction, error) {
	if _, err := s.users.GetByID(ctx, toUser); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("recipient: %w", apperr.ErrNotFound)
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec, err := s.ledger.Send(ctx, tx, actor, toUser, amount)
	if err != nil {
		return nil, err
	}

	if s.insertNotify != nil {
		payload, err := json.Marshal(map[string]any{"to_user": toUser, "amount": amount})
		if err != nil {
			return nil, fmt.Errorf("marshal send payload: %w", err)
		}
		if err := s.insertNotify(ctx, tx, events.NotifyJobArgs{
			Event:   events.KindCreditsSent,
			ActorID: actor,
			Payload: payload,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// History returns all transactions touching the user, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID)
}
