package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskbarter/backend/internal/models"
)

// TransactionRepo is the append-only audit trail of credit movements.
type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// CreateTx appends a transaction record inside the given transaction.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, from_user, to_user, amount, type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, t.ID, t.FromUser, t.ToUser, t.Amount, t.Type).Scan(&t.CreatedAt)
}

// ListByUser returns transactions where the user is sender or recipient,
// newest first.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, from_user, to_user, amount, type, created_at
		FROM transactions
		WHERE from_user = $1 OR to_user = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.FromUser, &t.ToUser, &t.Amount, &t.Type, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
