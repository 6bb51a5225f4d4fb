package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/models"
)

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

const escrowColumns = "id, task_id, held_amount, from_user, to_user, status, created_at, updated_at"

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.TaskID, &e.HeldAmount, &e.FromUser, &e.ToUser, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EscrowRepo) CreateTx(ctx context.Context, tx pgx.Tx, e *models.Escrow) error {
	return tx.QueryRow(ctx, `
		INSERT INTO escrows (id, task_id, held_amount, from_user, to_user, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, e.ID, e.TaskID, e.HeldAmount, e.FromUser, e.ToUser, e.Status).Scan(&e.CreatedAt, &e.UpdatedAt)
}

// GetHoldingByTaskForUpdate locks the task's holding escrow row, if any.
// Returns apperr.ErrNotFound when no escrow is currently holding.
func (r *EscrowRepo) GetHoldingByTaskForUpdate(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(tx.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows
		WHERE task_id = $1 AND status = 'holding'
		FOR UPDATE
	`, taskID))
}

// UpdateStatusTx moves a holding escrow to released or refunded. The status
// guard in the WHERE clause makes closing idempotence-safe: a second close
// affects zero rows.
func (r *EscrowRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE escrows SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'holding'
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("escrow already closed", status)
	}
	return nil
}

func (r *EscrowRepo) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(r.pool.QueryRow(ctx, `
		SELECT `+escrowColumns+` FROM escrows WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1
	`, taskID))
}
