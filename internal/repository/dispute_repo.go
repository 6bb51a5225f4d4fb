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

type DisputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *DisputeRepo {
	return &DisputeRepo{pool: pool}
}

const disputeColumns = "id, task_id, raised_by, against_user, reason, status, resolution, created_at, updated_at"

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.TaskID, &d.RaisedBy, &d.AgainstUser, &d.Reason, &d.Status, &d.Resolution, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO disputes (id, task_id, raised_by, against_user, reason, status, resolution)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, d.ID, d.TaskID, d.RaisedBy, d.AgainstUser, d.Reason, d.Status, d.Resolution).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *DisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return scanDispute(r.pool.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the dispute row so two admins cannot resolve it twice.
func (r *DisputeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Dispute, error) {
	return scanDispute(tx.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE
	`, id))
}

// MarkResolvedTx flips an open dispute to resolved with the admin's remarks.
func (r *DisputeRepo) MarkResolvedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, resolution string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE disputes SET status = 'resolved', resolution = $2, updated_at = now()
		WHERE id = $1 AND status = 'open'
	`, id, resolution)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("dispute already resolved", models.DisputeStatusResolved)
	}
	return nil
}

func (r *DisputeRepo) ListByRaisedBy(ctx context.Context, userID uuid.UUID) ([]*models.Dispute, error) {
	return r.query(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE raised_by = $1 ORDER BY created_at DESC`, userID)
}

func (r *DisputeRepo) List(ctx context.Context) ([]*models.Dispute, error) {
	return r.query(ctx, `SELECT `+disputeColumns+` FROM disputes ORDER BY created_at DESC`)
}

func (r *DisputeRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Dispute, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Dispute
	for rows.Next() {
		var d models.Dispute
		if err := rows.Scan(&d.ID, &d.TaskID, &d.RaisedBy, &d.AgainstUser, &d.Reason, &d.Status, &d.Resolution, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}
