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

// ErrVersionConflict is returned when an optimistic-version write loses a
// race. Callers inside a FOR UPDATE transaction should never see it.
var ErrVersionConflict = errors.New("task version conflict")

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = "id, title, description, reward, created_by, assigned_to, requests, status, deadline, completion_confirmations, max_requests, version, created_at, updated_at"

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Reward, &t.CreatedBy, &t.AssignedTo, &t.Requests, &t.Status, &t.Deadline, &t.CompletionConfirmations, &t.MaxRequests, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, reward, created_by, assigned_to, requests, status, deadline, completion_confirmations, max_requests, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, t.ID, t.Title, t.Description, t.Reward, t.CreatedBy, t.AssignedTo, t.Requests, t.Status, t.Deadline, t.CompletionConfirmations, t.MaxRequests, t.Version).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1
	`, id))
}

// GetByIDForUpdate locks the task row until the transaction ends. All state
// transitions go through this so transitions on one task are serialized.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE
	`, id))
}

// UpdateTx writes the task back, checking and bumping the version column.
// The version guard backs up the row lock against any non-locking writer.
func (r *TaskRepo) UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks SET title = $2, description = $3, reward = $4, assigned_to = $5, requests = $6,
			status = $7, deadline = $8, completion_confirmations = $9, max_requests = $10,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $11
	`, t.ID, t.Title, t.Description, t.Reward, t.AssignedTo, t.Requests, t.Status, t.Deadline, t.CompletionConfirmations, t.MaxRequests, t.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	t.Version++
	return nil
}

func (r *TaskRepo) List(ctx context.Context) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC`)
}

func (r *TaskRepo) ListByCreator(ctx context.Context, createdBy uuid.UUID) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE created_by = $1 ORDER BY created_at DESC`, createdBy)
}

func (r *TaskRepo) ListByAssignee(ctx context.Context, assignedTo uuid.UUID) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE assigned_to = $1 ORDER BY created_at DESC`, assignedTo)
}

func (r *TaskRepo) ListByStatus(ctx context.Context, status string) ([]*models.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at DESC`, status)
}

func (r *TaskRepo) query(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Reward, &t.CreatedBy, &t.AssignedTo, &t.Requests, &t.Status, &t.Deadline, &t.CompletionConfirmations, &t.MaxRequests, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
