package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/middleware"
	"github.com/taskbarter/backend/internal/models"
	"github.com/taskbarter/backend/internal/tasks"
)

// EscrowViewer reads the latest escrow recorded for a task.
type EscrowViewer interface {
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*models.Escrow, error)
}

// TaskHandler serves the /api/v1/tasks endpoints.
type TaskHandler struct {
	Svc     *tasks.Service
	Escrows EscrowViewer
	Logger  *slog.Logger
}

func NewTaskHandler(svc *tasks.Service, escrows EscrowViewer, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{Svc: svc, Escrows: escrows, Logger: logger}
}

type createTaskRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Reward      int       `json:"reward"`
	Deadline    time.Time `json:"deadline"`
	MaxRequests int       `json:"max_requests"`
}

// Create handles POST /api/v1/tasks.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	task, err := h.Svc.Create(r.Context(), actor.ID, tasks.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Reward:      req.Reward,
		Deadline:    req.Deadline,
		MaxRequests: req.MaxRequests,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// List handles GET /api/v1/tasks. Supports ?created_by=me, ?assigned_to=me
// and ?status= filters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var filter tasks.ListFilter
	q := r.URL.Query()
	switch {
	case q.Get("created_by") == "me":
		filter.CreatedBy = &actor.ID
	case q.Get("assigned_to") == "me":
		filter.AssignedTo = &actor.ID
	default:
		filter.Status = q.Get("status")
	}
	list, err := h.Svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type taskDetailResponse struct {
	Task   *models.Task   `json:"task"`
	Escrow *models.Escrow `json:"escrow,omitempty"`
}

// Get handles GET /api/v1/tasks/{id}. The response carries the task's
// latest escrow, if one was ever opened for it.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task id"})
		return
	}
	task, err := h.Svc.Get(r.Context(), taskID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	esc, err := h.Escrows.GetByTaskID(r.Context(), taskID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, taskDetailResponse{Task: task, Escrow: esc})
}

// Request handles POST /api/v1/tasks/{id}/request.
func (h *TaskHandler) Request(w http.ResponseWriter, r *http.Request) {
	h.actorTaskOp(w, r, h.Svc.Request)
}

// Accept handles POST /api/v1/tasks/{id}/accept/{userId}.
func (h *TaskHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.actorTaskUserOp(w, r, h.Svc.Accept)
}

// Reject handles POST /api/v1/tasks/{id}/reject/{userId}.
func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.actorTaskUserOp(w, r, h.Svc.Reject)
}

// Start handles POST /api/v1/tasks/{id}/start.
func (h *TaskHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.actorTaskOp(w, r, h.Svc.Start)
}

type extendDeadlineRequest struct {
	NewDeadline time.Time `json:"new_deadline"`
}

// ExtendDeadline handles PATCH /api/v1/tasks/{id}/extend.
func (h *TaskHandler) ExtendDeadline(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task id"})
		return
	}
	var req extendDeadlineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	task, err := h.Svc.ExtendDeadline(r.Context(), actor.ID, taskID, req.NewDeadline)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Complete handles POST /api/v1/tasks/{id}/complete.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.actorTaskOp(w, r, h.Svc.Complete)
}

// Cancel handles POST /api/v1/tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.actorTaskOp(w, r, h.Svc.Cancel)
}

// Withdraw handles POST /api/v1/tasks/{id}/withdraw.
func (h *TaskHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.actorTaskOp(w, r, h.Svc.Withdraw)
}

// actorTaskOp runs a (actor, taskID) state-machine operation and writes the
// updated task.
func (h *TaskHandler) actorTaskOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor, taskID uuid.UUID) (*models.Task, error)) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task id"})
		return
	}
	task, err := op(r.Context(), actor.ID, taskID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// actorTaskUserOp runs a (actor, taskID, targetUser) operation.
func (h *TaskHandler) actorTaskUserOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, actor, taskID, targetUser uuid.UUID) (*models.Task, error)) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	taskID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task id"})
		return
	}
	targetUser, ok := pathUUID(r, "userId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	task, err := op(r.Context(), actor.ID, taskID, targetUser)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
