package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/disputes"
	"github.com/taskbarter/backend/internal/middleware"
)

// DisputeHandler serves the user-facing dispute endpoints.
type DisputeHandler struct {
	Svc    *disputes.Service
	Logger *slog.Logger
}

func NewDisputeHandler(svc *disputes.Service, logger *slog.Logger) *DisputeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DisputeHandler{Svc: svc, Logger: logger}
}

type raiseDisputeRequest struct {
	TaskID      string `json:"task_id"`
	AgainstUser string `json:"against_user"`
	Reason      string `json:"reason"`
}

// Raise handles POST /api/v1/disputes.
func (h *DisputeHandler) Raise(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req raiseDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task_id"})
		return
	}
	againstUser, err := uuid.Parse(req.AgainstUser)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid against_user"})
		return
	}
	d, err := h.Svc.Raise(r.Context(), actor.ID, taskID, againstUser, req.Reason)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListMine handles GET /api/v1/disputes/my.
func (h *DisputeHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	list, err := h.Svc.ListMine(r.Context(), actor.ID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
