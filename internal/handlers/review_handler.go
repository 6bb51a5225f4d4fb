package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/middleware"
	"github.com/taskbarter/backend/internal/reviews"
)

// ReviewHandler serves the review endpoints.
type ReviewHandler struct {
	Svc    *reviews.Service
	Logger *slog.Logger
}

func NewReviewHandler(svc *reviews.Service, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{Svc: svc, Logger: logger}
}

type addReviewRequest struct {
	ToUserID string `json:"to_user_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Add handles POST /api/v1/tasks/{id}/review.
func (h *ReviewHandler) Add(w http.ResponseWriter, r *http.Request) {
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
	var req addReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	toUser, err := uuid.Parse(req.ToUserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to_user_id"})
		return
	}
	rev, err := h.Svc.Add(r.Context(), actor.ID, taskID, toUser, req.Rating, req.Comment)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

// ListForUser handles GET /api/v1/reviews/{userId}.
func (h *ReviewHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(r, "userId")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	list, err := h.Svc.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
