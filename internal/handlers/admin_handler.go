package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/apperr"
	"github.com/taskbarter/backend/internal/disputes"
	"github.com/taskbarter/backend/internal/middleware"
	"github.com/taskbarter/backend/internal/models"
	"github.com/taskbarter/backend/internal/repository"
)

// AdminUserStore is the moderation surface of the user repository.
type AdminUserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateModeration(ctx context.Context, u *models.User) error
	ListFlagged(ctx context.Context) ([]*models.User, error)
	ListWithStats(ctx context.Context) ([]*repository.UserWithStats, error)
}

// AdminHandler serves the /api/v1/admin endpoints. All routes behind it are
// wrapped in middleware.RequireAdmin.
type AdminHandler struct {
	Disputes *disputes.Service
	Users    AdminUserStore
	Logger   *slog.Logger
}

func NewAdminHandler(disputeSvc *disputes.Service, users AdminUserStore, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Disputes: disputeSvc, Users: users, Logger: logger}
}

// ListDisputes handles GET /api/v1/admin/disputes.
func (h *AdminHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Disputes.ListAll(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"`
	Action     string `json:"action"` // release | refund
}

// ResolveDispute handles POST /api/v1/admin/disputes/{id}/resolve.
func (h *AdminHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFromCtx(r.Context())
	if admin == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	disputeID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid dispute id"})
		return
	}
	var req resolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	d, err := h.Disputes.Resolve(r.Context(), admin.ID, disputeID, req.Resolution, req.Action)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ListFlaggedUsers handles GET /api/v1/admin/users/flagged.
func (h *AdminHandler) ListFlaggedUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Users.ListFlagged(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Users.ListWithStats(r.Context())
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// WarnUser handles POST /api/v1/admin/users/{id}/warn. Three warnings ban
// the user automatically.
func (h *AdminHandler) WarnUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(u *models.User) {
		u.Warnings++
		if u.Warnings >= models.WarningsBeforeBan {
			u.IsBanned = true
		}
	})
}

// BanUser handles POST /api/v1/admin/users/{id}/ban.
func (h *AdminHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(u *models.User) {
		u.IsBanned = true
	})
}

// UnbanUser handles POST /api/v1/admin/users/{id}/unban.
func (h *AdminHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if !u.IsBanned {
		writeError(w, h.Logger, apperr.Conflict("user is not banned", ""))
		return
	}
	u.IsBanned = false
	if err := h.Users.UpdateModeration(r.Context(), u); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) moderate(w http.ResponseWriter, r *http.Request, apply func(u *models.User)) {
	userID, ok := pathUUID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
		return
	}
	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	apply(u)
	if err := h.Users.UpdateModeration(r.Context(), u); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
