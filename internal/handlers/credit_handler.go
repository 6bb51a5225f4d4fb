package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskbarter/backend/internal/credits"
	"github.com/taskbarter/backend/internal/middleware"
)

// CreditHandler serves the /api/v1/credits endpoints.
type CreditHandler struct {
	Svc    *credits.Service
	Logger *slog.Logger
}

func NewCreditHandler(svc *credits.Service, logger *slog.Logger) *CreditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditHandler{Svc: svc, Logger: logger}
}

type sendCreditsRequest struct {
	ToUserID string `json:"to_user_id"`
	Amount   int    `json:"amount"`
}

// Send handles POST /api/v1/credits/send.
func (h *CreditHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req sendCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	toUser, err := uuid.Parse(req.ToUserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to_user_id"})
		return
	}
	rec, err := h.Svc.Send(r.Context(), actor.ID, toUser, req.Amount)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// History handles GET /api/v1/credits/history.
func (h *CreditHandler) History(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromCtx(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	list, err := h.Svc.History(r.Context(), actor.ID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
