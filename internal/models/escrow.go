package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow status enums. At most one holding escrow exists per task.
const (
	EscrowStatusHolding  = "holding"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

type Escrow struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	HeldAmount int       `json:"held_amount"`
	FromUser   uuid.UUID `json:"from_user"`
	ToUser     uuid.UUID `json:"to_user"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
