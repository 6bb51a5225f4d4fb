package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DisputeStatusOpen     = "open"
	DisputeStatusResolved = "resolved"
)

// Dispute outcome chosen by the resolving admin.
const (
	DisputeActionRelease = "release"
	DisputeActionRefund  = "refund"
)

type Dispute struct {
	ID          uuid.UUID `json:"id"`
	TaskID      uuid.UUID `json:"task_id"`
	RaisedBy    uuid.UUID `json:"raised_by"`
	AgainstUser uuid.UUID `json:"against_user"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	Resolution  string    `json:"resolution,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
