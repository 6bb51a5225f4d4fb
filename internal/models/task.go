package models

import (
	"time"

	"github.com/google/uuid"
)

// Task status enums. open and requested both accept new requests; requested
// just means at least one request is pending.
const (
	TaskStatusOpen       = "open"
	TaskStatusRequested  = "requested"
	TaskStatusAssigned   = "assigned"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)

// Validation bounds for task fields.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 1000
	MinReward         = 1
	MaxReward         = 10000
	DefaultMaxRequests = 10
	MaxMaxRequests     = 50
)

type Task struct {
	ID                      uuid.UUID   `json:"id"`
	Title                   string      `json:"title"`
	Description             string      `json:"description"`
	Reward                  int         `json:"reward"`
	CreatedBy               uuid.UUID   `json:"created_by"`
	AssignedTo              *uuid.UUID  `json:"assigned_to,omitempty"`
	Requests                []uuid.UUID `json:"requests"`
	Status                  string      `json:"status"`
	Deadline                time.Time   `json:"deadline"`
	CompletionConfirmations []uuid.UUID `json:"completion_confirmations"`
	MaxRequests             int         `json:"max_requests"`
	Version                 int         `json:"version"`
	CreatedAt               time.Time   `json:"created_at"`
	UpdatedAt               time.Time   `json:"updated_at"`
}

// IsAcceptingRequests reports whether a new performer request is allowed.
func (t *Task) IsAcceptingRequests() bool {
	if t.Status != TaskStatusOpen && t.Status != TaskStatusRequested {
		return false
	}
	return len(t.Requests) < t.MaxRequests
}

// IsTerminal reports whether the task reached a final status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusCancelled
}

// HasRequestFrom reports whether userID already requested this task.
func (t *Task) HasRequestFrom(userID uuid.UUID) bool {
	for _, id := range t.Requests {
		if id == userID {
			return true
		}
	}
	return false
}

// HasConfirmationFrom reports whether userID already confirmed completion.
func (t *Task) HasConfirmationFrom(userID uuid.UUID) bool {
	for _, id := range t.CompletionConfirmations {
		if id == userID {
			return true
		}
	}
	return false
}

// IsParticipant reports whether userID is the creator or the assignee.
func (t *Task) IsParticipant(userID uuid.UUID) bool {
	if t.CreatedBy == userID {
		return true
	}
	return t.AssignedTo != nil && *t.AssignedTo == userID
}
