package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction type enums. The escrow hold itself is mirrored by the Escrow
// row; only movements that land in a spendable balance are recorded here.
const (
	TransactionSend          = "send"
	TransactionEscrowRelease = "escrow_release"
	TransactionRefund        = "refund"
)

type Transaction struct {
	ID        uuid.UUID `json:"id"`
	FromUser  uuid.UUID `json:"from_user"`
	ToUser    uuid.UUID `json:"to_user"`
	Amount    int       `json:"amount"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
