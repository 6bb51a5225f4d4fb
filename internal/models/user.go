package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// StartingCredits is granted to every newly registered user.
const StartingCredits = 100

// WarningsBeforeBan is the warning count at which a user is banned automatically.
const WarningsBeforeBan = 3

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Credits      int       `json:"credits"`
	Warnings     int       `json:"warnings"`
	IsBanned     bool      `json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
