package entity

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Id           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	IsVerified   bool
	Otp          *string
	OtpExpiresAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
