package entity

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	MemberRoleAdmin  MemberRole = "admin"
	MemberRoleMember MemberRole = "member"
)

type Membership struct {
	UserId   uuid.UUID
	Username string
	Role     MemberRole
	JoinedAt time.Time
}

type Room struct {
	Id         uuid.UUID
	JoinCode   string
	Name       string
	SecretHash string
	CreatedBy  uuid.UUID
	ExpiresAt  *time.Time
	// Members is ordered by JoinedAt ascending.
	Members   []Membership
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpired reports whether the room has an expiry that lies before now.
func (r *Room) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

func (r *Room) MemberOf(userId uuid.UUID) (Membership, bool) {
	for _, m := range r.Members {
		if m.UserId == userId {
			return m, true
		}
	}
	return Membership{}, false
}
