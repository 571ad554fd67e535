package service

import (
	"time"

	"bchat-be/internal/entity"

	"github.com/google/uuid"
)

// MembershipInfo is the result of an authorization check. Handlers receive it
// as an argument instead of re-reading request state.
type MembershipInfo struct {
	RoomId    uuid.UUID
	RoomCode  string
	RoomName  string
	UserId    uuid.UUID
	Role      entity.MemberRole
	ExpiresAt *time.Time
}

func (m *MembershipInfo) IsAdmin() bool {
	return m.Role == entity.MemberRoleAdmin
}

func (m *MembershipInfo) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}

// SubscriptionEvictor drops live socket subscriptions after membership changes.
type SubscriptionEvictor interface {
	EvictUser(roomCode string, userId uuid.UUID)
	CloseRoom(roomCode string)
	EvictUserEverywhere(userId uuid.UUID)
}

type noopEvictor struct{}

func (noopEvictor) EvictUser(string, uuid.UUID)   {}
func (noopEvictor) CloseRoom(string)              {}
func (noopEvictor) EvictUserEverywhere(uuid.UUID) {}
