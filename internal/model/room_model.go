package model

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	Id         uuid.UUID     `gorm:"type:uuid;primaryKey"`
	JoinCode   string        `gorm:"type:varchar(8);uniqueIndex;not null"`
	Name       string        `gorm:"type:varchar(255);not null"`
	SecretHash string        `gorm:"type:varchar(255);not null"`
	CreatedBy  uuid.UUID     `gorm:"type:uuid;not null;index"`
	ExpiresAt  *time.Time    `gorm:"index"`
	Members    []*RoomMember `gorm:"foreignKey:RoomId;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time     `gorm:"autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"autoUpdateTime"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomMember rows are the membership list; the composite unique index makes
// "add if absent" a single statement.
type RoomMember struct {
	Id       uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_room_members_room_user"`
	UserId   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_room_members_room_user;index"`
	Role     string    `gorm:"type:varchar(20);not null;default:'member'"`
	JoinedAt time.Time `gorm:"not null"`
	User     *User     `gorm:"foreignKey:UserId;constraint:OnDelete:CASCADE"`
}

func (RoomMember) TableName() string {
	return "room_members"
}
