package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("email = ?", s.Email)
}

type VerifiedUsers struct{}

func (s VerifiedUsers) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_verified = ?", true)
}

type ByJoinCode struct {
	Code string
}

func (s ByJoinCode) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("join_code = ?", s.Code)
}

// RoomsWithMember keeps rooms where the user holds any membership.
type RoomsWithMember struct {
	UserID uuid.UUID
}

func (s RoomsWithMember) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id IN (?)", db.Session(&gorm.Session{NewDB: true}).
		Table("room_members").Select("room_id").Where("user_id = ?", s.UserID))
}

type CreatedBy struct {
	UserID uuid.UUID
}

func (s CreatedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_by = ?", s.UserID)
}

type ByRoomID struct {
	RoomID uuid.UUID
}

func (s ByRoomID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("room_id = ?", s.RoomID)
}

type BySenderID struct {
	SenderID uuid.UUID
}

func (s BySenderID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sender_id = ?", s.SenderID)
}
