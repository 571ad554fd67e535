package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateRoomRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Password  string `json:"password" validate:"required,max=72"`
	ExpiresIn int    `json:"expiresIn" validate:"min=0"` // days, 0 = never
}

type CreateRoomResponse struct {
	Id        uuid.UUID  `json:"id"`
	RoomId    string     `json:"roomId"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type JoinRoomRequest struct {
	RoomId   string `json:"roomId" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type MyRoomResponse struct {
	Id        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	RoomId    string     `json:"roomId"`
	Role      string     `json:"role"`
	Members   int        `json:"members"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type RoomMemberResponse struct {
	UserId   uuid.UUID `json:"userId"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type RoomResponse struct {
	Id        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	RoomId    string                `json:"roomId"`
	CreatedBy uuid.UUID             `json:"createdBy"`
	ExpiresAt *time.Time            `json:"expiresAt"`
	Members   []*RoomMemberResponse `json:"members"`
	CreatedAt time.Time             `json:"createdAt"`
}

type RoomDetailsResponse struct {
	Room         *RoomResponse `json:"room"`
	IsAdmin      bool          `json:"isAdmin"`
	IsExpired    bool          `json:"isExpired"`
	MembersCount int           `json:"membersCount"`
}

type ExtendExpiryRequest struct {
	ExpiresIn *int `json:"expiresIn" validate:"required,min=0"`
}

type ExtendExpiryResponse struct {
	ExpiresAt *time.Time `json:"expiresAt"`
}
