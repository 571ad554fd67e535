package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type FileAttachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type Message struct {
	Id        uuid.UUID                            `gorm:"type:uuid;primaryKey"`
	RoomId    uuid.UUID                            `gorm:"type:uuid;not null;index:idx_messages_room_created,priority:1"`
	SenderId  *uuid.UUID                           `gorm:"type:uuid;index"`
	Content   string                               `gorm:"type:text;not null;default:''"`
	File      datatypes.JSONType[*FileAttachment]
	IsAI      bool                                 `gorm:"not null;default:false"`
	Sender    *User                                `gorm:"foreignKey:SenderId;constraint:OnDelete:CASCADE"`
	Room      *Room                                `gorm:"foreignKey:RoomId;constraint:OnDelete:CASCADE"`
	Reactions []*MessageReaction                   `gorm:"foreignKey:MessageId;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time                            `gorm:"not null;index:idx_messages_room_created,priority:2"`
}

func (Message) TableName() string {
	return "messages"
}

type MessageReaction struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_reactions_unique"`
	UserId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_message_reactions_unique"`
	Emoji     string    `gorm:"type:varchar(32);not null;uniqueIndex:idx_message_reactions_unique"`
	CreatedAt time.Time `gorm:"not null"`
}

func (MessageReaction) TableName() string {
	return "message_reactions"
}
