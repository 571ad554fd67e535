package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const MaxMessageContentLength = 1000

type FileReference struct {
	URL  string
	Type string
	Name string
	Size int64
}

type Reaction struct {
	UserId uuid.UUID
	Emoji  string
}

type Message struct {
	Id             uuid.UUID
	RoomId         uuid.UUID
	SenderId       *uuid.UUID
	SenderUsername string
	Content        string
	File           *FileReference
	IsAI           bool
	Reactions      []Reaction
	CreatedAt      time.Time
}

// Normalize trims content and reports whether the message is storable.
// It needs text or a file. User text is bounded; AI replies are not.
func (m *Message) Normalize() (ok bool, reason string) {
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" && m.File == nil {
		return false, "Message must have content or a file"
	}
	if !m.IsAI && utf8.RuneCountInString(m.Content) > MaxMessageContentLength {
		return false, "Message content is too long"
	}
	if m.SenderId == nil && !m.IsAI {
		return false, "Message sender is required"
	}
	return true, ""
}
