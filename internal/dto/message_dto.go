package dto

import (
	"io"
	"time"

	"github.com/google/uuid"
)

const (
	AISenderID   = "ai"
	AISenderName = "AI"
)

type SenderResponse struct {
	Id       string `json:"id"`
	Username string `json:"username"`
}

type FileResponse struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type ReactionResponse struct {
	UserId uuid.UUID `json:"userId"`
	Emoji  string    `json:"emoji"`
}

// MessageResponse is both the REST history item and the receive_message payload.
type MessageResponse struct {
	Id        uuid.UUID           `json:"id"`
	RoomCode  string              `json:"roomCode"`
	Content   string              `json:"content"`
	File      *FileResponse       `json:"file,omitempty"`
	Sender    SenderResponse      `json:"sender"`
	IsAI      bool                `json:"isAI"`
	Reactions []*ReactionResponse `json:"reactions"`
	CreatedAt time.Time           `json:"createdAt"`
}

type ReactRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type ReactionUpdatedResponse struct {
	MessageId uuid.UUID           `json:"messageId"`
	RoomCode  string              `json:"roomCode"`
	Reactions []*ReactionResponse `json:"reactions"`
}

type UploadFileInput struct {
	FileName string
	MimeType string
	Content  string
	Reader   io.Reader
}
