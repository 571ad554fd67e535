package contract

import (
	"context"

	"bchat-be/internal/entity"
	"bchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// ToggleReaction removes the (user, emoji) pair if present, otherwise adds it.
	ToggleReaction(ctx context.Context, messageId, userId uuid.UUID, emoji string) (added bool, err error)
	DeleteReactionsByUserID(ctx context.Context, userId uuid.UUID) error

	DeleteByRoomID(ctx context.Context, roomId uuid.UUID) (int64, error)
	DeleteBySenderID(ctx context.Context, senderId uuid.UUID) (int64, error)
}
