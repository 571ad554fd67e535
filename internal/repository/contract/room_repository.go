package contract

import (
	"context"
	"time"

	"bchat-be/internal/entity"
	"bchat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type RoomRepository interface {
	// Create inserts the room and its seed memberships.
	// A join code collision surfaces as ErrDuplicate.
	Create(ctx context.Context, room *entity.Room) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Room, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Room, error)
	UpdateExpiry(ctx context.Context, id uuid.UUID, expiresAt *time.Time) error

	// Membership
	RoleOf(ctx context.Context, roomId, userId uuid.UUID) (entity.MemberRole, bool, error)
	AddMember(ctx context.Context, roomId uuid.UUID, member entity.Membership) (bool, error)
	RemoveMember(ctx context.Context, roomId, userId uuid.UUID) (bool, error)
	RemoveUserEverywhere(ctx context.Context, userId uuid.UUID) error
}
