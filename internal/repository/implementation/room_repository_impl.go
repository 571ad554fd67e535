package implementation

import (
	"context"
	"errors"
	"time"

	"bchat-be/internal/entity"
	"bchat-be/internal/mapper"
	"bchat-be/internal/model"
	"bchat-be/internal/repository/contract"
	"bchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RoomMapper
}

func NewRoomRepository(db *gorm.DB) contract.RoomRepository {
	return &RoomRepositoryImpl{
		db:     db,
		mapper: mapper.NewRoomMapper(),
	}
}

func (r *RoomRepositoryImpl) withMembers(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Members.User")
}

func (r *RoomRepositoryImpl) Create(ctx context.Context, room *entity.Room) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		modelRoom := r.mapper.ToModel(room)
		if err := tx.Create(modelRoom).Error; err != nil {
			return err
		}

		for _, m := range room.Members {
			rm := &model.RoomMember{
				Id:       uuid.New(),
				RoomId:   modelRoom.Id,
				UserId:   m.UserId,
				Role:     string(m.Role),
				JoinedAt: m.JoinedAt,
			}
			if err := tx.Create(rm).Error; err != nil {
				return err
			}
		}

		room.CreatedAt = modelRoom.CreatedAt
		room.UpdatedAt = modelRoom.UpdatedAt
		return nil
	})
	return translate(err)
}

func (r *RoomRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&model.RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Room{}).Error
	})
}

func (r *RoomRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Room, error) {
	var modelRoom model.Room
	query := applySpecifications(r.withMembers(r.db.WithContext(ctx)), specs...)

	if err := query.First(&modelRoom).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return r.mapper.ToEntity(&modelRoom), nil
}

func (r *RoomRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Room, error) {
	var modelRooms []*model.Room
	query := applySpecifications(r.withMembers(r.db.WithContext(ctx)), specs...)

	if err := query.Find(&modelRooms).Error; err != nil {
		return nil, err
	}

	return r.mapper.ToEntities(modelRooms), nil
}

func (r *RoomRepositoryImpl) UpdateExpiry(ctx context.Context, id uuid.UUID, expiresAt *time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}

func (r *RoomRepositoryImpl) RoleOf(ctx context.Context, roomId, userId uuid.UUID) (entity.MemberRole, bool, error) {
	var rm model.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomId, userId).
		First(&rm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return entity.MemberRole(rm.Role), true, nil
}

// AddMember is a single insert-if-absent; false means the user was already a member.
func (r *RoomRepositoryImpl) AddMember(ctx context.Context, roomId uuid.UUID, member entity.Membership) (bool, error) {
	rm := &model.RoomMember{
		Id:       uuid.New(),
		RoomId:   roomId,
		UserId:   member.UserId,
		Role:     string(member.Role),
		JoinedAt: member.JoinedAt,
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(rm)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RemoveMember deletes the membership unless it would leave the room without an admin.
// The guard lives in the DELETE itself so the check and the write are one statement.
func (r *RoomRepositoryImpl) RemoveMember(ctx context.Context, roomId, userId uuid.UUID) (bool, error) {
	admin := string(entity.MemberRoleAdmin)
	res := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomId, userId).
		Where("(role <> ? OR (SELECT COUNT(*) FROM room_members AS admins WHERE admins.room_id = ? AND admins.role = ?) > 1)",
			admin, roomId, admin).
		Delete(&model.RoomMember{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *RoomRepositoryImpl) RemoveUserEverywhere(ctx context.Context, userId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userId).Delete(&model.RoomMember{}).Error
}
