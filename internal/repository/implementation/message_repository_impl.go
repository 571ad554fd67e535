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

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.MessageMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewMessageMapper(),
	}
}

func (r *MessageRepositoryImpl) withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Sender").
		Preload("Reactions", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		})
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *entity.Message) error {
	m := r.mapper.ToModel(message)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error; err != nil {
		return err
	}
	message.CreatedAt = m.CreatedAt
	return nil
}

func (r *MessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error) {
	var m model.Message
	query := applySpecifications(r.withRelations(r.db.WithContext(ctx)), specs...)

	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return r.mapper.ToEntity(&m), nil
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var ms []*model.Message
	query := applySpecifications(r.withRelations(r.db.WithContext(ctx)), specs...)

	if err := query.Find(&ms).Error; err != nil {
		return nil, err
	}

	return r.mapper.ToEntities(ms), nil
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ToggleReaction deletes the pair or, when nothing was deleted, inserts it.
// The unique (message_id, user_id, emoji) index keeps concurrent toggles duplicate-free.
func (r *MessageRepositoryImpl) ToggleReaction(ctx context.Context, messageId, userId uuid.UUID, emoji string) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", messageId, userId, emoji).
			Delete(&model.MessageReaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		reaction := &model.MessageReaction{
			Id:        uuid.New(),
			MessageId: messageId,
			UserId:    userId,
			Emoji:     emoji,
			CreatedAt: time.Now().UTC(),
		}
		ins := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"}},
			DoNothing: true,
		}).Create(reaction)
		if ins.Error != nil {
			return ins.Error
		}
		// A concurrent toggle may have inserted the pair first.
		added = ins.RowsAffected > 0
		return nil
	})
	return added, err
}

func (r *MessageRepositoryImpl) DeleteReactionsByUserID(ctx context.Context, userId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userId).Delete(&model.MessageReaction{}).Error
}

func (r *MessageRepositoryImpl) deleteWhere(ctx context.Context, column string, value uuid.UUID) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&model.Message{}).Select("id").Where(column+" = ?", value)
		if err := tx.Where("message_id IN (?)", ids).Delete(&model.MessageReaction{}).Error; err != nil {
			return err
		}
		res := tx.Where(column+" = ?", value).Delete(&model.Message{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

func (r *MessageRepositoryImpl) DeleteByRoomID(ctx context.Context, roomId uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, "room_id", roomId)
}

func (r *MessageRepositoryImpl) DeleteBySenderID(ctx context.Context, senderId uuid.UUID) (int64, error) {
	return r.deleteWhere(ctx, "sender_id", senderId)
}
