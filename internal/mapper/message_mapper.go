package mapper

import (
	"bchat-be/internal/entity"
	"bchat-be/internal/model"

	"gorm.io/datatypes"
)

type MessageMapper struct{}

func NewMessageMapper() *MessageMapper {
	return &MessageMapper{}
}

func (m *MessageMapper) ToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var file *entity.FileReference
	if f := msg.File.Data(); f != nil {
		file = &entity.FileReference{URL: f.URL, Type: f.Type, Name: f.Name, Size: f.Size}
	}

	reactions := make([]entity.Reaction, 0, len(msg.Reactions))
	for _, r := range msg.Reactions {
		reactions = append(reactions, entity.Reaction{UserId: r.UserId, Emoji: r.Emoji})
	}

	e := &entity.Message{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		SenderId:  msg.SenderId,
		Content:   msg.Content,
		File:      file,
		IsAI:      msg.IsAI,
		Reactions: reactions,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Sender != nil {
		e.SenderUsername = msg.Sender.Username
	}
	return e
}

func (m *MessageMapper) ToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var file *model.FileAttachment
	if msg.File != nil {
		file = &model.FileAttachment{URL: msg.File.URL, Type: msg.File.Type, Name: msg.File.Name, Size: msg.File.Size}
	}

	return &model.Message{
		Id:        msg.Id,
		RoomId:    msg.RoomId,
		SenderId:  msg.SenderId,
		Content:   msg.Content,
		File:      datatypes.NewJSONType(file),
		IsAI:      msg.IsAI,
		CreatedAt: msg.CreatedAt,
	}
}

func (m *MessageMapper) ToEntities(msgs []*model.Message) []*entity.Message {
	result := make([]*entity.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, m.ToEntity(msg))
	}
	return result
}
