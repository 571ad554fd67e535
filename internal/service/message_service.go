package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/entity"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/repository/unitofwork"
	"bchat-be/pkg/storage"

	"github.com/google/uuid"
)

type IMessageService interface {
	// SendText appends a user message. The caller must already hold a membership.
	SendText(ctx context.Context, member *MembershipInfo, content string) (*dto.MessageResponse, error)
	// AppendAI stores an assistant reply with no sender.
	AppendAI(ctx context.Context, member *MembershipInfo, content string) (*dto.MessageResponse, error)
	UploadFile(ctx context.Context, member *MembershipInfo, input *dto.UploadFileInput) (*dto.MessageResponse, error)

	// History returns messages oldest first. A positive limit keeps only the newest limit messages.
	History(ctx context.Context, member *MembershipInfo, limit int) ([]*dto.MessageResponse, error)
	Recent(ctx context.Context, roomId uuid.UUID, limit int) ([]*entity.Message, error)

	ToggleReaction(ctx context.Context, userId, messageId uuid.UUID, emoji string) (*dto.ReactionUpdatedResponse, error)
}

type MessageServiceOption func(*messageService)

func WithMessageClock(now func() time.Time) MessageServiceOption {
	return func(s *messageService) {
		s.now = now
	}
}

type messageService struct {
	uowFactory unitofwork.RepositoryFactory
	users      IUserDirectory
	storage    storage.FileStorage
	logger     logger.ILogger
	now        func() time.Time

	mu       sync.Mutex
	lastSent time.Time
}

func NewMessageService(uowFactory unitofwork.RepositoryFactory, users IUserDirectory, fileStorage storage.FileStorage, log logger.ILogger, opts ...MessageServiceOption) IMessageService {
	s := &messageService{
		uowFactory: uowFactory,
		users:      users,
		storage:    fileStorage,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *messageService) SendText(ctx context.Context, member *MembershipInfo, content string) (*dto.MessageResponse, error) {
	if member.IsExpired(s.now()) {
		return nil, apperror.Expired("Room has expired")
	}

	senderId := member.UserId
	msg := &entity.Message{
		Id:       uuid.New(),
		RoomId:   member.RoomId,
		SenderId: &senderId,
		Content:  content,
	}
	if err := s.append(ctx, msg); err != nil {
		return nil, err
	}
	return toMessageResponse(msg, member.RoomCode), nil
}

func (s *messageService) AppendAI(ctx context.Context, member *MembershipInfo, content string) (*dto.MessageResponse, error) {
	msg := &entity.Message{
		Id:      uuid.New(),
		RoomId:  member.RoomId,
		Content: content,
		IsAI:    true,
	}
	if err := s.append(ctx, msg); err != nil {
		return nil, err
	}
	return toMessageResponse(msg, member.RoomCode), nil
}

func (s *messageService) UploadFile(ctx context.Context, member *MembershipInfo, input *dto.UploadFileInput) (*dto.MessageResponse, error) {
	if member.IsExpired(s.now()) {
		return nil, apperror.Expired("Room has expired")
	}
	if input == nil || input.Reader == nil {
		return nil, apperror.Validation("No file uploaded")
	}

	senderId := member.UserId
	msg := &entity.Message{
		Id:       uuid.New(),
		RoomId:   member.RoomId,
		SenderId: &senderId,
		Content:  input.Content,
		File: &entity.FileReference{
			Type: input.MimeType,
			Name: input.FileName,
		},
	}
	// Nothing is written to storage for a message that would be rejected.
	if ok, reason := msg.Normalize(); !ok {
		return nil, apperror.Validation(reason)
	}
	if s.storage == nil {
		return nil, apperror.External("Uploads are not available", nil)
	}

	stored, err := s.storage.Save(ctx, input.FileName, input.Reader)
	if err != nil {
		return nil, apperror.External("Upload failed", err)
	}
	msg.File.URL = stored.URL
	msg.File.Size = stored.Size

	if err := s.append(ctx, msg); err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), stored.Name); delErr != nil {
			s.logger.Warn("MESSAGE", "Failed to remove orphaned upload", map[string]interface{}{
				"file":  stored.Name,
				"error": delErr.Error(),
			})
		}
		return nil, err
	}

	s.logger.Info("MESSAGE", "File uploaded", map[string]interface{}{
		"room_code": member.RoomCode,
		"user_id":   member.UserId.String(),
		"size":      stored.Size,
	})
	return toMessageResponse(msg, member.RoomCode), nil
}

// append validates before anything is written.
func (s *messageService) append(ctx context.Context, msg *entity.Message) error {
	if ok, reason := msg.Normalize(); !ok {
		return apperror.Validation(reason)
	}

	if msg.SenderId != nil {
		name, err := s.users.Username(ctx, *msg.SenderId)
		if err != nil {
			return err
		}
		msg.SenderUsername = name
	}

	msg.CreatedAt = s.stamp()
	msg.Reactions = []entity.Reaction{}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.MessageRepository().Create(ctx, msg)
}

// stamp returns a creation time strictly after the previous one at the
// microsecond precision Postgres keeps, so appends from this process never tie.
func (s *messageService) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().Truncate(time.Microsecond)
	if !t.After(s.lastSent) {
		t = s.lastSent.Add(time.Microsecond)
	}
	s.lastSent = t
	return t
}

func (s *messageService) History(ctx context.Context, member *MembershipInfo, limit int) ([]*dto.MessageResponse, error) {
	var (
		msgs []*entity.Message
		err  error
	)
	if limit > 0 {
		msgs, err = s.Recent(ctx, member.RoomId, limit)
	} else {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		msgs, err = uow.MessageRepository().FindAll(ctx,
			specification.ByRoomID{RoomID: member.RoomId},
			specification.OrderBy{Field: "created_at"},
			specification.OrderBy{Field: "id"},
		)
	}
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		res = append(res, toMessageResponse(m, member.RoomCode))
	}
	return res, nil
}

// Recent loads the newest limit messages and returns them oldest first.
func (s *messageService) Recent(ctx context.Context, roomId uuid.UUID, limit int) ([]*entity.Message, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	msgs, err := uow.MessageRepository().FindAll(ctx,
		specification.ByRoomID{RoomID: roomId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.OrderBy{Field: "id", Desc: true},
		specification.Limit{N: limit},
	)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *messageService) ToggleReaction(ctx context.Context, userId, messageId uuid.UUID, emoji string) (*dto.ReactionUpdatedResponse, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, apperror.Validation("Emoji is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	msg, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperror.NotFound("Message not found")
	}

	room, err := uow.RoomRepository().FindOne(ctx, specification.ByID{ID: msg.RoomId})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, apperror.NotFound("Room not found")
	}
	if _, isMember, err := uow.RoomRepository().RoleOf(ctx, room.Id, userId); err != nil {
		return nil, err
	} else if !isMember {
		return nil, apperror.Authorization("You are not a member of this room")
	}

	if _, err := uow.MessageRepository().ToggleReaction(ctx, messageId, userId, emoji); err != nil {
		return nil, err
	}

	updated, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperror.NotFound("Message not found")
	}

	return &dto.ReactionUpdatedResponse{
		MessageId: updated.Id,
		RoomCode:  room.JoinCode,
		Reactions: toReactionResponses(updated.Reactions),
	}, nil
}

func toReactionResponses(reactions []entity.Reaction) []*dto.ReactionResponse {
	res := make([]*dto.ReactionResponse, 0, len(reactions))
	for _, r := range reactions {
		res = append(res, &dto.ReactionResponse{UserId: r.UserId, Emoji: r.Emoji})
	}
	return res
}

func toMessageResponse(msg *entity.Message, roomCode string) *dto.MessageResponse {
	res := &dto.MessageResponse{
		Id:        msg.Id,
		RoomCode:  roomCode,
		Content:   msg.Content,
		IsAI:      msg.IsAI,
		Reactions: toReactionResponses(msg.Reactions),
		CreatedAt: msg.CreatedAt,
	}

	switch {
	case msg.IsAI:
		res.Sender = dto.SenderResponse{Id: dto.AISenderID, Username: dto.AISenderName}
	case msg.SenderId != nil:
		res.Sender = dto.SenderResponse{Id: msg.SenderId.String(), Username: msg.SenderUsername}
	}

	if msg.File != nil {
		res.File = &dto.FileResponse{
			URL:  msg.File.URL,
			Type: msg.File.Type,
			Name: msg.File.Name,
			Size: msg.File.Size,
		}
	}
	return res
}
