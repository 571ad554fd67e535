package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/entity"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/repository/contract"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/repository/unitofwork"
	"bchat-be/pkg/events"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	JoinCodeLength      = 8
	joinCodeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxJoinCodeAttempts = 10
	roomSecretHashCost  = 10
	expiryUnit          = 24 * time.Hour
)

type IRoomService interface {
	CreateRoom(ctx context.Context, userId uuid.UUID, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error)
	FindByJoinCode(ctx context.Context, code string) (*entity.Room, error)
	IsMember(ctx context.Context, roomCode string, userId uuid.UUID) (bool, error)
	JoinRoom(ctx context.Context, userId uuid.UUID, req *dto.JoinRoomRequest) error
	GetMyRooms(ctx context.Context, userId uuid.UUID) ([]*dto.MyRoomResponse, error)
	GetRoomDetails(ctx context.Context, userId uuid.UUID, roomCode string) (*dto.RoomDetailsResponse, error)

	// Authorize resolves the caller's membership in the room, reading the store every time.
	Authorize(ctx context.Context, userId uuid.UUID, roomCode string) (*MembershipInfo, error)
	AuthorizeAdmin(ctx context.Context, userId uuid.UUID, roomCode string) (*MembershipInfo, error)

	DeleteRoom(ctx context.Context, admin *MembershipInfo) error
	RemoveMember(ctx context.Context, admin *MembershipInfo, targetId uuid.UUID) error
	ExtendExpiry(ctx context.Context, admin *MembershipInfo, days int) (*dto.ExtendExpiryResponse, error)
}

// JoinCodeGenerator returns a candidate join code. Collisions are retried by the caller.
type JoinCodeGenerator func() (string, error)

type RoomServiceOption func(*roomService)

func WithJoinCodeGenerator(gen JoinCodeGenerator) RoomServiceOption {
	return func(s *roomService) {
		s.generateCode = gen
	}
}

func WithRoomClock(now func() time.Time) RoomServiceOption {
	return func(s *roomService) {
		s.now = now
	}
}

type roomService struct {
	uowFactory   unitofwork.RepositoryFactory
	publisher    IPublisherService
	evictor      SubscriptionEvictor
	logger       logger.ILogger
	generateCode JoinCodeGenerator
	now          func() time.Time
}

func NewRoomService(uowFactory unitofwork.RepositoryFactory, publisher IPublisherService, evictor SubscriptionEvictor, log logger.ILogger, opts ...RoomServiceOption) IRoomService {
	if evictor == nil {
		evictor = noopEvictor{}
	}
	s := &roomService{
		uowFactory:   uowFactory,
		publisher:    publisher,
		evictor:      evictor,
		logger:       log,
		generateCode: GenerateJoinCode,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateJoinCode draws JoinCodeLength characters uniformly from [A-Za-z0-9].
func GenerateJoinCode() (string, error) {
	alphabetSize := big.NewInt(int64(len(joinCodeAlphabet)))
	var sb strings.Builder
	sb.Grow(JoinCodeLength)
	for i := 0; i < JoinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		sb.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

func expiryFromDays(now time.Time, days int) *time.Time {
	if days <= 0 {
		return nil
	}
	t := now.Add(time.Duration(days) * expiryUnit)
	return &t
}

func (s *roomService) CreateRoom(ctx context.Context, userId uuid.UUID, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Password == "" {
		return nil, apperror.Validation("Name and password required")
	}
	if req.ExpiresIn < 0 {
		return nil, apperror.Validation("Expiry must not be negative")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	creator, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if creator == nil {
		return nil, apperror.NotFound("User not found")
	}

	// 1. Hash secret
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), roomSecretHashCost)
	if err != nil {
		return nil, apperror.Internal("hash room secret", err)
	}

	now := s.now()
	room := &entity.Room{
		Id:         uuid.New(),
		Name:       name,
		SecretHash: string(hash),
		CreatedBy:  userId,
		ExpiresAt:  expiryFromDays(now, req.ExpiresIn),
		Members: []entity.Membership{
			{UserId: userId, Username: creator.Username, Role: entity.MemberRoleAdmin, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 2. Insert, drawing a fresh join code on collision
	created := false
	for attempt := 0; attempt < maxJoinCodeAttempts; attempt++ {
		code, err := s.generateCode()
		if err != nil {
			return nil, apperror.Internal("generate join code", err)
		}
		room.JoinCode = code

		err = uow.RoomRepository().Create(ctx, room)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, contract.ErrDuplicate) {
			return nil, err
		}
		s.logger.Warn("ROOM", "Join code collision, retrying", map[string]interface{}{"attempt": attempt + 1})
	}
	if !created {
		return nil, apperror.Internal("allocate join code", errors.New("join code attempts exhausted"))
	}

	// 3. Room details mail goes out through the event consumer
	var expiresAt interface{}
	if room.ExpiresAt != nil {
		expiresAt = room.ExpiresAt.Format(time.RFC3339)
	}
	s.publish(ctx, events.New(events.RoomCreated, map[string]interface{}{
		"room_id":    room.Id.String(),
		"room_code":  room.JoinCode,
		"room_name":  room.Name,
		"user_id":    userId.String(),
		"email":      creator.Email,
		"secret":     req.Password,
		"expires_at": expiresAt,
	}))

	return &dto.CreateRoomResponse{
		Id:        room.Id,
		RoomId:    room.JoinCode,
		Name:      room.Name,
		ExpiresAt: room.ExpiresAt,
	}, nil
}

func (s *roomService) FindByJoinCode(ctx context.Context, code string) (*entity.Room, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	room, err := uow.RoomRepository().FindOne(ctx, specification.ByJoinCode{Code: code})
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, apperror.NotFound("Room not found")
	}
	return room, nil
}

func (s *roomService) IsMember(ctx context.Context, roomCode string, userId uuid.UUID) (bool, error) {
	_, err := s.Authorize(ctx, userId, roomCode)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrAuthorization) {
		return false, nil
	}
	return false, err
}

func (s *roomService) JoinRoom(ctx context.Context, userId uuid.UUID, req *dto.JoinRoomRequest) error {
	room, err := s.FindByJoinCode(ctx, strings.TrimSpace(req.RoomId))
	if err != nil {
		return err
	}

	if room.IsExpired(s.now()) {
		return apperror.Expired("Room has expired")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(room.SecretHash), []byte(req.Password)); err != nil {
		return apperror.Validation("Incorrect password")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	added, err := uow.RoomRepository().AddMember(ctx, room.Id, entity.Membership{
		UserId:   userId,
		Role:     entity.MemberRoleMember,
		JoinedAt: s.now(),
	})
	if err != nil {
		return err
	}
	if !added {
		return apperror.Conflict("Already a member of this room")
	}

	s.publish(ctx, events.New(events.RoomMemberJoined, map[string]interface{}{
		"room_code": room.JoinCode,
		"user_id":   userId.String(),
	}))
	return nil
}

func (s *roomService) GetMyRooms(ctx context.Context, userId uuid.UUID) ([]*dto.MyRoomResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	rooms, err := uow.RoomRepository().FindAll(ctx,
		specification.RoomsWithMember{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MyRoomResponse, 0, len(rooms))
	for _, room := range rooms {
		member, ok := room.MemberOf(userId)
		if !ok {
			continue
		}
		res = append(res, &dto.MyRoomResponse{
			Id:        room.Id,
			Name:      room.Name,
			RoomId:    room.JoinCode,
			Role:      string(member.Role),
			Members:   len(room.Members),
			ExpiresAt: room.ExpiresAt,
		})
	}
	return res, nil
}

func (s *roomService) GetRoomDetails(ctx context.Context, userId uuid.UUID, roomCode string) (*dto.RoomDetailsResponse, error) {
	room, err := s.FindByJoinCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	member, ok := room.MemberOf(userId)
	if !ok {
		return nil, apperror.Authorization("Not authorized")
	}

	return &dto.RoomDetailsResponse{
		Room:         toRoomResponse(room),
		IsAdmin:      member.Role == entity.MemberRoleAdmin,
		IsExpired:    room.IsExpired(s.now()),
		MembersCount: len(room.Members),
	}, nil
}

func (s *roomService) Authorize(ctx context.Context, userId uuid.UUID, roomCode string) (*MembershipInfo, error) {
	room, err := s.FindByJoinCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	role, ok, err := uow.RoomRepository().RoleOf(ctx, room.Id, userId)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.Authorization("You are not a member of this room")
	}

	return &MembershipInfo{
		RoomId:    room.Id,
		RoomCode:  room.JoinCode,
		RoomName:  room.Name,
		UserId:    userId,
		Role:      role,
		ExpiresAt: room.ExpiresAt,
	}, nil
}

func (s *roomService) AuthorizeAdmin(ctx context.Context, userId uuid.UUID, roomCode string) (*MembershipInfo, error) {
	info, err := s.Authorize(ctx, userId, roomCode)
	if err != nil {
		return nil, err
	}
	if !info.IsAdmin() {
		return nil, apperror.Authorization("Admin access required")
	}
	return info, nil
}

func (s *roomService) DeleteRoom(ctx context.Context, admin *MembershipInfo) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if _, err := uow.MessageRepository().DeleteByRoomID(ctx, admin.RoomId); err != nil {
		return err
	}
	if err := uow.RoomRepository().Delete(ctx, admin.RoomId); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.evictor.CloseRoom(admin.RoomCode)
	s.publish(ctx, events.New(events.RoomDeleted, map[string]interface{}{
		"room_code":  admin.RoomCode,
		"deleted_by": admin.UserId.String(),
	}))
	return nil
}

func (s *roomService) RemoveMember(ctx context.Context, admin *MembershipInfo, targetId uuid.UUID) error {
	if targetId == admin.UserId {
		return apperror.Authorization("Admin cannot remove themselves")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	removed, err := uow.RoomRepository().RemoveMember(ctx, admin.RoomId, targetId)
	if err != nil {
		return err
	}
	if !removed {
		// Nothing deleted: either not a member or the guard kept the last admin.
		_, isMember, err := uow.RoomRepository().RoleOf(ctx, admin.RoomId, targetId)
		if err != nil {
			return err
		}
		if !isMember {
			return apperror.NotFound("Member not found in this room")
		}
		return apperror.Authorization("Cannot remove the last admin of a room")
	}

	s.evictor.EvictUser(admin.RoomCode, targetId)
	s.publish(ctx, events.New(events.RoomMemberRemoved, map[string]interface{}{
		"room_code":  admin.RoomCode,
		"user_id":    targetId.String(),
		"removed_by": admin.UserId.String(),
	}))
	return nil
}

// ExtendExpiry sets the expiry to now plus days. Zero clears it.
func (s *roomService) ExtendExpiry(ctx context.Context, admin *MembershipInfo, days int) (*dto.ExtendExpiryResponse, error) {
	if days < 0 {
		return nil, apperror.Validation("Valid expiry duration required")
	}

	expiresAt := expiryFromDays(s.now(), days)

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.RoomRepository().UpdateExpiry(ctx, admin.RoomId, expiresAt); err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.RoomExpiryChanged, map[string]interface{}{
		"room_code": admin.RoomCode,
		"days":      days,
	}))
	return &dto.ExtendExpiryResponse{ExpiresAt: expiresAt}, nil
}

func (s *roomService) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("ROOM", "Failed to publish event", map[string]interface{}{
			"event": evt.EventType(),
			"error": err.Error(),
		})
	}
}

func toRoomResponse(room *entity.Room) *dto.RoomResponse {
	members := make([]*dto.RoomMemberResponse, 0, len(room.Members))
	for _, m := range room.Members {
		members = append(members, &dto.RoomMemberResponse{
			UserId:   m.UserId,
			Username: m.Username,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return &dto.RoomResponse{
		Id:        room.Id,
		Name:      room.Name,
		RoomId:    room.JoinCode,
		CreatedBy: room.CreatedBy,
		ExpiresAt: room.ExpiresAt,
		Members:   members,
		CreatedAt: room.CreatedAt,
	}
}
