package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/entity"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/repository/unitofwork"
	"bchat-be/pkg/events"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	VerifyOTP(ctx context.Context, req *dto.VerifyOtpRequest) error
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Me(ctx context.Context, userId uuid.UUID) (*dto.UserResponse, error)
	DeleteAccount(ctx context.Context, userId uuid.UUID) error
	UserCount(ctx context.Context) (*dto.UserCountResponse, error)
}

type TokenIssuer interface {
	Issue(userId uuid.UUID) (string, error)
}

type AuthServiceOption func(*authService)

func WithAuthClock(now func() time.Time) AuthServiceOption {
	return func(s *authService) {
		s.now = now
	}
}

func WithOTPGenerator(gen func() (string, error)) AuthServiceOption {
	return func(s *authService) {
		s.generateOTP = gen
	}
}

type authService struct {
	uowFactory  unitofwork.RepositoryFactory
	tokens      TokenIssuer
	publisher   IPublisherService
	evictor     SubscriptionEvictor
	users       IUserDirectory
	otpTTL      time.Duration
	logger      logger.ILogger
	generateOTP func() (string, error)
	now         func() time.Time
}

func NewAuthService(uowFactory unitofwork.RepositoryFactory, tokens TokenIssuer, publisher IPublisherService, evictor SubscriptionEvictor, users IUserDirectory, otpTTL time.Duration, log logger.ILogger, opts ...AuthServiceOption) IAuthService {
	if evictor == nil {
		evictor = noopEvictor{}
	}
	s := &authService{
		uowFactory:  uowFactory,
		tokens:      tokens,
		publisher:   publisher,
		evictor:     evictor,
		users:       users,
		otpTTL:      otpTTL,
		logger:      log,
		generateOTP: generateOTP,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if username == "" || email == "" || req.Password == "" {
		return nil, apperror.Validation("All fields are required")
	}

	otp, err := s.generateOTP()
	if err != nil {
		return nil, apperror.Internal("generate otp", err)
	}
	otpExpiry := s.now().Add(s.otpTTL)

	uow := s.uowFactory.NewUnitOfWork(ctx)

	// 1. Existing account: re-send while unverified, otherwise refuse
	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IsVerified {
			return nil, apperror.Conflict("Email already exists")
		}

		existing.Otp = &otp
		existing.OtpExpiresAt = &otpExpiry
		existing.UpdatedAt = s.now()
		if err := uow.UserRepository().Update(ctx, existing); err != nil {
			return nil, err
		}

		s.publishOTP(ctx, existing, otp, true)
		return &dto.RegisterResponse{
			Id:      existing.Id,
			Email:   existing.Email,
			Resent:  true,
			Message: "OTP re-sent. Please verify your email.",
		}, nil
	}

	// 2. Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}

	// 3. Create unverified user
	now := s.now()
	user := &entity.User{
		Id:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsVerified:   false,
		Otp:          &otp,
		OtpExpiresAt: &otpExpiry,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}

	s.publishOTP(ctx, user, otp, false)
	return &dto.RegisterResponse{
		Id:      user.Id,
		Email:   user.Email,
		Message: "OTP sent to email. Please verify.",
	}, nil
}

func (s *authService) publishOTP(ctx context.Context, user *entity.User, otp string, resent bool) {
	s.publish(ctx, events.New(events.UserRegistered, map[string]interface{}{
		"user_id": user.Id.String(),
		"email":   user.Email,
		"otp":     otp,
		"resent":  resent,
	}))
}

func (s *authService) VerifyOTP(ctx context.Context, req *dto.VerifyOtpRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: normalizeEmail(req.Email)})
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NotFound("User not found")
	}
	if user.IsVerified {
		return apperror.Conflict("User already verified")
	}
	if user.Otp == nil || *user.Otp != req.Otp {
		return apperror.Validation("Invalid OTP")
	}
	if user.OtpExpiresAt == nil || user.OtpExpiresAt.Before(s.now()) {
		return apperror.Expired("OTP expired")
	}

	user.IsVerified = true
	user.Otp = nil
	user.OtpExpiresAt = nil
	user.UpdatedAt = s.now()
	return uow.UserRepository().Update(ctx, user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: normalizeEmail(req.Email)})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Authentication("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Authentication("Invalid credentials")
	}
	if !user.IsVerified {
		return nil, apperror.Authorization("Please verify your email first")
	}

	token, err := s.tokens.Issue(user.Id)
	if err != nil {
		return nil, apperror.Internal("issue token", err)
	}

	return &dto.LoginResponse{
		Token: token,
		User:  toUserResponse(user),
	}, nil
}

func (s *authService) Me(ctx context.Context, userId uuid.UUID) (*dto.UserResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFound("User not found")
	}
	res := toUserResponse(user)
	return &res, nil
}

// DeleteAccount removes the user with the rooms they created, every message
// they sent, their reactions and their memberships.
func (s *authService) DeleteAccount(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.NotFound("User not found")
	}

	owned, err := uow.RoomRepository().FindAll(ctx, specification.CreatedBy{UserID: userId})
	if err != nil {
		return err
	}
	closed := make([]string, 0, len(owned))
	for _, room := range owned {
		if _, err := uow.MessageRepository().DeleteByRoomID(ctx, room.Id); err != nil {
			return err
		}
		if err := uow.RoomRepository().Delete(ctx, room.Id); err != nil {
			return err
		}
		closed = append(closed, room.JoinCode)
	}

	if _, err := uow.MessageRepository().DeleteBySenderID(ctx, userId); err != nil {
		return err
	}
	if err := uow.MessageRepository().DeleteReactionsByUserID(ctx, userId); err != nil {
		return err
	}
	if err := uow.RoomRepository().RemoveUserEverywhere(ctx, userId); err != nil {
		return err
	}
	if err := uow.UserRepository().Delete(ctx, userId); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	for _, code := range closed {
		s.evictor.CloseRoom(code)
	}
	s.evictor.EvictUserEverywhere(userId)
	if s.users != nil {
		s.users.Forget(userId)
	}

	s.publish(ctx, events.New(events.AccountDeleted, map[string]interface{}{
		"user_id":       userId.String(),
		"rooms_deleted": len(closed),
	}))
	return nil
}

func (s *authService) UserCount(ctx context.Context) (*dto.UserCountResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	count, err := uow.UserRepository().Count(ctx, specification.VerifiedUsers{})
	if err != nil {
		return nil, err
	}
	return &dto.UserCountResponse{TotalUsers: int(count)}, nil
}

func (s *authService) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("AUTH", "Failed to publish event", map[string]interface{}{
			"event": evt.EventType(),
			"error": err.Error(),
		})
	}
}

func toUserResponse(user *entity.User) dto.UserResponse {
	return dto.UserResponse{
		Id:         user.Id,
		Username:   user.Username,
		Email:      user.Email,
		IsVerified: user.IsVerified,
	}
}
