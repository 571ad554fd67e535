package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/entity"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/repository/contract"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/repository/unitofwork"
	"bchat-be/internal/service"
	"bchat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type demoUser struct {
	Username string
	Email    string
}

var demoUsers = []demoUser{
	{Username: "alice", Email: "alice@bchat.local"},
	{Username: "bob", Email: "bob@bchat.local"},
}

const (
	demoPassword   = "password123"
	demoRoomName   = "Lobby"
	demoRoomSecret = "lobby123"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(db)

	log.Println("Seeding demo users...")
	ids := make([]uuid.UUID, 0, len(demoUsers))
	for _, u := range demoUsers {
		id, err := seedUser(ctx, uowFactory, u)
		if err != nil {
			log.Fatalf("Error seeding user '%s': %v", u.Email, err)
		}
		ids = append(ids, id)
	}

	log.Println("Seeding demo room...")
	rooms := service.NewRoomService(uowFactory, nil, nil, logger.NewNopLogger())
	created, err := rooms.CreateRoom(ctx, ids[0], &dto.CreateRoomRequest{Name: demoRoomName, Password: demoRoomSecret})
	if err != nil {
		log.Fatalf("Error creating room: %v", err)
	}
	for _, id := range ids[1:] {
		if err := rooms.JoinRoom(ctx, id, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: demoRoomSecret}); err != nil {
			log.Fatalf("Error joining room: %v", err)
		}
	}

	log.Printf("Seeding completed! Room '%s' join code: %s (password %s)", demoRoomName, created.RoomId, demoRoomSecret)
}

// seedUser creates a verified account, or returns the existing one untouched.
func seedUser(ctx context.Context, uowFactory unitofwork.RepositoryFactory, u demoUser) (uuid.UUID, error) {
	uow := uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: u.Email})
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		log.Printf("User '%s' already exists, skipping...", u.Email)
		return existing.Id, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	user := &entity.User{
		Id:           uuid.New(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: string(hash),
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		if errors.Is(err, contract.ErrDuplicate) {
			return uuid.Nil, errors.New("email taken concurrently")
		}
		return uuid.Nil, err
	}

	log.Printf("Created user: %s (%s)", u.Username, u.Email)
	return user.Id, nil
}
