package service_test

import (
	"sync"
	"testing"
	"time"

	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/repository/memory"
	"bchat-be/internal/repository/unitofwork"
	"bchat-be/internal/service"
	"bchat-be/internal/testutil"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type recordingEvictor struct {
	mu      sync.Mutex
	evicted []string
	closed  []string
	purged  []uuid.UUID
}

func (e *recordingEvictor) EvictUser(roomCode string, userId uuid.UUID) {
	e.mu.Lock()
	e.evicted = append(e.evicted, roomCode+":"+userId.String())
	e.mu.Unlock()
}

func (e *recordingEvictor) CloseRoom(roomCode string) {
	e.mu.Lock()
	e.closed = append(e.closed, roomCode)
	e.mu.Unlock()
}

func (e *recordingEvictor) EvictUserEverywhere(userId uuid.UUID) {
	e.mu.Lock()
	e.purged = append(e.purged, userId)
	e.mu.Unlock()
}

type fixture struct {
	db       *gorm.DB
	uow      unitofwork.RepositoryFactory
	clock    *testutil.Clock
	events   *testutil.RecordingPublisher
	evictor  *recordingEvictor
	users    service.IUserDirectory
	rooms    service.IRoomService
	messages service.IMessageService
}

func newFixture(t *testing.T, roomOpts ...service.RoomServiceOption) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t)
	f := &fixture{
		db:      db,
		uow:     unitofwork.NewRepositoryFactory(db),
		clock:   testutil.NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		events:  &testutil.RecordingPublisher{},
		evictor: &recordingEvictor{},
	}
	log := logger.NewNopLogger()

	f.users = service.NewUserDirectory(f.uow, memory.NewUsernameCache(time.Minute))
	f.rooms = service.NewRoomService(f.uow, f.events, f.evictor, log,
		append([]service.RoomServiceOption{service.WithRoomClock(f.clock.Now)}, roomOpts...)...)
	f.messages = service.NewMessageService(f.uow, f.users, nil, log, service.WithMessageClock(f.clock.Tick))
	return f
}
