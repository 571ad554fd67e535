package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/service"
	"bchat-be/internal/testutil"
	"bchat-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberCount(t *testing.T, f *fixture, code string) int {
	t.Helper()
	room, err := f.rooms.FindByJoinCode(context.Background(), code)
	require.NoError(t, err)
	return len(room.Members)
}

func TestCreateAndJoinRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := testutil.SeedUser(t, f.db, "Alice")
	u2 := testutil.SeedUser(t, f.db, "Bob")
	u3 := testutil.SeedUser(t, f.db, "Carol")

	created, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Gaming", Password: "abc123"})
	require.NoError(t, err)
	assert.Len(t, created.RoomId, service.JoinCodeLength)
	assert.Nil(t, created.ExpiresAt)

	admin, err := f.rooms.Authorize(ctx, u1, created.RoomId)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	require.NoError(t, f.rooms.JoinRoom(ctx, u2, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "abc123"}))
	assert.Equal(t, 2, memberCount(t, f, created.RoomId))

	err = f.rooms.JoinRoom(ctx, u3, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, 2, memberCount(t, f, created.RoomId))

	err = f.rooms.JoinRoom(ctx, u2, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "abc123"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, 2, memberCount(t, f, created.RoomId))

	err = f.rooms.JoinRoom(ctx, u3, &dto.JoinRoomRequest{RoomId: "missing1", Password: "abc123"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	ok, err := f.rooms.IsMember(ctx, created.RoomId, u3)
	require.NoError(t, err)
	assert.False(t, ok)

	evt := f.events.Last(events.RoomCreated)
	require.NotNil(t, evt)
	assert.Equal(t, created.RoomId, evt.Payload()["room_code"])
	assert.Equal(t, "alice@example.com", evt.Payload()["email"])
	assert.Contains(t, f.events.Types(), events.RoomMemberJoined)
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := testutil.SeedUser(t, f.db, "Alice")

	_, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "  ", Password: "abc123"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Gaming", Password: "abc123", ExpiresIn: -1})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCreateRoomRetriesJoinCodeCollision(t *testing.T) {
	codes := []string{"DUPLICAT", "DUPLICAT", "UNIQUE01"}
	var mu sync.Mutex
	gen := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	f := newFixture(t, service.WithJoinCodeGenerator(gen))
	ctx := context.Background()
	u1 := testutil.SeedUser(t, f.db, "Alice")

	first, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "One", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "DUPLICAT", first.RoomId)

	second, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Two", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "UNIQUE01", second.RoomId)
}

func TestConcurrentRoomCreationYieldsDistinctCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := testutil.SeedUser(t, f.db, "Alice")

	const n = 8
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Room", Password: "pw"})
			if assert.NoError(t, err) {
				codes[i] = res.RoomId
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, c := range codes {
		assert.Len(t, c, service.JoinCodeLength)
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
}

func TestGenerateJoinCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := service.GenerateJoinCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9]{8}$`, code)
	}
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := testutil.SeedUser(t, f.db, "Alice")
	u2 := testutil.SeedUser(t, f.db, "Bob")
	u3 := testutil.SeedUser(t, f.db, "Carol")

	created, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Gaming", Password: "abc123"})
	require.NoError(t, err)
	require.NoError(t, f.rooms.JoinRoom(ctx, u2, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "abc123"}))

	_, err = f.rooms.AuthorizeAdmin(ctx, u2, created.RoomId)
	assert.ErrorIs(t, err, apperror.ErrAuthorization)

	admin, err := f.rooms.AuthorizeAdmin(ctx, u1, created.RoomId)
	require.NoError(t, err)

	err = f.rooms.RemoveMember(ctx, admin, u1)
	assert.ErrorIs(t, err, apperror.ErrAuthorization)
	assert.Equal(t, 2, memberCount(t, f, created.RoomId))

	err = f.rooms.RemoveMember(ctx, admin, u3)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	require.NoError(t, f.rooms.RemoveMember(ctx, admin, u2))
	assert.Equal(t, 1, memberCount(t, f, created.RoomId))
	assert.Equal(t, []string{created.RoomId + ":" + u2.String()}, f.evictor.evicted)

	_, err = f.rooms.Authorize(ctx, u2, created.RoomId)
	assert.ErrorIs(t, err, apperror.ErrAuthorization)
}

func TestRoomExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := testutil.SeedUser(t, f.db, "Alice")
	u2 := testutil.SeedUser(t, f.db, "Bob")

	created, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Short", Password: "pw", ExpiresIn: 1})
	require.NoError(t, err)
	require.NotNil(t, created.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), *created.ExpiresAt)

	f.clock.Advance(25 * time.Hour)

	err = f.rooms.JoinRoom(ctx, u2, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "pw"})
	assert.ErrorIs(t, err, apperror.ErrExpired)

	details, err := f.rooms.GetRoomDetails(ctx, u1, created.RoomId)
	require.NoError(t, err)
	assert.True(t, details.IsExpired)
	assert.True(t, details.IsAdmin)

	admin, err := f.rooms.AuthorizeAdmin(ctx, u1, created.RoomId)
	require.NoError(t, err)

	_, err = f.rooms.ExtendExpiry(ctx, admin, -2)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	res, err := f.rooms.ExtendExpiry(ctx, admin, 3)
	require.NoError(t, err)
	require.NotNil(t, res.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(72*time.Hour), *res.ExpiresAt)

	require.NoError(t, f.rooms.JoinRoom(ctx, u2, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "pw"}))

	res, err = f.rooms.ExtendExpiry(ctx, admin, 0)
	require.NoError(t, err)
	assert.Nil(t, res.ExpiresAt)

	details, err = f.rooms.GetRoomDetails(ctx, u2, created.RoomId)
	require.NoError(t, err)
	assert.False(t, details.IsExpired)
	assert.False(t, details.IsAdmin)
	assert.Nil(t, details.Room.ExpiresAt)
	assert.Equal(t, 2, details.MembersCount)
}

func TestMyRoomsAndDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := testutil.SeedUser(t, f.db, "Alice")
	u2 := testutil.SeedUser(t, f.db, "Bob")

	a, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "A", Password: "pw"})
	require.NoError(t, err)
	b, err := f.rooms.CreateRoom(ctx, u2, &dto.CreateRoomRequest{Name: "B", Password: "pw"})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	require.NoError(t, f.rooms.JoinRoom(ctx, u1, &dto.JoinRoomRequest{RoomId: b.RoomId, Password: "pw"}))

	mine, err := f.rooms.GetMyRooms(ctx, u1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	roles := map[string]string{}
	for _, r := range mine {
		roles[r.RoomId] = r.Role
	}
	assert.Equal(t, "admin", roles[a.RoomId])
	assert.Equal(t, "member", roles[b.RoomId])

	_, err = f.rooms.GetRoomDetails(ctx, u2, a.RoomId)
	assert.ErrorIs(t, err, apperror.ErrAuthorization)

	details, err := f.rooms.GetRoomDetails(ctx, u1, b.RoomId)
	require.NoError(t, err)
	require.Len(t, details.Room.Members, 2)
	assert.Equal(t, "Bob", details.Room.Members[0].Username)
	assert.Equal(t, "Alice", details.Room.Members[1].Username)
}

func TestDeleteRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u1 := testutil.SeedUser(t, f.db, "Alice")
	created, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Gone", Password: "pw"})
	require.NoError(t, err)

	admin, err := f.rooms.AuthorizeAdmin(ctx, u1, created.RoomId)
	require.NoError(t, err)
	_, err = f.messages.SendText(ctx, admin, "bye")
	require.NoError(t, err)

	require.NoError(t, f.rooms.DeleteRoom(ctx, admin))
	assert.Equal(t, []string{created.RoomId}, f.evictor.closed)

	_, err = f.rooms.FindByJoinCode(ctx, created.RoomId)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	count, err := f.uow.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByRoomID{RoomID: admin.RoomId})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Contains(t, f.events.Types(), events.RoomDeleted)
}
