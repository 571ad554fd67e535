package implementation_test

import (
	"context"
	"testing"
	"time"

	"bchat-be/internal/entity"
	"bchat-be/internal/repository/contract"
	"bchat-be/internal/repository/implementation"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoom(code string, admin uuid.UUID) *entity.Room {
	now := time.Now().UTC()
	return &entity.Room{
		Id:         uuid.New(),
		JoinCode:   code,
		Name:       "Gaming",
		SecretHash: "hash",
		CreatedBy:  admin,
		Members: []entity.Membership{
			{UserId: admin, Role: entity.MemberRoleAdmin, JoinedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRoomRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := implementation.NewRoomRepository(db)
	ctx := context.Background()

	admin := testutil.SeedUser(t, db, "Alice")
	room := newRoom("AbCd1234", admin)
	require.NoError(t, repo.Create(ctx, room))

	found, err := repo.FindOne(ctx, specification.ByJoinCode{Code: "AbCd1234"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, room.Id, found.Id)
	require.Len(t, found.Members, 1)
	assert.Equal(t, "Alice", found.Members[0].Username)
	assert.Equal(t, entity.MemberRoleAdmin, found.Members[0].Role)

	missing, err := repo.FindOne(ctx, specification.ByJoinCode{Code: "nope"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRoomRepository_DuplicateJoinCode(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := implementation.NewRoomRepository(db)
	ctx := context.Background()

	admin := testutil.SeedUser(t, db, "Alice")
	require.NoError(t, repo.Create(ctx, newRoom("SAMECODE", admin)))

	err := repo.Create(ctx, newRoom("SAMECODE", admin))
	assert.ErrorIs(t, err, contract.ErrDuplicate)
}

func TestRoomRepository_AddMemberIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := implementation.NewRoomRepository(db)
	ctx := context.Background()

	admin := testutil.SeedUser(t, db, "Alice")
	bob := testutil.SeedUser(t, db, "Bob")
	room := newRoom("ROOM0001", admin)
	require.NoError(t, repo.Create(ctx, room))

	member := entity.Membership{UserId: bob, Role: entity.MemberRoleMember, JoinedAt: time.Now().UTC()}

	added, err := repo.AddMember(ctx, room.Id, member)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = repo.AddMember(ctx, room.Id, member)
	require.NoError(t, err)
	assert.False(t, added)

	found, err := repo.FindOne(ctx, specification.ByID{ID: room.Id})
	require.NoError(t, err)
	assert.Len(t, found.Members, 2)

	role, ok, err := repo.RoleOf(ctx, room.Id, bob)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, entity.MemberRoleMember, role)
}

func TestRoomRepository_RemoveMemberKeepsLastAdmin(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := implementation.NewRoomRepository(db)
	ctx := context.Background()

	admin := testutil.SeedUser(t, db, "Alice")
	bob := testutil.SeedUser(t, db, "Bob")
	room := newRoom("ROOM0002", admin)
	require.NoError(t, repo.Create(ctx, room))
	_, err := repo.AddMember(ctx, room.Id, entity.Membership{UserId: bob, Role: entity.MemberRoleMember, JoinedAt: time.Now().UTC()})
	require.NoError(t, err)

	removed, err := repo.RemoveMember(ctx, room.Id, admin)
	require.NoError(t, err)
	assert.False(t, removed, "the only admin must stay")

	removed, err = repo.RemoveMember(ctx, room.Id, bob)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.RemoveMember(ctx, room.Id, bob)
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err := repo.RoleOf(ctx, room.Id, admin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoomRepository_RoomsWithMemberAndExpiry(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := implementation.NewRoomRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "Alice")
	bob := testutil.SeedUser(t, db, "Bob")
	require.NoError(t, repo.Create(ctx, newRoom("ALICE001", alice)))
	bobs := newRoom("BOB00001", bob)
	require.NoError(t, repo.Create(ctx, bobs))

	rooms, err := repo.FindAll(ctx, specification.RoomsWithMember{UserID: alice})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "ALICE001", rooms[0].JoinCode)

	expiry := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	require.NoError(t, repo.UpdateExpiry(ctx, bobs.Id, &expiry))
	found, err := repo.FindOne(ctx, specification.ByID{ID: bobs.Id})
	require.NoError(t, err)
	require.NotNil(t, found.ExpiresAt)
	assert.True(t, expiry.Equal(*found.ExpiresAt))

	require.NoError(t, repo.UpdateExpiry(ctx, bobs.Id, nil))
	found, err = repo.FindOne(ctx, specification.ByID{ID: bobs.Id})
	require.NoError(t, err)
	assert.Nil(t, found.ExpiresAt)

	require.NoError(t, repo.Delete(ctx, bobs.Id))
	gone, err := repo.FindOne(ctx, specification.ByID{ID: bobs.Id})
	require.NoError(t, err)
	assert.Nil(t, gone)
	_, ok, err := repo.RoleOf(ctx, bobs.Id, bob)
	require.NoError(t, err)
	assert.False(t, ok)
}
