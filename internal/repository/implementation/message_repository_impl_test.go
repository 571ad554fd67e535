package implementation_test

import (
	"context"
	"testing"
	"time"

	"bchat-be/internal/entity"
	"bchat-be/internal/model"
	"bchat-be/internal/repository/implementation"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMessageRepository_ToggleReaction(t *testing.T) {
	db := testutil.NewTestDB(t)
	rooms := implementation.NewRoomRepository(db)
	messages := implementation.NewMessageRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "Alice")
	room := newRoom("REACT001", alice)
	require.NoError(t, rooms.Create(ctx, room))

	msg := &entity.Message{Id: uuid.New(), RoomId: room.Id, SenderId: &alice, Content: "hi", CreatedAt: time.Now().UTC()}
	require.NoError(t, messages.Create(ctx, msg))

	added, err := messages.ToggleReaction(ctx, msg.Id, alice, "👍")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = messages.ToggleReaction(ctx, msg.Id, alice, "🎉")
	require.NoError(t, err)
	assert.True(t, added)

	found, err := messages.FindOne(ctx, specification.ByID{ID: msg.Id})
	require.NoError(t, err)
	assert.Len(t, found.Reactions, 2)
	assert.Equal(t, "Alice", found.SenderUsername)

	added, err = messages.ToggleReaction(ctx, msg.Id, alice, "👍")
	require.NoError(t, err)
	assert.False(t, added)

	found, err = messages.FindOne(ctx, specification.ByID{ID: msg.Id})
	require.NoError(t, err)
	require.Len(t, found.Reactions, 1)
	assert.Equal(t, "🎉", found.Reactions[0].Emoji)
}

func TestMessageRepository_ToggleReactionLosingInsert(t *testing.T) {
	db := testutil.NewTestDB(t)
	rooms := implementation.NewRoomRepository(db)
	messages := implementation.NewMessageRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "Alice")
	room := newRoom("REACT002", alice)
	require.NoError(t, rooms.Create(ctx, room))

	msg := &entity.Message{Id: uuid.New(), RoomId: room.Id, SenderId: &alice, Content: "hi", CreatedAt: time.Now().UTC()}
	require.NoError(t, messages.Create(ctx, msg))

	// Another writer lands the same pair between the delete and the insert.
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:concurrent_reaction", func(tx *gorm.DB) {
		r, ok := tx.Statement.Dest.(*model.MessageReaction)
		if !ok {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO message_reactions (id, message_id, user_id, emoji, created_at) VALUES (?, ?, ?, ?, ?)",
			uuid.New(), r.MessageId, r.UserId, r.Emoji, r.CreatedAt,
		)
	}))

	added, err := messages.ToggleReaction(ctx, msg.Id, alice, "👍")
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, db.Callback().Create().Remove("test:concurrent_reaction"))

	found, err := messages.FindOne(ctx, specification.ByID{ID: msg.Id})
	require.NoError(t, err)
	assert.Len(t, found.Reactions, 1)
}

func TestMessageRepository_OrderingAndDeletes(t *testing.T) {
	db := testutil.NewTestDB(t)
	rooms := implementation.NewRoomRepository(db)
	messages := implementation.NewMessageRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "Alice")
	bob := testutil.SeedUser(t, db, "Bob")
	room := newRoom("ORDER001", alice)
	require.NoError(t, rooms.Create(ctx, room))

	clock := testutil.NewClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	for i, sender := range []uuid.UUID{alice, bob, alice} {
		s := sender
		require.NoError(t, messages.Create(ctx, &entity.Message{
			Id:        uuid.New(),
			RoomId:    room.Id,
			SenderId:  &s,
			Content:   []string{"one", "two", "three"}[i],
			CreatedAt: clock.Tick(),
		}))
	}
	require.NoError(t, messages.Create(ctx, &entity.Message{
		Id:        uuid.New(),
		RoomId:    room.Id,
		Content:   "Q: hi\nA: hello",
		IsAI:      true,
		CreatedAt: clock.Tick(),
	}))

	all, err := messages.FindAll(ctx, specification.ByRoomID{RoomID: room.Id}, specification.OrderBy{Field: "created_at"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "one", all[0].Content)
	assert.Equal(t, "two", all[1].Content)
	assert.True(t, all[3].IsAI)
	assert.Nil(t, all[3].SenderId)

	_, err = messages.ToggleReaction(ctx, all[0].Id, bob, "👍")
	require.NoError(t, err)

	deleted, err := messages.DeleteBySenderID(ctx, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	deleted, err = messages.DeleteByRoomID(ctx, room.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	count, err := messages.Count(ctx, specification.ByRoomID{RoomID: room.Id})
	require.NoError(t, err)
	assert.Zero(t, count)
}
