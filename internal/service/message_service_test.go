package service_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/repository/specification"
	"bchat-be/internal/service"
	"bchat-be/internal/testutil"
	"bchat-be/pkg/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roomWithTwo creates a room owned by Alice that Bob has joined.
func roomWithTwo(t *testing.T, f *fixture) (alice, bob *service.MembershipInfo) {
	t.Helper()
	ctx := context.Background()

	u1 := testutil.SeedUser(t, f.db, "Alice")
	u2 := testutil.SeedUser(t, f.db, "Bob")
	created, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Gaming", Password: "abc123"})
	require.NoError(t, err)
	require.NoError(t, f.rooms.JoinRoom(ctx, u2, &dto.JoinRoomRequest{RoomId: created.RoomId, Password: "abc123"}))

	alice, err = f.rooms.Authorize(ctx, u1, created.RoomId)
	require.NoError(t, err)
	bob, err = f.rooms.Authorize(ctx, u2, created.RoomId)
	require.NoError(t, err)
	return alice, bob
}

func messageCount(t *testing.T, f *fixture, roomId uuid.UUID) int64 {
	t.Helper()
	ctx := context.Background()
	n, err := f.uow.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByRoomID{RoomID: roomId})
	require.NoError(t, err)
	return n
}

func TestSendTextRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	alice, _ := roomWithTwo(t, f)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := f.messages.SendText(context.Background(), alice, content)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}
	assert.Zero(t, messageCount(t, f, alice.RoomId))
}

func TestSendTextRejectsOversizedContent(t *testing.T) {
	f := newFixture(t)
	alice, _ := roomWithTwo(t, f)

	_, err := f.messages.SendText(context.Background(), alice, strings.Repeat("a", 1001))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	res, err := f.messages.SendText(context.Background(), alice, strings.Repeat("a", 1000))
	require.NoError(t, err)
	assert.Len(t, res.Content, 1000)
}

func TestSendTextAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := roomWithTwo(t, f)

	first, err := f.messages.SendText(ctx, alice, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", first.Content)
	assert.Equal(t, "Alice", first.Sender.Username)
	assert.Equal(t, alice.RoomCode, first.RoomCode)
	assert.NotNil(t, first.Reactions)

	_, err = f.messages.SendText(ctx, bob, "hey")
	require.NoError(t, err)
	ai, err := f.messages.AppendAI(ctx, alice, service.FormatAssistantExchange("what?", "this"))
	require.NoError(t, err)
	assert.Equal(t, dto.AISenderID, ai.Sender.Id)
	assert.True(t, ai.IsAI)

	history, err := f.messages.History(ctx, bob, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "Bob", history[1].Sender.Username)
	assert.Equal(t, "Q: what?\nA: this", history[2].Content)
	assert.Equal(t, dto.AISenderName, history[2].Sender.Username)

	latest, err := f.messages.History(ctx, bob, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "hey", latest[0].Content)
	assert.True(t, latest[1].IsAI)
}

func TestSendTextToExpiredRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := testutil.SeedUser(t, f.db, "Alice")

	created, err := f.rooms.CreateRoom(ctx, u1, &dto.CreateRoomRequest{Name: "Short", Password: "pw", ExpiresIn: 1})
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)

	member, err := f.rooms.Authorize(ctx, u1, created.RoomId)
	require.NoError(t, err)

	_, err = f.messages.SendText(ctx, member, "anyone?")
	assert.ErrorIs(t, err, apperror.ErrExpired)
	assert.Zero(t, messageCount(t, f, member.RoomId))
}

func TestToggleReaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := roomWithTwo(t, f)
	outsider := testutil.SeedUser(t, f.db, "Mallory")

	msg, err := f.messages.SendText(ctx, alice, "react to me")
	require.NoError(t, err)

	res, err := f.messages.ToggleReaction(ctx, bob.UserId, msg.Id, "👍")
	require.NoError(t, err)
	assert.Equal(t, alice.RoomCode, res.RoomCode)
	require.Len(t, res.Reactions, 1)
	assert.Equal(t, bob.UserId, res.Reactions[0].UserId)

	res, err = f.messages.ToggleReaction(ctx, alice.UserId, msg.Id, "👍")
	require.NoError(t, err)
	assert.Len(t, res.Reactions, 2)

	res, err = f.messages.ToggleReaction(ctx, bob.UserId, msg.Id, "👍")
	require.NoError(t, err)
	require.Len(t, res.Reactions, 1)
	assert.Equal(t, alice.UserId, res.Reactions[0].UserId)

	_, err = f.messages.ToggleReaction(ctx, outsider, msg.Id, "👍")
	assert.ErrorIs(t, err, apperror.ErrAuthorization)

	_, err = f.messages.ToggleReaction(ctx, bob.UserId, uuid.New(), "👍")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.messages.ToggleReaction(ctx, bob.UserId, msg.Id, " ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUploadFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := roomWithTwo(t, f)

	_, err := f.messages.UploadFile(ctx, alice, &dto.UploadFileInput{FileName: "a.txt", Reader: strings.NewReader("x")})
	assert.ErrorIs(t, err, apperror.ErrExternal)

	local, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	messages := service.NewMessageService(f.uow, f.users, local, logger.NewNopLogger(), service.WithMessageClock(f.clock.Tick))

	res, err := messages.UploadFile(ctx, alice, &dto.UploadFileInput{
		FileName: "notes.txt",
		MimeType: "text/plain",
		Reader:   strings.NewReader("hello file"),
	})
	require.NoError(t, err)
	require.NotNil(t, res.File)
	assert.Equal(t, "notes.txt", res.File.Name)
	assert.Equal(t, "text/plain", res.File.Type)
	assert.EqualValues(t, len("hello file"), res.File.Size)
	assert.True(t, strings.HasPrefix(res.File.URL, "/uploads/"))
	assert.Empty(t, res.Content)

	history, err := messages.History(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].File)
	assert.Equal(t, res.File.URL, history[0].File.URL)

	_, err = messages.UploadFile(ctx, alice, &dto.UploadFileInput{FileName: "a.txt"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func uploadDirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestUploadFileRejectedLeavesNoFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, _ := roomWithTwo(t, f)

	dir := t.TempDir()
	local, err := storage.NewLocalStorage(dir, "/uploads")
	require.NoError(t, err)
	messages := service.NewMessageService(f.uow, f.users, local, logger.NewNopLogger(), service.WithMessageClock(f.clock.Tick))

	_, err = messages.UploadFile(ctx, alice, &dto.UploadFileInput{
		FileName: "big.txt",
		Content:  strings.Repeat("a", 1001),
		Reader:   strings.NewReader("payload"),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Zero(t, uploadDirEntries(t, dir))

	ghost := &service.MembershipInfo{RoomId: alice.RoomId, RoomCode: alice.RoomCode, UserId: uuid.New()}
	_, err = messages.UploadFile(ctx, ghost, &dto.UploadFileInput{
		FileName: "orphan.txt",
		Reader:   strings.NewReader("payload"),
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Zero(t, uploadDirEntries(t, dir))
	assert.Zero(t, messageCount(t, f, alice.RoomId))
}

func TestHistoryOrderWithIdenticalClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := roomWithTwo(t, f)

	frozen := func() time.Time { return f.clock.Now() }
	messages := service.NewMessageService(f.uow, f.users, nil, logger.NewNopLogger(), service.WithMessageClock(frozen))

	sent := []string{"m1", "m2", "m3", "m4"}
	for i, content := range sent {
		member := alice
		if i%2 == 1 {
			member = bob
		}
		_, err := messages.SendText(ctx, member, content)
		require.NoError(t, err)
	}

	history, err := messages.History(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, history, len(sent))
	for i, m := range history {
		assert.Equal(t, sent[i], m.Content)
	}

	latest, err := messages.History(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "m3", latest[0].Content)
	assert.Equal(t, "m4", latest[1].Content)
}
