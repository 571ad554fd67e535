// Package realtime turns inbound socket events into store mutations and room broadcasts.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"bchat-be/internal/dto"
	"bchat-be/internal/pkg/apperror"
	"bchat-be/internal/pkg/logger"
	"bchat-be/internal/service"
	"bchat-be/internal/websocket"
)

const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventAskAI       = "ask_ai"

	EventReceiveMessage  = "receive_message"
	EventUserTyping      = "user_typing"
	EventUserStopTyping  = "user_stop_typing"
	EventReactionUpdated = "reaction_updated"
)

// Gateway is the part of the hub the coordinator drives.
type Gateway interface {
	Subscribe(connID, roomCode string) bool
	Unsubscribe(connID, roomCode string)
	IsSubscribed(connID, roomCode string) bool
	Broadcast(roomCode, event string, payload interface{}) int
	BroadcastExcept(roomCode, exceptConnID, event string, payload interface{}) int
	SendError(connID, message string)
}

type RoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type SendMessagePayload struct {
	RoomCode string `json:"roomCode"`
	Content  string `json:"content"`
}

type AskAIPayload struct {
	RoomCode string `json:"roomCode"`
	Question string `json:"question"`
}

type TypingPayload struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
}

type StopTypingPayload struct {
	UserId string `json:"userId"`
}

type Coordinator struct {
	gateway   Gateway
	rooms     service.IRoomService
	messages  service.IMessageService
	assistant service.IAssistantService
	users     service.IUserDirectory
	logger    logger.ILogger
	now       func() time.Time
	spawn     func(func())
}

func NewCoordinator(
	gateway Gateway,
	rooms service.IRoomService,
	messages service.IMessageService,
	assistant service.IAssistantService,
	users service.IUserDirectory,
	log logger.ILogger,
) *Coordinator {
	return &Coordinator{
		gateway:   gateway,
		rooms:     rooms,
		messages:  messages,
		assistant: assistant,
		users:     users,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
		spawn:     func(f func()) { go f() },
	}
}

// HandleEvent implements websocket.EventHandler. Rejections go back to the caller as an error event.
func (c *Coordinator) HandleEvent(ctx context.Context, client *websocket.Client, event string, data json.RawMessage) {
	var err error
	switch event {
	case EventJoinRoom:
		err = c.joinRoom(ctx, client, data)
	case EventSendMessage:
		err = c.sendMessage(ctx, client, data)
	case EventTyping:
		err = c.typing(ctx, client, data)
	case EventStopTyping:
		err = c.stopTyping(client, data)
	case EventAskAI:
		// The completion can take a while; keep reading this client's frames meanwhile.
		c.spawn(func() {
			if err := c.askAI(ctx, client, data); err != nil {
				c.reject(client, event, err)
			}
		})
		return
	default:
		err = apperror.Validation("Unknown event")
	}

	if err != nil {
		c.reject(client, event, err)
	}
}

func (c *Coordinator) HandleDisconnect(client *websocket.Client) {
	c.logger.Debug("Coordinator", "Session ended", map[string]interface{}{
		"conn_id": client.ID,
		"user_id": client.UserID.String(),
	})
}

func (c *Coordinator) reject(client *websocket.Client, event string, err error) {
	if apperror.KindOf(err) == apperror.KindInternal || apperror.KindOf(err) == apperror.KindExternal {
		c.logger.Error("Coordinator", "Event failed", map[string]interface{}{
			"event":   event,
			"conn_id": client.ID,
			"user_id": client.UserID.String(),
			"error":   err.Error(),
		})
	}
	c.gateway.SendError(client.ID, apperror.PublicMessage(err))
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return apperror.Validation("Missing event data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperror.Validation("Invalid event data")
	}
	return nil
}

func roomCodeOf(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", apperror.Validation("Room code is required")
	}
	return code, nil
}

// joinRoom checks membership against the store before subscribing and again
// after. A removal that commits in between either evicts the new subscription
// or fails the second check, which rolls it back.
func (c *Coordinator) joinRoom(ctx context.Context, client *websocket.Client, data json.RawMessage) error {
	var p RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code, err := roomCodeOf(p.RoomCode)
	if err != nil {
		return err
	}

	if _, err := c.rooms.Authorize(ctx, client.UserID, code); err != nil {
		return err
	}
	if !c.gateway.Subscribe(client.ID, code) {
		return apperror.Internal("subscribe", errors.New("connection is not registered"))
	}
	if _, err := c.rooms.Authorize(ctx, client.UserID, code); err != nil {
		c.gateway.Unsubscribe(client.ID, code)
		return err
	}

	c.logger.Info("Coordinator", "Joined room", map[string]interface{}{
		"conn_id":   client.ID,
		"user_id":   client.UserID.String(),
		"room_code": code,
	})
	return nil
}

func (c *Coordinator) sendMessage(ctx context.Context, client *websocket.Client, data json.RawMessage) error {
	var p SendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code, err := roomCodeOf(p.RoomCode)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Content) == "" {
		return apperror.Validation("Message must have content or a file")
	}

	member, err := c.rooms.Authorize(ctx, client.UserID, code)
	if err != nil {
		return err
	}

	msg, err := c.messages.SendText(ctx, member, p.Content)
	if err != nil {
		return err
	}

	c.gateway.Broadcast(code, EventReceiveMessage, msg)
	return nil
}

func (c *Coordinator) typing(ctx context.Context, client *websocket.Client, data json.RawMessage) error {
	var p RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code, err := roomCodeOf(p.RoomCode)
	if err != nil {
		return err
	}
	if !c.gateway.IsSubscribed(client.ID, code) {
		return apperror.Authorization("Join the room first")
	}

	name, err := c.users.Username(ctx, client.UserID)
	if err != nil {
		return err
	}

	c.gateway.BroadcastExcept(code, client.ID, EventUserTyping, TypingPayload{
		UserId:   client.UserID.String(),
		Username: name,
	})
	return nil
}

func (c *Coordinator) stopTyping(client *websocket.Client, data json.RawMessage) error {
	var p RoomPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code, err := roomCodeOf(p.RoomCode)
	if err != nil {
		return err
	}
	if !c.gateway.IsSubscribed(client.ID, code) {
		return apperror.Authorization("Join the room first")
	}

	c.gateway.BroadcastExcept(code, client.ID, EventUserStopTyping, StopTypingPayload{
		UserId: client.UserID.String(),
	})
	return nil
}

func (c *Coordinator) askAI(ctx context.Context, client *websocket.Client, data json.RawMessage) error {
	var p AskAIPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	code, err := roomCodeOf(p.RoomCode)
	if err != nil {
		return err
	}
	question := strings.TrimSpace(p.Question)
	if question == "" {
		return apperror.Validation("Please ask a valid question")
	}

	member, err := c.rooms.Authorize(ctx, client.UserID, code)
	if err != nil {
		return err
	}
	if member.IsExpired(c.now()) {
		return apperror.Expired("Room has expired")
	}
	if err := c.assistant.CheckQuota(ctx, client.UserID); err != nil {
		return err
	}

	reply, err := c.answer(ctx, member, question)
	if err != nil {
		return err
	}

	c.gateway.Broadcast(code, EventReceiveMessage, reply)
	return nil
}

// answer runs between the AI typing and stop-typing signals.
// Stop-typing goes out on every path, before the reply is broadcast.
func (c *Coordinator) answer(ctx context.Context, member *service.MembershipInfo, question string) (*dto.MessageResponse, error) {
	c.gateway.Broadcast(member.RoomCode, EventUserTyping, TypingPayload{
		UserId:   dto.AISenderID,
		Username: dto.AISenderName,
	})
	defer c.gateway.Broadcast(member.RoomCode, EventUserStopTyping, StopTypingPayload{
		UserId: dto.AISenderID,
	})

	answer, err := c.assistant.Ask(ctx, member.RoomId, question)
	if err != nil {
		return nil, err
	}
	return c.messages.AppendAI(ctx, member, service.FormatAssistantExchange(question, answer))
}

// ReactionUpdated is called by the REST layer after a toggle.
func (c *Coordinator) ReactionUpdated(update *dto.ReactionUpdatedResponse) {
	c.gateway.Broadcast(update.RoomCode, EventReactionUpdated, update)
}

// MessageCreated pushes a message created outside the socket, such as an upload.
func (c *Coordinator) MessageCreated(msg *dto.MessageResponse) {
	c.gateway.Broadcast(msg.RoomCode, EventReceiveMessage, msg)
}

var (
	_ Gateway                = (*websocket.Hub)(nil)
	_ websocket.EventHandler = (*Coordinator)(nil)
)
