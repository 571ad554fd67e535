package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"bchat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const (
	EventError  = "error"
	sendBuffer  = 256
	statsPeriod = time.Minute
)

var ErrHubClosed = errors.New("websocket hub is shut down")

// Envelope is the JSON text frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// EventHandler receives decoded client events. Calls for one client arrive in order.
type EventHandler interface {
	HandleEvent(ctx context.Context, client *Client, event string, data json.RawMessage)
	HandleDisconnect(client *Client)
}

// Hub tracks live connections and their room subscriptions on this node.
type Hub struct {
	mu sync.RWMutex

	// connection id -> client
	clients map[string]*Client

	// room code -> connection id -> client
	rooms map[string]map[string]*Client

	handler EventHandler
	logger  logger.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewHub(log logger.ILogger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetHandler must be called before the first connection is served.
func (h *Hub) SetHandler(handler EventHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// Context is cancelled by Shutdown. Work started on behalf of a client should use it.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// Run logs connection stats until ctx is done, then shuts the hub down.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(statsPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			conns, rooms := len(h.clients), len(h.rooms)
			h.mu.RUnlock()
			h.logger.Debug("Hub", "Stats", map[string]interface{}{"connections": conns, "rooms": rooms})
		}
	}
}

func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	client.hub = h
	h.clients[client.ID] = client

	h.logger.Info("Hub", "Client connected", map[string]interface{}{
		"conn_id": client.ID,
		"user_id": client.UserID.String(),
	})
	return nil
}

// Unregister drops the client from every room and closes its send channel. Safe to repeat.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	h.removeLocked(client)
	handler := h.handler
	h.mu.Unlock()

	h.logger.Info("Hub", "Client disconnected", map[string]interface{}{
		"conn_id": client.ID,
		"user_id": client.UserID.String(),
	})

	if handler != nil {
		handler.HandleDisconnect(client)
	}
}

func (h *Hub) removeLocked(client *Client) {
	for code := range client.rooms {
		if members, ok := h.rooms[code]; ok {
			delete(members, client.ID)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	client.rooms = nil
	delete(h.clients, client.ID)
	close(client.Send)
}

// Subscribe adds a registered connection to the room. Repeated calls are no-ops.
func (h *Hub) Subscribe(connID, roomCode string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	members, ok := h.rooms[roomCode]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomCode] = members
	}
	members[connID] = client
	if client.rooms == nil {
		client.rooms = make(map[string]struct{})
	}
	client.rooms[roomCode] = struct{}{}
	return true
}

// Unsubscribe removes one connection from the room.
func (h *Hub) Unsubscribe(connID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomCode]
	if client, ok := members[connID]; ok {
		delete(members, connID)
		delete(client.rooms, roomCode)
	}
	if len(members) == 0 {
		delete(h.rooms, roomCode)
	}
}

func (h *Hub) IsSubscribed(connID, roomCode string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomCode][connID]
	return ok
}

// RoomSize reports the number of subscribed connections.
func (h *Hub) RoomSize(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: payload})
}

// Broadcast sends to every connection in the room, the sender's included.
func (h *Hub) Broadcast(roomCode, event string, payload interface{}) int {
	return h.BroadcastExcept(roomCode, "", event, payload)
}

// BroadcastExcept skips exceptConnID. Returns the number of deliveries.
func (h *Hub) BroadcastExcept(roomCode, exceptConnID, event string, payload interface{}) int {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return 0
	}

	var slow []*Client
	delivered := 0

	h.mu.RLock()
	for id, client := range h.rooms[roomCode] {
		if id == exceptConnID {
			continue
		}
		select {
		case client.Send <- data:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
	return delivered
}

// SendTo writes to a single connection.
func (h *Hub) SendTo(connID, event string, payload interface{}) bool {
	data, err := encode(event, payload)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"event": event, "error": err.Error()})
		return false
	}

	var slow []*Client
	sent := false

	h.mu.RLock()
	if client, ok := h.clients[connID]; ok {
		select {
		case client.Send <- data:
			sent = true
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
	return sent
}

func (h *Hub) SendError(connID, message string) {
	h.SendTo(connID, EventError, ErrorPayload{Message: message})
}

func (h *Hub) dropSlow(slow []*Client) {
	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
			"conn_id": client.ID,
			"user_id": client.UserID.String(),
		})
		h.Unregister(client)
	}
}

// EvictUser removes all of the user's connections from one room.
func (h *Hub) EvictUser(roomCode string, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomCode]
	for id, client := range members {
		if client.UserID == userID {
			delete(members, id)
			delete(client.rooms, roomCode)
		}
	}
	if len(members) == 0 {
		delete(h.rooms, roomCode)
	}
}

// CloseRoom drops every subscription to the room.
func (h *Hub) CloseRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.rooms[roomCode] {
		delete(client.rooms, roomCode)
	}
	delete(h.rooms, roomCode)
}

// EvictUserEverywhere drops every subscription held by the user's connections.
func (h *Hub) EvictUserEverywhere(userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		if client.UserID != userID {
			continue
		}
		for code := range client.rooms {
			if members, ok := h.rooms[code]; ok {
				delete(members, client.ID)
				if len(members) == 0 {
					delete(h.rooms, code)
				}
			}
		}
		client.rooms = nil
	}
}

// Shutdown closes every connection and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	count := len(h.clients)
	for _, client := range h.clients {
		h.removeLocked(client)
	}
	h.mu.Unlock()

	h.cancel()
	h.logger.Info("Hub", "Shut down", map[string]interface{}{"closed_connections": count})
}

// dispatch decodes one inbound frame and hands it to the handler.
func (h *Hub) dispatch(client *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		h.SendError(client.ID, "Invalid message format")
		return
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	if handler == nil {
		return
	}
	handler.HandleEvent(h.ctx, client, env.Event, env.Data)
}
