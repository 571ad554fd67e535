package events

import (
	"encoding/json"
	"time"
)

const (
	UserRegistered    = "USER_REGISTERED"
	AccountDeleted    = "ACCOUNT_DELETED"
	RoomCreated       = "ROOM_CREATED"
	RoomMemberJoined  = "ROOM_MEMBER_JOINED"
	RoomMemberRemoved = "ROOM_MEMBER_REMOVED"
	RoomDeleted       = "ROOM_DELETED"
	RoomExpiryChanged = "ROOM_EXPIRY_CHANGED"
)

// SensitiveKeys never leave the process.
var SensitiveKeys = []string{"otp", "secret"}

// Event defines the contract for all system events.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Public returns a copy of the payload with SensitiveKeys removed.
func Public(e Event) map[string]interface{} {
	out := make(map[string]interface{}, len(e.Payload()))
	for k, v := range e.Payload() {
		out[k] = v
	}
	for _, k := range SensitiveKeys {
		delete(out, k)
	}
	return out
}

func Encode(e Event) ([]byte, error) {
	return json.Marshal(BaseEvent{Type: e.EventType(), Data: e.Payload(), OccurredAt: e.Timestamp()})
}

func Decode(raw []byte) (BaseEvent, error) {
	var e BaseEvent
	err := json.Unmarshal(raw, &e)
	return e, err
}

// String reads a string field from a decoded payload.
func (e BaseEvent) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}
