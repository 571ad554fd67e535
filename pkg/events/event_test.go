package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicStripsSensitiveKeys(t *testing.T) {
	e := New(RoomCreated, map[string]interface{}{"room_code": "AbC12345", "secret": "abc123"})

	pub := Public(e)
	assert.Equal(t, "AbC12345", pub["room_code"])
	assert.NotContains(t, pub, "secret")
	assert.Contains(t, e.Payload(), "secret", "original payload untouched")
}

func TestEncodeDecode(t *testing.T) {
	e := New(UserRegistered, map[string]interface{}{"email": "a@b.c"})

	raw, err := Encode(e)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, UserRegistered, got.EventType())
	assert.Equal(t, "a@b.c", got.String("email"))
	assert.Equal(t, "", got.String("missing"))
}
