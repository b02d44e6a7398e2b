package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPongOmitsMessage(t *testing.T) {
	data, err := json.Marshal(Pong())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(data))
}

func TestErrorFrameShape(t *testing.T) {
	data, err := json.Marshal(Error("Room is full."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","message":"Room is full."}`, string(data))
}

func TestGameErrorFrameShape(t *testing.T) {
	data, err := json.Marshal(GameError("You are not in a room."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game_error","message":"You are not in a room."}`, string(data))
}

func TestClientMessageParsesGameAction(t *testing.T) {
	raw := `{"type":"game_action","action":"play_land","payload":{"card":"forest"}}`
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, TypeGameAction, msg.Type)
	assert.Equal(t, "play_land", msg.Action)
	assert.Equal(t, map[string]any{"card": "forest"}, msg.Payload)
}

func TestClientMessageIgnoresUnknownFields(t *testing.T) {
	raw := `{"type":"ping","extra":"stuff","nested":{"a":1}}`
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, TypePing, msg.Type)
}

func TestClientMessageMissingType(t *testing.T) {
	raw := `{"name":"alice"}`
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Empty(t, msg.Type)
	assert.Equal(t, "alice", msg.Name)
}

func TestLobbyUpdateCarriesSnapshot(t *testing.T) {
	snap := LobbySnapshot{
		Members: []MemberView{{MemberID: "m1", Name: "alice"}},
		Rooms:   []RoomView{},
		Count:   1,
	}
	frame := LobbyUpdate(snap)
	assert.Equal(t, TypeLobbyUpdate, frame.Type)
	assert.Equal(t, snap.Members, frame.Members)
	assert.Equal(t, 1, frame.Count)
}
