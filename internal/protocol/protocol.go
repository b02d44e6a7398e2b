// Package protocol defines the wire format shared by the lobby's WebSocket
// and REST surfaces: message type tags, frame shapes, close codes, and
// snapshot views. It has no dependencies on other internal packages so that
// transport, registry, and handler code can all share it.
package protocol

// Inbound message type tags.
const (
	TypePing       = "ping"
	TypeRename     = "rename"
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeStartGame  = "start_game"
	TypeGameAction = "game_action"
)

// Outbound message type tags.
const (
	TypePong        = "pong"
	TypeError       = "error"
	TypeGameError   = "game_error"
	TypeWelcome     = "welcome"
	TypeLobbyUpdate = "lobby_update"
	TypeGameUpdate  = "game_update"
)

// CloseCode is a WebSocket close status code.
type CloseCode int

// Close codes used by the session loop.
const (
	// CloseNormal signals expected termination: TTL expiry or server shutdown.
	CloseNormal CloseCode = 1000
	// ClosePolicyViolation signals an authentication refusal.
	ClosePolicyViolation CloseCode = 1008
	// CloseInternalError signals a server-side failure after authentication.
	CloseInternalError CloseCode = 1011
)

// ClientMessage is the parsed form of one inbound frame. Only Type is
// always present; the remaining fields are read per message type and
// ignored otherwise.
type ClientMessage struct {
	Type    string         `json:"type"`
	Name    string         `json:"name,omitempty"`
	RoomID  string         `json:"room_id,omitempty"`
	Action  string         `json:"action,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Frame is a minimal outbound message: a type tag plus an optional
// human-readable message for the error variants.
type Frame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Pong returns the reply frame for a ping.
func Pong() Frame {
	return Frame{Type: TypePong}
}

// Error returns an error frame carrying a registry failure reason.
func Error(message string) Frame {
	return Frame{Type: TypeError, Message: message}
}

// GameError returns a game_error frame carrying a rule or routing failure.
func GameError(message string) Frame {
	return Frame{Type: TypeGameError, Message: message}
}

// WelcomeFrame is sent to a member immediately after a successful join.
type WelcomeFrame struct {
	Type   string     `json:"type"`
	Member MemberView `json:"member"`
}

// Welcome returns the join acknowledgement frame for the given member.
func Welcome(m MemberView) WelcomeFrame {
	return WelcomeFrame{Type: TypeWelcome, Member: m}
}

// LobbyUpdateFrame broadcasts the full lobby snapshot to every member.
type LobbyUpdateFrame struct {
	Type    string       `json:"type"`
	Members []MemberView `json:"members"`
	Rooms   []RoomView   `json:"rooms"`
	Count   int          `json:"count"`
}

// LobbyUpdate returns a broadcast frame wrapping the given snapshot.
func LobbyUpdate(s LobbySnapshot) LobbyUpdateFrame {
	return LobbyUpdateFrame{
		Type:    TypeLobbyUpdate,
		Members: s.Members,
		Rooms:   s.Rooms,
		Count:   s.Count,
	}
}

// GameUpdateFrame carries one viewer's serialized game state.
type GameUpdateFrame struct {
	Type  string `json:"type"`
	State any    `json:"state"`
}

// GameUpdate returns a game state broadcast frame.
func GameUpdate(state any) GameUpdateFrame {
	return GameUpdateFrame{Type: TypeGameUpdate, State: state}
}
