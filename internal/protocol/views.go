package protocol

import "time"

// MemberView is the public snapshot of one lobby member.
type MemberView struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	RoomID   string `json:"room_id,omitempty"`
}

// RoomView is the public snapshot of one lobby room.
type RoomView struct {
	RoomID    string    `json:"room_id"`
	Name      string    `json:"name"`
	HostID    string    `json:"host_id"`
	MemberIDs []string  `json:"member_ids"`
	Capacity  int       `json:"capacity"`
	GameID    string    `json:"game_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LobbySnapshot is the full lobby state served on GET /api/v1/lobby and
// broadcast in lobby_update frames.
type LobbySnapshot struct {
	Members []MemberView `json:"members"`
	Rooms   []RoomView   `json:"rooms"`
	Count   int          `json:"count"`
}

// GuestAuthRequest is the body of POST /api/v1/auth/guest.
type GuestAuthRequest struct {
	Name string `json:"name"`
}

// GuestAuthResponse returns the freshly issued guest credential.
type GuestAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Name      string    `json:"name"`
}
