// Package engine holds per-game state for the geodesic card game and its
// per-viewer serialization. Actions are validated against an injected
// ruleset but do not yet mutate state; the full rules land on top of these
// fixed shapes.
package engine

import (
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Gift is one gift-card entry, either in the shared display or in front of
// a player.
type Gift struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Cost map[string]int `json:"cost,omitempty"`
}

// TurnState tracks whose turn it is and what they have done with it.
type TurnState struct {
	Number         int    `json:"number"`
	PlayerID       string `json:"player_id"`
	HasTakenAction bool   `json:"has_taken_action"`
	HasPlayedLand  bool   `json:"has_played_land"`
}

// PlayerState is one seat's full state. Hand contents are private; the
// public view exposes only the count.
type PlayerState struct {
	MemberID       string
	Name           string
	Score          int
	Hand           []map[string]any
	LandsInPlay    []map[string]string
	Gifts          []Gift
	Building       *string
	PendingDiscard int
}

// PublicPlayer is the spectator-visible view of one seat.
type PublicPlayer struct {
	MemberID    string              `json:"member_id"`
	Name        string              `json:"name"`
	Score       int                 `json:"score"`
	HandCount   int                 `json:"hand_count"`
	LandsInPlay []map[string]string `json:"lands_in_play"`
	Gifts       []Gift              `json:"gifts"`
	Building    *string             `json:"building"`
}

// ViewerPlayer is a seat's view of itself, hand included.
type ViewerPlayer struct {
	MemberID       string              `json:"member_id"`
	Name           string              `json:"name"`
	Hand           []map[string]any    `json:"hand"`
	LandsInPlay    []map[string]string `json:"lands_in_play"`
	Building       *string             `json:"building"`
	PendingDiscard int                 `json:"pending_discard"`
}

// Public returns the spectator view of the seat.
func (p *PlayerState) Public() PublicPlayer {
	return PublicPlayer{
		MemberID:    p.MemberID,
		Name:        p.Name,
		Score:       p.Score,
		HandCount:   len(p.Hand),
		LandsInPlay: append([]map[string]string{}, p.LandsInPlay...),
		Gifts:       append([]Gift{}, p.Gifts...),
		Building:    p.Building,
	}
}

// Viewer returns the seat's own view, hand included.
func (p *PlayerState) Viewer() ViewerPlayer {
	return ViewerPlayer{
		MemberID:       p.MemberID,
		Name:           p.Name,
		Hand:           append([]map[string]any{}, p.Hand...),
		LandsInPlay:    append([]map[string]string{}, p.LandsInPlay...),
		Building:       p.Building,
		PendingDiscard: p.PendingDiscard,
	}
}

// State is the per-viewer serialization of one game, broadcast to the room
// after every accepted action.
type State struct {
	GameID       string         `json:"game_id"`
	RoomID       string         `json:"room_id"`
	Players      []PublicPlayer `json:"players"`
	Viewer       ViewerPlayer   `json:"viewer"`
	Turn         TurnState      `json:"turn"`
	GiftsDisplay []Gift         `json:"gifts_display"`
}

// Seat names one player joining a new game.
type Seat struct {
	MemberID string
	Name     string
}

// ActionValidator judges whether an action is legal for the acting player.
// A nil validator allows everything.
type ActionValidator interface {
	// ValidateAction returns nil to allow the action or a *RuleError to
	// reject it with a player-facing reason.
	ValidateAction(playerID, action string, payload map[string]any) error
}

// Engine holds one game's state. All methods are safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	state     gameState
	validator ActionValidator
}

// gameState is the full mutable state of one game.
type gameState struct {
	GameID       string
	RoomID       string
	Players      []*PlayerState
	Turn         TurnState
	GiftsDisplay []Gift
}

// New creates a game for the given room and seats. The first seat opens
// turn 1; a seatless game records "unknown" as the opening player. The
// gifts display is shared by all players and may be empty.
//
// Postcondition: Returns a non-nil Engine with a fresh unique game ID.
func New(roomID string, seats []Seat, gifts []Gift, validator ActionValidator) *Engine {
	players := lo.Map(seats, func(s Seat, _ int) *PlayerState {
		return &PlayerState{
			MemberID:    s.MemberID,
			Name:        s.Name,
			Hand:        []map[string]any{},
			LandsInPlay: []map[string]string{},
			Gifts:       []Gift{},
		}
	})

	firstPlayerID := "unknown"
	if len(players) > 0 {
		firstPlayerID = players[0].MemberID
	}

	id := uuid.New()
	return &Engine{
		state: gameState{
			GameID:       hex.EncodeToString(id[:]),
			RoomID:       roomID,
			Players:      players,
			Turn:         TurnState{Number: 1, PlayerID: firstPlayerID},
			GiftsDisplay: append([]Gift{}, gifts...),
		},
		validator: validator,
	}
}

// GameID returns the game's unique identifier.
func (e *Engine) GameID() string {
	return e.state.GameID
}

// RoomID returns the room the game was started from.
func (e *Engine) RoomID() string {
	return e.state.RoomID
}

// Apply validates an action for the acting player. Legal actions currently
// leave the state unchanged.
//
// Postcondition: Returns nil or a *RuleError carrying a player-facing
// reason; the state is never modified on rejection.
func (e *Engine) Apply(playerID, action string, payload map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.validator != nil {
		if err := e.validator.ValidateAction(playerID, action, payload); err != nil {
			return err
		}
	}
	return nil
}

// Serialize renders the game as seen by viewerID. A viewer who holds no
// seat sees the first seat's hand view.
func (e *Engine) Serialize(viewerID string) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	viewer, found := lo.Find(e.state.Players, func(p *PlayerState) bool {
		return p.MemberID == viewerID
	})
	if !found && len(e.state.Players) > 0 {
		viewer = e.state.Players[0]
	}

	var viewerView ViewerPlayer
	if viewer != nil {
		viewerView = viewer.Viewer()
	}

	return State{
		GameID: e.state.GameID,
		RoomID: e.state.RoomID,
		Players: lo.Map(e.state.Players, func(p *PlayerState, _ int) PublicPlayer {
			return p.Public()
		}),
		Viewer:       viewerView,
		Turn:         e.state.Turn,
		GiftsDisplay: append([]Gift{}, e.state.GiftsDisplay...),
	}
}
