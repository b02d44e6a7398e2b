package lobby

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/config"
	"github.com/geodesic-gg/lobby/internal/game/engine"
	"github.com/geodesic-gg/lobby/internal/observability"
	"github.com/geodesic-gg/lobby/internal/protocol"
)

// Registry failure reasons. These are wire text, sent verbatim to clients
// in error frames, so they are complete sentences.
var (
	ErrNotConnected     = errors.New("You are not connected.")
	ErrRoomNotFound     = errors.New("Room not found.")
	ErrRoomFull         = errors.New("Room is full.")
	ErrGameStarted      = errors.New("Game already started.")
	ErrNotInRoom        = errors.New("You are not in that room.")
	ErrNotHost          = errors.New("Only the host can start the game.")
	ErrNotEnoughPlayers = errors.New("Not enough players.")
)

// GameStarter creates and ends games for lobby rooms.
type GameStarter interface {
	CreateGame(roomID string, seats []engine.Seat) *engine.Engine
	EndGame(gameID string)
}

// Room is one lobby room.
type Room struct {
	ID     string
	Name   string
	HostID string
	// MemberIDs is kept in join order; the oldest member inherits the host
	// seat when the host leaves.
	MemberIDs []string
	GameID    string
	CreatedAt time.Time
}

// Manager is the membership and room registry. All methods are safe for
// concurrent use; every mutating call is a single atomic request/response
// and broadcasts go through per-member outboxes, never blocking under the
// lock.
type Manager struct {
	mu      sync.RWMutex
	members map[string]*Member
	rooms   map[string]*Room
	cfg     config.LobbyConfig
	games   GameStarter
	logger  *zap.Logger
}

// NewManager creates an empty lobby Manager.
//
// Precondition: games and logger must be non-nil; cfg must have passed
// config validation.
func NewManager(cfg config.LobbyConfig, games GameStarter, logger *zap.Logger) *Manager {
	return &Manager{
		members: make(map[string]*Member),
		rooms:   make(map[string]*Room),
		cfg:     cfg,
		games:   games,
		logger:  logger,
	}
}

// Join registers a connected participant under the given identity. The
// requested name is sanitized, the member's outbox pump is started, a
// welcome frame goes to the joiner, and everyone receives a lobby update.
//
// Precondition: memberID must be non-empty and not already registered.
// Postcondition: Returns the created Member, or an error if the identity
// is already connected.
func (m *Manager) Join(sender Sender, requestedName, memberID string) (*Member, error) {
	name := SanitizeGuestName(requestedName)

	m.mu.Lock()
	if _, exists := m.members[memberID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("member %q already connected", memberID)
	}
	member := &Member{
		ID:       memberID,
		Name:     name,
		JoinedAt: time.Now(),
		sender:   sender,
		outbox:   NewOutbox(memberID, m.cfg.OutboxBuffer),
	}
	m.members[memberID] = member
	go member.pump(m.logger)

	m.push(member, protocol.Welcome(memberView(member)))
	m.broadcastLobbyLocked()
	m.mu.Unlock()

	m.logger.Info("member joined",
		zap.String("member_id", memberID),
		zap.String("name", name),
	)
	return member, nil
}

// Rename updates the member's display name and announces the change.
// Unknown members are ignored.
func (m *Manager) Rename(memberID, newName string) {
	name := SanitizeGuestName(newName)

	m.mu.Lock()
	member, ok := m.members[memberID]
	if !ok {
		m.mu.Unlock()
		return
	}
	old := member.Name
	member.Name = name
	m.broadcastLobbyLocked()
	m.mu.Unlock()

	m.logger.Debug("member renamed",
		zap.String("member_id", memberID),
		zap.String("from", old),
		zap.String("to", name),
	)
}

// CreateRoom opens a room hosted by the member and moves them into it,
// leaving any room they currently occupy. An empty requested name falls
// back to "<member>'s room".
//
// Postcondition: On success the member occupies the new room as its host
// and the returned id resolves via Room. The returned error text is shown
// to the client verbatim.
func (m *Manager) CreateRoom(memberID, requestedName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[memberID]
	if !ok {
		return "", ErrNotConnected
	}

	m.leaveLocked(member)

	room := &Room{
		ID:        uuid.NewString(),
		Name:      sanitizeRoomName(requestedName, member.Name),
		HostID:    memberID,
		MemberIDs: []string{memberID},
		CreatedAt: time.Now(),
	}
	m.rooms[room.ID] = room
	member.RoomID = room.ID

	m.broadcastLobbyLocked()
	observability.SetRooms(len(m.rooms))

	m.logger.Info("room created",
		zap.String("room_id", room.ID),
		zap.String("host_id", memberID),
		zap.String("name", room.Name),
	)
	return room.ID, nil
}

// JoinRoom moves the member into the room, leaving their current room.
// Joining the room they already occupy is a no-op. Rooms with a running
// game or at capacity are not joinable.
//
// Postcondition: Returns nil on success. The returned error text is shown
// to the client verbatim.
func (m *Manager) JoinRoom(memberID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[memberID]
	if !ok {
		return ErrNotConnected
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if member.RoomID == roomID {
		return nil
	}
	if room.GameID != "" {
		return ErrGameStarted
	}
	if len(room.MemberIDs) >= m.cfg.RoomCapacity {
		return ErrRoomFull
	}

	m.leaveLocked(member)
	room.MemberIDs = append(room.MemberIDs, memberID)
	member.RoomID = roomID

	m.broadcastLobbyLocked()
	return nil
}

// LeaveRoom removes the member from their current room, if any.
func (m *Manager) LeaveRoom(memberID string) {
	m.mu.Lock()
	member, ok := m.members[memberID]
	if !ok || member.RoomID == "" {
		m.mu.Unlock()
		return
	}
	roomID := member.RoomID
	m.leaveLocked(member)
	m.broadcastLobbyLocked()
	m.mu.Unlock()

	m.logger.Debug("member left room",
		zap.String("member_id", memberID),
		zap.String("room_id", roomID),
	)
}

// StartGame starts the room's game. Only the host may start, the room must
// hold at least the configured minimum of players, and a room runs at most
// one game at a time.
//
// Postcondition: On success the room carries the new game id and every
// occupant received the opening game state. The returned error text is
// shown to the client verbatim.
func (m *Manager) StartGame(memberID, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	member, ok := m.members[memberID]
	if !ok {
		return ErrNotConnected
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if member.RoomID != roomID {
		return ErrNotInRoom
	}
	if room.HostID != memberID {
		return ErrNotHost
	}
	if room.GameID != "" {
		return ErrGameStarted
	}
	if len(room.MemberIDs) < m.cfg.MinPlayers {
		return ErrNotEnoughPlayers
	}

	seats := lo.Map(room.MemberIDs, func(id string, _ int) engine.Seat {
		return engine.Seat{MemberID: id, Name: m.members[id].Name}
	})
	e := m.games.CreateGame(roomID, seats)
	room.GameID = e.GameID()

	m.broadcastLobbyLocked()
	m.broadcastGameUpdateLocked(room, e)
	observability.RecordGameStarted()

	m.logger.Info("game started",
		zap.String("room_id", roomID),
		zap.String("game_id", room.GameID),
		zap.String("host_id", memberID),
		zap.Int("players", len(seats)),
	)
	return nil
}

// RoomIDForMember returns the room the member currently occupies.
//
// Postcondition: Returns ("", false) when the member is unknown or roaming
// the lobby.
func (m *Manager) RoomIDForMember(memberID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[memberID]
	if !ok || member.RoomID == "" {
		return "", false
	}
	return member.RoomID, true
}

// Room returns the public view of the room.
//
// Postcondition: Returns (view, true) if found, or (zero, false) otherwise.
func (m *Manager) Room(roomID string) (protocol.RoomView, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return protocol.RoomView{}, false
	}
	return m.roomViewLocked(room), true
}

// GetMember returns the member for the given id.
//
// Postcondition: Returns (member, true) if connected, or (nil, false) otherwise.
func (m *Manager) GetMember(memberID string) (*Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[memberID]
	return member, ok
}

// BroadcastGameUpdate sends each occupant of the room their own view of
// the game state.
func (m *Manager) BroadcastGameUpdate(roomID string, e *engine.Engine) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return
	}
	m.broadcastGameUpdateLocked(room, e)
}

// Snapshot returns the full lobby state: members and rooms in join order.
func (m *Manager) Snapshot() protocol.LobbySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// MemberCount returns the number of connected members.
func (m *Manager) MemberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members)
}

// Remove disconnects the member: implicit room leave, outbox shutdown, and
// a lobby update to everyone remaining. No-op for unknown ids.
//
// Postcondition: The member is gone from all tracking; their pump exits
// once the queued frames drain.
func (m *Manager) Remove(memberID string) {
	m.mu.Lock()
	member, ok := m.members[memberID]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.leaveLocked(member)
	delete(m.members, memberID)
	member.outbox.Close()
	m.broadcastLobbyLocked()
	m.mu.Unlock()

	m.logger.Info("member left",
		zap.String("member_id", memberID),
		zap.String("name", member.Name),
	)
}

// DropAll disconnects every member and deletes every room. Used on shutdown.
//
// Postcondition: MemberCount() == 0 and no rooms remain.
func (m *Manager) DropAll() {
	m.mu.Lock()
	for _, member := range m.members {
		member.outbox.Close()
	}
	n := len(m.members)
	m.members = make(map[string]*Member)
	m.rooms = make(map[string]*Room)
	observability.SetRooms(0)
	m.mu.Unlock()

	if n > 0 {
		m.logger.Info("lobby cleared", zap.Int("members", n))
	}
}

// leaveLocked removes the member from their current room, handing the host
// seat to the oldest remaining member and deleting the room when it
// empties. A deleted room's game is ended. The caller holds the write lock
// and is responsible for broadcasting.
func (m *Manager) leaveLocked(member *Member) {
	if member.RoomID == "" {
		return
	}
	room, ok := m.rooms[member.RoomID]
	member.RoomID = ""
	if !ok {
		return
	}

	room.MemberIDs = lo.Without(room.MemberIDs, member.ID)
	if len(room.MemberIDs) == 0 {
		delete(m.rooms, room.ID)
		if room.GameID != "" {
			m.games.EndGame(room.GameID)
		}
		observability.SetRooms(len(m.rooms))
		m.logger.Info("room closed", zap.String("room_id", room.ID))
		return
	}
	if room.HostID == member.ID {
		room.HostID = room.MemberIDs[0]
	}
}

// push enqueues a frame for one member, logging drops.
func (m *Manager) push(member *Member, frame any) {
	if err := member.outbox.Push(frame); err != nil {
		m.logger.Debug("dropping frame",
			zap.String("member_id", member.ID),
			zap.Error(err),
		)
	}
}

// broadcastLobbyLocked fans the current snapshot out to every member.
// The caller holds at least the read lock.
func (m *Manager) broadcastLobbyLocked() {
	frame := protocol.LobbyUpdate(m.snapshotLocked())
	for _, member := range m.members {
		m.push(member, frame)
	}
}

// broadcastGameUpdateLocked sends each room occupant their own serialized
// view of the game. The caller holds at least the read lock.
func (m *Manager) broadcastGameUpdateLocked(room *Room, e *engine.Engine) {
	for _, id := range room.MemberIDs {
		member, ok := m.members[id]
		if !ok {
			continue
		}
		m.push(member, protocol.GameUpdate(e.Serialize(id)))
	}
}

func (m *Manager) snapshotLocked() protocol.LobbySnapshot {
	members := lo.Map(m.membersLocked(), func(member *Member, _ int) protocol.MemberView {
		return memberView(member)
	})
	rooms := lo.Map(m.roomsLocked(), func(room *Room, _ int) protocol.RoomView {
		return m.roomViewLocked(room)
	})
	return protocol.LobbySnapshot{Members: members, Rooms: rooms, Count: len(members)}
}

// membersLocked returns members sorted by join time.
func (m *Manager) membersLocked() []*Member {
	list := lo.Values(m.members)
	sort.Slice(list, func(i, j int) bool {
		if list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].JoinedAt.Before(list[j].JoinedAt)
	})
	return list
}

// roomsLocked returns rooms sorted by creation time.
func (m *Manager) roomsLocked() []*Room {
	list := lo.Values(m.rooms)
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

func (m *Manager) roomViewLocked(room *Room) protocol.RoomView {
	return protocol.RoomView{
		RoomID:    room.ID,
		Name:      room.Name,
		HostID:    room.HostID,
		MemberIDs: append([]string{}, room.MemberIDs...),
		Capacity:  m.cfg.RoomCapacity,
		GameID:    room.GameID,
		CreatedAt: room.CreatedAt,
	}
}

func memberView(member *Member) protocol.MemberView {
	return protocol.MemberView{
		MemberID: member.ID,
		Name:     member.Name,
		RoomID:   member.RoomID,
	}
}
