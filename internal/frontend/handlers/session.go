// Package handlers provides the lobby's HTTP and WebSocket surface: guest
// token issuance, lobby snapshots, and the per-connection session protocol.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/auth"
	"github.com/geodesic-gg/lobby/internal/frontend/ws"
	"github.com/geodesic-gg/lobby/internal/game/engine"
	"github.com/geodesic-gg/lobby/internal/lobby"
	"github.com/geodesic-gg/lobby/internal/observability"
	"github.com/geodesic-gg/lobby/internal/protocol"
)

// TokenManager defines the credential operations required by the handlers.
type TokenManager interface {
	Issue() (auth.Token, error)
	Claim(value, memberID string) (auth.Token, bool)
	Revoke(value string)
}

// Registry defines the membership and room operations required by the
// session loop.
type Registry interface {
	Join(sender lobby.Sender, requestedName, memberID string) (*lobby.Member, error)
	Rename(memberID, newName string)
	CreateRoom(memberID, name string) (string, error)
	JoinRoom(memberID, roomID string) error
	LeaveRoom(memberID string)
	StartGame(memberID, roomID string) error
	RoomIDForMember(memberID string) (string, bool)
	Room(roomID string) (protocol.RoomView, bool)
	BroadcastGameUpdate(roomID string, e *engine.Engine)
	Remove(memberID string)
	Snapshot() protocol.LobbySnapshot
}

// GameApplier routes one player action into a running game.
type GameApplier interface {
	ApplyAction(gameID, memberID, action string, payload map[string]any) (*engine.Engine, error)
}

// Conn is the transport surface the session loop drives. Receive must
// report an elapsed wait as ws.ErrDeadline, distinguishable from a
// disconnect; *ws.Conn satisfies this.
type Conn interface {
	Receive(ctx context.Context, wait time.Duration) ([]byte, error)
	Send(ctx context.Context, v any) error
	Close(code protocol.CloseCode, reason string) error
}

// SessionHandler runs the full authenticate, join, dispatch, cleanup cycle
// for one connection.
type SessionHandler struct {
	tokens   TokenManager
	registry Registry
	games    GameApplier
	logger   *zap.Logger
}

// NewSessionHandler creates a SessionHandler over the given collaborators.
//
// Precondition: tokens, registry, games, and logger must be non-nil.
func NewSessionHandler(tokens TokenManager, registry Registry, games GameApplier, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		tokens:   tokens,
		registry: registry,
		games:    games,
		logger:   logger,
	}
}

// HandleSession authenticates the connection and runs its dispatch loop.
// token and requestedName come from the connection attempt's query string.
//
// Postcondition: On every exit path after a successful claim the member is
// removed from the registry and the token revoked, exactly once.
func (h *SessionHandler) HandleSession(ctx context.Context, conn Conn, token, requestedName string) {
	start := time.Now()

	if token == "" {
		_ = conn.Close(protocol.ClosePolicyViolation, "missing token")
		return
	}

	memberID := uuid.NewString()
	cred, ok := h.tokens.Claim(token, memberID)
	if !ok {
		observability.RecordTokenClaim(observability.ClaimOutcomeRejected)
		h.logger.Debug("token claim rejected", zap.String("member_id", memberID))
		_ = conn.Close(protocol.ClosePolicyViolation, "invalid or expired token")
		return
	}
	observability.RecordTokenClaim(observability.ClaimOutcomeAccepted)

	member, err := h.registry.Join(conn, requestedName, memberID)
	if err != nil {
		h.tokens.Revoke(token)
		h.logger.Error("joining lobby", zap.Error(err), zap.String("member_id", memberID))
		_ = conn.Close(protocol.CloseInternalError, "join failed")
		return
	}

	defer func() {
		h.registry.Remove(member.ID)
		h.tokens.Revoke(token)
		h.logger.Info("session ended",
			zap.String("member_id", member.ID),
			zap.Duration("session_duration", time.Since(start)),
		)
	}()

	observability.SessionOpened()
	defer observability.SessionClosed()

	h.logger.Info("session started",
		zap.String("member_id", member.ID),
		zap.String("name", member.Name),
		zap.Time("expires_at", cred.ExpiresAt),
	)

	h.dispatchLoop(ctx, conn, member.ID, cred.ExpiresAt)
}

// dispatchLoop processes inbound messages in arrival order until the
// credential's TTL elapses, the client disconnects, or the server shuts
// down. Expiry and shutdown close with the normal code; a disconnect needs
// no close at all.
func (h *SessionHandler) dispatchLoop(ctx context.Context, conn Conn, memberID string, expiresAt time.Time) {
	for {
		remaining := time.Until(expiresAt)
		if remaining <= 0 {
			_ = conn.Close(protocol.CloseNormal, "session expired")
			return
		}

		raw, err := conn.Receive(ctx, remaining)
		switch {
		case err == nil:
		case errors.Is(err, ws.ErrDeadline):
			_ = conn.Close(protocol.CloseNormal, "session expired")
			return
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			_ = conn.Close(protocol.CloseNormal, "server shutting down")
			return
		default:
			h.logger.Debug("connection closed",
				zap.String("member_id", memberID),
				zap.Error(err),
			)
			return
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed frames are dropped without a reply.
			continue
		}

		if err := h.dispatch(ctx, conn, memberID, msg); err != nil {
			h.logger.Debug("session reply failed",
				zap.String("member_id", memberID),
				zap.Error(err),
			)
			return
		}
	}
}

// dispatch routes one parsed message. Registry and rule failures are
// reported to the client in-band; a returned error means the connection is
// no longer usable and ends the loop.
func (h *SessionHandler) dispatch(ctx context.Context, conn Conn, memberID string, msg protocol.ClientMessage) error {
	observability.RecordMessage(messageLabel(msg.Type))

	switch msg.Type {
	case protocol.TypePing:
		return conn.Send(ctx, protocol.Pong())

	case protocol.TypeRename:
		h.registry.Rename(memberID, msg.Name)
		return nil

	case protocol.TypeCreateRoom:
		if _, err := h.registry.CreateRoom(memberID, msg.Name); err != nil {
			return conn.Send(ctx, protocol.Error(err.Error()))
		}
		return nil

	case protocol.TypeJoinRoom:
		if err := h.registry.JoinRoom(memberID, msg.RoomID); err != nil {
			return conn.Send(ctx, protocol.Error(err.Error()))
		}
		return nil

	case protocol.TypeLeaveRoom:
		h.registry.LeaveRoom(memberID)
		return nil

	case protocol.TypeStartGame:
		if err := h.registry.StartGame(memberID, msg.RoomID); err != nil {
			return conn.Send(ctx, protocol.Error(err.Error()))
		}
		return nil

	case protocol.TypeGameAction:
		return h.dispatchGameAction(ctx, conn, memberID, msg)

	default:
		// Unknown and missing type tags are ignored.
		return nil
	}
}

// dispatchGameAction routes a game_action message into the member's
// current game, translating routing and rule failures into game_error
// frames.
func (h *SessionHandler) dispatchGameAction(ctx context.Context, conn Conn, memberID string, msg protocol.ClientMessage) error {
	roomID, ok := h.registry.RoomIDForMember(memberID)
	if !ok {
		return conn.Send(ctx, protocol.GameError("You are not in a room."))
	}
	room, ok := h.registry.Room(roomID)
	if !ok || room.GameID == "" {
		return conn.Send(ctx, protocol.GameError("No active game."))
	}

	payload := msg.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	e, err := h.games.ApplyAction(room.GameID, memberID, msg.Action, payload)
	if err != nil {
		var ruleErr *engine.RuleError
		if errors.As(err, &ruleErr) {
			return conn.Send(ctx, protocol.GameError(ruleErr.Message))
		}
		// The game vanished between the room lookup and the apply.
		h.logger.Error("applying game action",
			zap.Error(err),
			zap.String("member_id", memberID),
			zap.String("game_id", room.GameID),
		)
		_ = conn.Close(protocol.CloseInternalError, "game action failed")
		return err
	}

	h.registry.BroadcastGameUpdate(roomID, e)
	return nil
}

// messageLabel maps a client-supplied type tag onto a bounded label set.
// Arbitrary client strings must not become metric label values.
func messageLabel(msgType string) string {
	switch msgType {
	case protocol.TypePing, protocol.TypeRename, protocol.TypeCreateRoom,
		protocol.TypeJoinRoom, protocol.TypeLeaveRoom, protocol.TypeStartGame,
		protocol.TypeGameAction:
		return msgType
	default:
		return "unknown"
	}
}
