package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sender delivers one structured frame to a member's connection.
// Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, v any) error
}

// Member is one connected lobby participant. Mutable fields are guarded by
// the Manager's lock; the outbox carries its own.
type Member struct {
	// ID is the generated participant identity bound to the claimed token.
	ID string
	// Name is the sanitized display name.
	Name string
	// RoomID is the occupied room, empty while roaming the lobby.
	RoomID string
	// JoinedAt orders members in snapshots.
	JoinedAt time.Time

	sender Sender
	outbox *Outbox
}

// pump drains the outbox to the member's connection until the outbox
// closes. A failed send does not stop the pump; the member's session loop
// notices the broken connection on its next receive.
func (m *Member) pump(logger *zap.Logger) {
	for frame := range m.outbox.Frames() {
		if err := m.sender.Send(context.Background(), frame); err != nil {
			logger.Debug("send to member failed",
				zap.String("member_id", m.ID),
				zap.Error(err),
			)
		}
	}
}
