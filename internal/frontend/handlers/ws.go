package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/frontend/ws"
	"github.com/geodesic-gg/lobby/internal/protocol"
)

// lobbyWS handles GET /api/v1/lobby/ws: upgrade the connection and run the
// session protocol on it. The guest token and optional display name arrive
// as query parameters; the handler blocks for the life of the session.
func (a *API) lobbyWS(c *gin.Context) {
	token := c.Query("token")
	name := c.Query("name")

	conn, err := ws.Accept(c.Writer, c.Request, a.cfg)
	if err != nil {
		a.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	// The session loop closes with the code each exit path calls for; this
	// close is a no-op then, and frees the connection when the loop never
	// reached one.
	defer func() { _ = conn.Close(protocol.CloseNormal, "") }()

	a.sessions.HandleSession(c.Request.Context(), conn, token, name)
}
