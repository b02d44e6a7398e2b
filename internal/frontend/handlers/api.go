package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/config"
	"github.com/geodesic-gg/lobby/internal/lobby"
	"github.com/geodesic-gg/lobby/internal/observability"
	"github.com/geodesic-gg/lobby/internal/protocol"
)

// API holds the lobby's REST and WebSocket endpoints.
type API struct {
	cfg      config.ServerConfig
	tokens   TokenManager
	registry Registry
	sessions *SessionHandler
	logger   *zap.Logger
}

// NewAPI creates the endpoint set over the given collaborators.
//
// Precondition: tokens, registry, sessions, and logger must be non-nil.
func NewAPI(cfg config.ServerConfig, tokens TokenManager, registry Registry, sessions *SessionHandler, logger *zap.Logger) *API {
	return &API{
		cfg:      cfg,
		tokens:   tokens,
		registry: registry,
		sessions: sessions,
		logger:   logger,
	}
}

// createGuestToken handles POST /api/v1/auth/guest: mint a fresh guest
// credential and echo back the sanitized display name the lobby will use.
// The body is optional; an absent or empty name yields a generated one.
func (a *API) createGuestToken(c *gin.Context) {
	var req protocol.GuestAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, err := a.tokens.Issue()
	if err != nil {
		a.logger.Error("issuing guest token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	observability.RecordTokenIssued()

	c.JSON(http.StatusOK, protocol.GuestAuthResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		Name:      lobby.SanitizeGuestName(req.Name),
	})
}

// lobbyState handles GET /api/v1/lobby: the current members and rooms.
func (a *API) lobbyState(c *gin.Context) {
	c.JSON(http.StatusOK, a.registry.Snapshot())
}

// health handles GET /healthz.
func (a *API) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
