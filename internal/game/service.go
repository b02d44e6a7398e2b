// Package game tracks running games and routes actions to their engines.
package game

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/game/engine"
)

// ErrGameNotFound reports an action against a game id with no live engine.
var ErrGameNotFound = errors.New("game not found")

// Service owns the live engines, keyed by game id. All methods are safe
// for concurrent use.
type Service struct {
	mu        sync.Mutex
	games     map[string]*engine.Engine
	gifts     []engine.Gift
	validator engine.ActionValidator
	logger    *zap.Logger
}

// NewService creates a Service with no running games. gifts seeds every new
// game's shared display and may be empty; validator may be nil to allow all
// actions.
//
// Precondition: logger must be non-nil.
func NewService(gifts []engine.Gift, validator engine.ActionValidator, logger *zap.Logger) *Service {
	return &Service{
		games:     make(map[string]*engine.Engine),
		gifts:     gifts,
		validator: validator,
		logger:    logger,
	}
}

// CreateGame starts a new game for the room and returns its engine.
//
// Postcondition: The engine's id resolves via Game until EndGame or DropAll.
func (s *Service) CreateGame(roomID string, seats []engine.Seat) *engine.Engine {
	e := engine.New(roomID, seats, s.gifts, s.validator)

	s.mu.Lock()
	s.games[e.GameID()] = e
	s.mu.Unlock()

	s.logger.Info("game created",
		zap.String("game_id", e.GameID()),
		zap.String("room_id", roomID),
		zap.Int("players", len(seats)),
	)
	return e
}

// ApplyAction applies one player action to the given game. The engine's
// rule errors pass through unwrapped so callers can surface their messages.
//
// Postcondition: Returns the engine on success; ErrGameNotFound when the id
// has no live engine; a *engine.RuleError when the action is rejected.
func (s *Service) ApplyAction(gameID, memberID, action string, payload map[string]any) (*engine.Engine, error) {
	s.mu.Lock()
	e, ok := s.games[gameID]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("applying %q to game %s: %w", action, gameID, ErrGameNotFound)
	}
	if err := e.Apply(memberID, action, payload); err != nil {
		return nil, err
	}
	return e, nil
}

// Game returns the engine for gameID.
//
// Postcondition: Returns (engine, true) if found, or (nil, false) otherwise.
func (s *Service) Game(gameID string) (*engine.Engine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.games[gameID]
	return e, ok
}

// EndGame removes the game. No-op when the id is unknown or empty.
func (s *Service) EndGame(gameID string) {
	if gameID == "" {
		return
	}
	s.mu.Lock()
	_, ok := s.games[gameID]
	delete(s.games, gameID)
	s.mu.Unlock()

	if ok {
		s.logger.Info("game ended", zap.String("game_id", gameID))
	}
}

// Count returns the number of live games.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// DropAll removes every live game. Used on shutdown.
//
// Postcondition: Count() == 0.
func (s *Service) DropAll() {
	s.mu.Lock()
	s.games = make(map[string]*engine.Engine)
	s.mu.Unlock()
}
