package server

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/auth"
	"github.com/geodesic-gg/lobby/internal/config"
	"github.com/geodesic-gg/lobby/internal/frontend/handlers"
	"github.com/geodesic-gg/lobby/internal/game"
	"github.com/geodesic-gg/lobby/internal/game/content"
	"github.com/geodesic-gg/lobby/internal/game/engine"
	"github.com/geodesic-gg/lobby/internal/game/rules"
	"github.com/geodesic-gg/lobby/internal/lobby"
	"github.com/geodesic-gg/lobby/internal/observability"
)

// pruneInterval is how often the token janitor sweeps expired guest tokens.
const pruneInterval = time.Minute

// App owns every component of the lobby service and the lifecycle that
// runs them.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	tokens    *auth.Manager
	registry  *lobby.Manager
	games     *game.Service
	rulebook  *rules.Manager
	httpSvc   *HTTPService
	lifecycle *Lifecycle
}

// NewApp wires the lobby service from configuration: token manager, gift
// catalog, rule scripts, game service, lobby registry, HTTP API, and the
// background token janitor.
//
// Precondition: cfg must have passed Validate; logger must be non-nil.
// Postcondition: Returns an App ready to Run, or an error if content or
// rule loading failed.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics := prometheus.NewRegistry()
	observability.RegisterMetrics(metrics)

	tokens := auth.NewManager(cfg.Auth.TokenTTL, cfg.Auth.TokenBytes)

	var gifts []engine.Gift
	if cfg.Game.ContentDir != "" {
		loaded, err := content.LoadGifts(cfg.Game.ContentDir)
		if err != nil {
			return nil, fmt.Errorf("loading gift catalog: %w", err)
		}
		gifts = loaded
		logger.Info("gift catalog loaded",
			zap.String("dir", cfg.Game.ContentDir),
			zap.Int("gifts", len(gifts)),
		)
	}

	rulebook := rules.NewManager(logger)
	var validator engine.ActionValidator
	if cfg.Game.ScriptsDir != "" {
		if err := rulebook.Load(cfg.Game.ScriptsDir, cfg.Game.ScriptInstructionLimit); err != nil {
			return nil, fmt.Errorf("loading rule scripts: %w", err)
		}
		validator = rulebook
		logger.Info("rule scripts loaded", zap.String("dir", cfg.Game.ScriptsDir))
	}

	games := game.NewService(gifts, validator, logger)
	registry := lobby.NewManager(cfg.Lobby, games, logger)
	sessions := handlers.NewSessionHandler(tokens, registry, games, logger)
	api := handlers.NewAPI(cfg.Server, tokens, registry, sessions, logger)
	router := handlers.NewRouter(api, metrics, logger)
	httpSvc := NewHTTPService(cfg.Server, router, registry, logger)

	app := &App{
		cfg:       cfg,
		logger:    logger,
		tokens:    tokens,
		registry:  registry,
		games:     games,
		rulebook:  rulebook,
		httpSvc:   httpSvc,
		lifecycle: NewLifecycle(logger),
	}

	// The HTTP service is registered last so it is the first stopped:
	// sessions must drain before anything behind them goes away.
	app.lifecycle.Add("token-janitor", app.newJanitor())
	app.lifecycle.Add("http", httpSvc)
	return app, nil
}

// Run starts the application and blocks until a termination signal, context
// cancellation, or a service failure, then shuts everything down.
//
// Postcondition: All sessions, games, and tokens are gone when Run returns.
func (a *App) Run(ctx context.Context) error {
	err := a.lifecycle.Run(ctx)

	// Session cleanup already emptied these during HTTP shutdown; dropping
	// again covers sessions that missed the drain deadline.
	a.registry.DropAll()
	a.games.DropAll()
	a.tokens.DropAll()
	a.rulebook.Close()
	return err
}

// Addr returns the HTTP listener's bound address, empty before startup.
func (a *App) Addr() string {
	return a.httpSvc.Addr()
}

// newJanitor returns the background service that sweeps expired guest
// tokens. Claim drops expired tokens it touches; the sweep catches tokens
// that were issued and never claimed at all.
func (a *App) newJanitor() Service {
	done := make(chan struct{})
	return &FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ticker.C:
					if removed := a.tokens.PruneExpired(); removed > 0 {
						a.logger.Debug("pruned expired tokens", zap.Int("removed", removed))
					}
				}
			}
		},
		StopFn: func() { close(done) },
	}
}
