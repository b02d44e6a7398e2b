package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/geodesic-gg/lobby/internal/game/engine"
)

// validateHook is the Lua global a ruleset defines to judge actions:
//
//	function validate_action(player_id, action, payload)
//	    return ok, reason
//	end
//
// Returning a falsy ok rejects the action with the given reason.
const validateHook = "validate_action"

// Manager owns one sandboxed Lua VM holding the loaded ruleset. An empty
// Manager (nothing loaded) allows every action, preserving the engine's
// no-op rule semantics.
//
// The VM is single-threaded; a mutex serializes hook calls.
type Manager struct {
	mu     sync.Mutex
	state  *lua.LState
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager with no scripts loaded.
//
// Precondition: logger must be non-nil.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		limit:  DefaultInstructionLimit,
		logger: logger,
	}
}

// Load creates the sandboxed VM and executes every *.lua file in scriptDir
// in lexicographic order. Each file runs under its own opcode budget.
// Loading replaces any previously loaded ruleset.
//
// Precondition: scriptDir must be a readable directory; instLimit <= 0 uses
// DefaultInstructionLimit.
// Postcondition: The ruleset is active, or an error is returned and the
// previous ruleset (if any) stays in place.
func (m *Manager) Load(scriptDir string, instLimit int) error {
	limit := instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}

	L := newSandboxedState()

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		L.Close()
		return fmt.Errorf("rules: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		ctx, cancel := newCountingContext(limit)
		L.SetContext(ctx)
		err := L.DoFile(path)
		cancel()
		if err != nil {
			L.Close()
			return fmt.Errorf("rules: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.state != nil {
		m.state.Close()
	}
	m.state = L
	m.limit = limit
	m.mu.Unlock()
	return nil
}

// ValidateAction calls the validate_action hook for the acting player.
// Allows when no ruleset is loaded, the hook is undefined, or the hook
// fails at runtime (failures are logged, never propagated). A falsy ok
// return rejects with the hook's reason as a *engine.RuleError.
//
// Postcondition: Returns nil or a *engine.RuleError.
func (m *Manager) ValidateAction(playerID, action string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil
	}
	fn := m.state.GetGlobal(validateHook)
	if fn == lua.LNil {
		return nil
	}

	// Fresh opcode budget per evaluation.
	ctx, cancel := newCountingContext(m.limit)
	m.state.SetContext(ctx)
	defer cancel()

	if err := m.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, lua.LString(playerID), lua.LString(action), toLua(m.state, payload)); err != nil {
		m.logger.Warn("rules: Lua runtime error",
			zap.String("hook", validateHook),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil
	}

	reason := m.state.Get(-1)
	ok := m.state.Get(-2)
	m.state.Pop(2)

	if lua.LVAsBool(ok) {
		return nil
	}
	message := "Action not allowed."
	if s, isStr := reason.(lua.LString); isStr && string(s) != "" {
		message = string(s)
	}
	return engine.NewRuleError(message)
}

// Close releases the Lua VM. Safe to call on an empty Manager.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}
