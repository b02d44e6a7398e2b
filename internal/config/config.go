// Package config provides Viper-based configuration loading for the lobby service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
	// WriteTimeout bounds each outbound WebSocket frame write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful HTTP shutdown on stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// AllowedOrigins is the set of origin patterns accepted on WebSocket
	// upgrade. "*" accepts any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthConfig holds guest credential settings.
type AuthConfig struct {
	// TokenTTL is the lifetime of an issued guest token.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
	// TokenBytes is the number of random bytes per token before encoding.
	TokenBytes int `mapstructure:"token_bytes"`
}

// LobbyConfig holds membership and room settings.
type LobbyConfig struct {
	// RoomCapacity is the maximum number of members per room.
	RoomCapacity int `mapstructure:"room_capacity"`
	// MinPlayers is the minimum room occupancy required to start a game.
	MinPlayers int `mapstructure:"min_players"`
	// OutboxBuffer is the per-member broadcast queue depth.
	OutboxBuffer int `mapstructure:"outbox_buffer"`
}

// GameConfig holds game content and scripting settings.
type GameConfig struct {
	// ContentDir is the directory of gift catalog YAML files. Empty disables
	// catalog loading.
	ContentDir string `mapstructure:"content_dir"`
	// ScriptsDir is the directory of Lua rule scripts. Empty disables the
	// scripted action hook.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// ScriptInstructionLimit caps Lua opcodes per rule evaluation.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Lobby   LobbyConfig   `mapstructure:"lobby"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAuth(c.Auth); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLobby(c.Lobby); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(s.AllowedOrigins) == 0 {
		errs = append(errs, "server.allowed_origins must list at least one pattern")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	var errs []string
	if a.TokenTTL <= 0 {
		errs = append(errs, fmt.Sprintf("auth.token_ttl must be positive, got %s", a.TokenTTL))
	}
	if a.TokenBytes < 16 {
		errs = append(errs, fmt.Sprintf("auth.token_bytes must be >= 16, got %d", a.TokenBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLobby(l LobbyConfig) error {
	var errs []string
	if l.RoomCapacity < 2 {
		errs = append(errs, fmt.Sprintf("lobby.room_capacity must be >= 2, got %d", l.RoomCapacity))
	}
	if l.MinPlayers < 2 {
		errs = append(errs, fmt.Sprintf("lobby.min_players must be >= 2, got %d", l.MinPlayers))
	}
	if l.MinPlayers > l.RoomCapacity {
		errs = append(errs, "lobby.min_players must not exceed lobby.room_capacity")
	}
	if l.OutboxBuffer < 1 {
		errs = append(errs, fmt.Sprintf("lobby.outbox_buffer must be >= 1, got %d", l.OutboxBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	if g.ScriptInstructionLimit < 0 {
		return fmt.Errorf("game.script_instruction_limit must be >= 0, got %d", g.ScriptInstructionLimit)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with LOBBY_ prefix
	v.SetEnvPrefix("LOBBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration used when no config file is given.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshalling pure defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.token_bytes", 32)

	v.SetDefault("lobby.room_capacity", 4)
	v.SetDefault("lobby.min_players", 2)
	v.SetDefault("lobby.outbox_buffer", 64)

	v.SetDefault("game.content_dir", "")
	v.SetDefault("game.scripts_dir", "")
	v.SetDefault("game.script_instruction_limit", 100000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
