package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TERMSNAKE"

// LoadEnv loads KEY=value pairs from the given files (".env" by default)
// into the process environment. Missing files are not an error.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func newViper(name, configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	// default config path
	v.AddConfigPath(".")
	v.AddConfigPath("config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// readConfig reads the config file if there is one. Without a file the
// defaults and environment apply.
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// LoadClientConfig reads termsnake.yaml from configPath, "." or "config".
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	v := newViper("termsnake", configPath)
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 11000)
	v.SetDefault("name", "player")
	v.SetDefault("transport", "tcp")
	v.SetDefault("wsPath", "/ws")
	v.SetDefault("dialTimeout", 5*time.Second)
	v.SetDefault("subscriberBuffer", 16)
	v.SetDefault("logLevel", "info")

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config ClientConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateClientConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadServerConfig reads arena.yaml from configPath, "." or "config".
func LoadServerConfig(configPath string) (*ServerConfig, error) {
	v := newViper("arena", configPath)
	v.SetDefault("listenAddr", ":11000")
	v.SetDefault("wsAddr", "")
	v.SetDefault("logLevel", "info")
	v.SetDefault("arena.size", 60)
	v.SetDefault("arena.tickRate", 10)
	v.SetDefault("arena.startLength", 4)
	v.SetDefault("arena.growBy", 3)
	v.SetDefault("arena.powerUps", 5)
	v.SetDefault("arena.wallWidth", 1)
	v.SetDefault("arena.respawnTicks", 30)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateServerConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidateClientConfig checks a client config. Call it again after
// applying overrides that did not come through the loader.
func ValidateClientConfig(config *ClientConfig) error {
	if config.Host == "" {
		return fmt.Errorf("no host configured")
	}

	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port %d out of range", config.Port)
	}

	if config.Name == "" || strings.ContainsAny(config.Name, "\r\n") {
		return fmt.Errorf("player name must be a single non-empty line")
	}

	if config.Transport != "tcp" && config.Transport != "ws" {
		return fmt.Errorf("unknown transport '%s'", config.Transport)
	}

	if config.SubscriberBuffer < 1 {
		config.SubscriberBuffer = 1
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.ListenAddr == "" {
		return fmt.Errorf("no listen address configured")
	}

	if err := ValidateArena(&config.Arena); err != nil {
		return fmt.Errorf("invalid arena: %w", err)
	}

	return nil
}

// ValidateArena checks arena rules and wall placement.
func ValidateArena(arena *ArenaConfig) error {
	if arena.Size < 10 {
		return fmt.Errorf("size %d is too small", arena.Size)
	}

	if arena.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive")
	}

	if arena.StartLength < 1 || arena.StartLength > arena.Size/2 {
		return fmt.Errorf("start length %d out of range", arena.StartLength)
	}

	if arena.GrowBy < 0 || arena.PowerUps < 0 || arena.RespawnTicks < 0 {
		return fmt.Errorf("growBy, powerUps and respawnTicks must not be negative")
	}

	if arena.WallWidth == 0 {
		arena.WallWidth = 1 // default width if not specified
	}

	half := arena.Size / 2
	for i, w := range arena.Walls {
		if w.P1.X != w.P2.X && w.P1.Y != w.P2.Y {
			return fmt.Errorf("wall %d is not axis-aligned", i+1)
		}
		for _, p := range []Point{w.P1, w.P2} {
			if p.X < -half || p.X > half || p.Y < -half || p.Y > half {
				return fmt.Errorf("wall %d leaves the arena", i+1)
			}
		}
	}

	return nil
}

// LogLevel parses debug, info, warn or error. Unknown names fall back to
// info.
func LogLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
