package config

import "time"

// ClientConfig configures cmd/client.
type ClientConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	Name             string        `mapstructure:"name"`
	Transport        string        `mapstructure:"transport"` // "tcp" or "ws"
	WSPath           string        `mapstructure:"wsPath"`
	DialTimeout      time.Duration `mapstructure:"dialTimeout"`
	SubscriberBuffer int           `mapstructure:"subscriberBuffer"`
	LogLevel         string        `mapstructure:"logLevel"`
}

// Point is an arena coordinate in config files.
type Point struct {
	X int `mapstructure:"x"`
	Y int `mapstructure:"y"`
}

// WallSpec is one axis-aligned wall segment.
type WallSpec struct {
	P1 Point `mapstructure:"p1"`
	P2 Point `mapstructure:"p2"`
}

// ArenaConfig holds the rules of the development arena.
type ArenaConfig struct {
	Size         int        `mapstructure:"size"`     // side length in cells, centered on the origin
	TickRate     int        `mapstructure:"tickRate"` // ticks per second
	StartLength  int        `mapstructure:"startLength"`
	GrowBy       int        `mapstructure:"growBy"`
	PowerUps     int        `mapstructure:"powerUps"` // kept on the field at all times
	WallWidth    int        `mapstructure:"wallWidth"`
	RespawnTicks int        `mapstructure:"respawnTicks"`
	Walls        []WallSpec `mapstructure:"walls"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	ListenAddr string      `mapstructure:"listenAddr"`
	WSAddr     string      `mapstructure:"wsAddr"` // empty disables the WebSocket listener
	LogLevel   string      `mapstructure:"logLevel"`
	Arena      ArenaConfig `mapstructure:"arena"`
}
