package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source modes.
const (
	SourceDevice    = "device"
	SourceSimulated = "simulated"
	SourceClient    = "client"
	SourceHybrid    = "hybrid"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Source    SourceConfig    `yaml:"source"`
	Client    ClientConfig    `yaml:"client"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"` // 0 = unlimited
}

type BroadcastConfig struct {
	Interval     time.Duration `yaml:"interval"`
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"` // 0 disables keepalive pings
}

// SourceConfig selects the pitch source. Device mode plays WAVPath when set
// and otherwise opens the default microphone.
type SourceConfig struct {
	Mode       string `yaml:"mode"`
	WAVPath    string `yaml:"wav_path"`
	Loop       bool   `yaml:"loop"`
	BlockSize  int    `yaml:"block_size"`
	SampleRate int    `yaml:"sample_rate"` // microphone only
	Seed       int64  `yaml:"seed"`        // 0 seeds the simulator from the clock
}

// ClientConfig limits inbound WebSocket messages per connection.
type ClientConfig struct {
	MessageRate  float64 `yaml:"message_rate"` // messages/second, 0 = unlimited
	MessageBurst int     `yaml:"message_burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8000,
			Host: "0.0.0.0",
		},
		Broadcast: BroadcastConfig{
			Interval:     50 * time.Millisecond,
			SendBuffer:   64,
			WriteTimeout: 5 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Source: SourceConfig{
			Mode:       SourceHybrid,
			Loop:       true,
			BlockSize:  4096,
			SampleRate: 44100,
		},
		Client: ClientConfig{
			MessageRate:  50,
			MessageBurst: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. The file must exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overrides the port from $PORT, the convention of most hosting
// platforms. An unparsable value is an error rather than silently ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q: %v", ErrInvalid, v, err)
		}
		c.Server.Port = port
	}
	return nil
}

// DotEnv returns a getenv that falls back to the KEY=value pairs in path
// when the process environment does not set a key. A missing file is not an
// error.
func DotEnv(path string) (func(string) string, error) {
	vars, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return os.Getenv, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return vars[key]
	}, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, fmt.Errorf("server.max_connections must not be negative"))
	}
	if c.Broadcast.Interval <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.interval must be positive"))
	}
	if c.Broadcast.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.send_buffer must be positive"))
	}
	if c.Broadcast.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("broadcast.write_timeout must be positive"))
	}
	if c.Broadcast.PingInterval < 0 {
		errs = append(errs, fmt.Errorf("broadcast.ping_interval must not be negative"))
	}
	switch c.Source.Mode {
	case SourceDevice, SourceSimulated, SourceClient, SourceHybrid:
	default:
		errs = append(errs, fmt.Errorf("source.mode %q is not one of device, simulated, client, hybrid", c.Source.Mode))
	}
	if c.Source.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("source.block_size must be positive"))
	}
	if c.Source.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("source.sample_rate must be positive"))
	}
	if c.Client.MessageRate < 0 || c.Client.MessageBurst < 0 {
		errs = append(errs, fmt.Errorf("client rate limits must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Diff returns human-readable descriptions of fields that differ between
// old and new. Used to log the effective overrides at startup.
func Diff(old, new *Config) []string {
	var changes []string
	add := func(field string, a, b any) {
		if fmt.Sprint(a) != fmt.Sprint(b) {
			changes = append(changes, fmt.Sprintf("%s: %v -> %v", field, a, b))
		}
	}
	add("server.host", old.Server.Host, new.Server.Host)
	add("server.port", old.Server.Port, new.Server.Port)
	add("server.allowed_origins", old.Server.AllowedOrigins, new.Server.AllowedOrigins)
	add("server.max_connections", old.Server.MaxConnections, new.Server.MaxConnections)
	add("broadcast.interval", old.Broadcast.Interval, new.Broadcast.Interval)
	add("broadcast.send_buffer", old.Broadcast.SendBuffer, new.Broadcast.SendBuffer)
	add("broadcast.write_timeout", old.Broadcast.WriteTimeout, new.Broadcast.WriteTimeout)
	add("broadcast.ping_interval", old.Broadcast.PingInterval, new.Broadcast.PingInterval)
	add("source.mode", old.Source.Mode, new.Source.Mode)
	add("source.wav_path", old.Source.WAVPath, new.Source.WAVPath)
	add("source.loop", old.Source.Loop, new.Source.Loop)
	add("source.block_size", old.Source.BlockSize, new.Source.BlockSize)
	add("source.sample_rate", old.Source.SampleRate, new.Source.SampleRate)
	add("source.seed", old.Source.Seed, new.Source.Seed)
	add("client.message_rate", old.Client.MessageRate, new.Client.MessageRate)
	add("client.message_burst", old.Client.MessageBurst, new.Client.MessageBurst)
	add("logging.level", old.Logging.Level, new.Logging.Level)
	add("logging.format", old.Logging.Format, new.Logging.Format)
	return changes
}

// Defaults returns a fresh copy of the built-in configuration.
func Defaults() *Config {
	return defaultConfig()
}
