package config

import (
	"errors"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const defaultServerAddress = "127.0.0.1:8400"

const (
	defaultPollIntervalMS   = 2000
	defaultTickIntervalMS   = 16
	defaultMaxEventsPerTick = 256
	defaultRenderThrottleMS = 33
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Logging  LoggingConfig  `toml:"logging"`
	Stream   StreamConfig   `toml:"stream"`
	Timeline TimelineConfig `toml:"timeline"`
}

type ServerConfig struct {
	Address string `toml:"address"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type StreamConfig struct {
	PollIntervalMS   int `toml:"poll_interval_ms"`
	TickIntervalMS   int `toml:"tick_interval_ms"`
	MaxEventsPerTick int `toml:"max_events_per_tick"`
	RenderThrottleMS int `toml:"render_throttle_ms"`
}

type TimelineConfig struct {
	PerToolOutputKiB     int `toml:"per_tool_output_kib"`
	TotalOutputKiB       int `toml:"total_output_kib"`
	OutputPreviewBytes   int `toml:"output_preview_bytes"`
	ThinkingPreviewRunes int `toml:"thinking_preview_runes"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address: defaultServerAddress,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Stream: StreamConfig{
			PollIntervalMS:   defaultPollIntervalMS,
			TickIntervalMS:   defaultTickIntervalMS,
			MaxEventsPerTick: defaultMaxEventsPerTick,
			RenderThrottleMS: defaultRenderThrottleMS,
		},
	}
}

// Load reads config.toml over the defaults. A missing or empty file
// yields the defaults without error.
func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	return loadFromPath(path)
}

func (c Config) ServerAddress() string {
	addr := strings.TrimSpace(c.Server.Address)
	if addr == "" {
		return defaultServerAddress
	}
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return defaultServerAddress
	}
	return addr
}

func (c Config) ServerBaseURL() string {
	return "http://" + c.ServerAddress()
}

func (c Config) LogLevel() string {
	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		return "info"
	}
	return level
}

// ResolveLogPath honors an explicit logging.file, falling back to the
// default location under the data directory.
func (c Config) ResolveLogPath() (string, error) {
	path := strings.TrimSpace(c.Logging.File)
	if path != "" {
		return path, nil
	}
	return LogPath()
}

func (c Config) PollInterval() time.Duration {
	ms := c.Stream.PollIntervalMS
	if ms <= 0 {
		ms = defaultPollIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) TickInterval() time.Duration {
	ms := c.Stream.TickIntervalMS
	if ms <= 0 {
		ms = defaultTickIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) RenderThrottle() time.Duration {
	ms := c.Stream.RenderThrottleMS
	if ms <= 0 {
		ms = defaultRenderThrottleMS
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) MaxEventsPerTick() int {
	if c.Stream.MaxEventsPerTick <= 0 {
		return defaultMaxEventsPerTick
	}
	return c.Stream.MaxEventsPerTick
}

// TimelineOverrides returns the configured byte/rune bounds; zeros mean
// "use the built-in default" and are resolved by the timeline package.
func (c Config) TimelineOverrides() (perToolBytes, totalBytes, previewBytes, thinkingRunes int) {
	return c.Timeline.PerToolOutputKiB << 10,
		c.Timeline.TotalOutputKiB << 10,
		c.Timeline.OutputPreviewBytes,
		c.Timeline.ThinkingPreviewRunes
}

func loadFromPath(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := readTOML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readTOML(path string, out any) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	return toml.Unmarshal(data, out)
}
