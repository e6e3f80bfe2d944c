// Package config provides TOML and YAML configuration for the hello demo.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Fetch   FetchConfig   `toml:"fetch" yaml:"fetch"`
	Toast   ToastConfig   `toml:"toast" yaml:"toast"`
	Refresh RefreshConfig `toml:"refresh" yaml:"refresh"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

type FetchConfig struct {
	// Text returned by the simulated fetch.
	Text  string   `toml:"text" yaml:"text"`
	Delay Duration `toml:"delay" yaml:"delay"`
}

type ToastConfig struct {
	Message string `toml:"message" yaml:"message"`
	// How long a toast stays on screen.
	Duration Duration `toml:"duration" yaml:"duration"`
}

type RefreshConfig struct {
	SkipWhileLoading bool `toml:"skip_while_loading" yaml:"skip_while_loading"`
}

type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Text:  "Hello World",
			Delay: Duration{1500 * time.Millisecond},
		},
		Toast: ToastConfig{
			Message:  "download complete",
			Duration: Duration{2 * time.Second},
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads path when it is set, otherwise starts from the defaults.
// Env overrides apply either way.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	return finish(DefaultConfig())
}

// LoadFromFile reads configuration from path, picking the format from its extension.
// A missing file yields the defaults.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(DefaultConfig())
		}
		return nil, err
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes configuration over the defaults, then applies env overrides.
func LoadFromReader(r io.Reader, format Format) (*Config, error) {
	cfg := DefaultConfig()

	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(cfg); err != nil && err != io.EOF {
			return nil, err
		}
	default:
		if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
			return nil, err
		}
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Fetch.Delay.Duration <= 0 {
		return fmt.Errorf("fetch.delay must be positive, got %s", c.Fetch.Delay)
	}
	if c.Toast.Duration.Duration <= 0 {
		return fmt.Errorf("toast.duration must be positive, got %s", c.Toast.Duration)
	}
	return nil
}

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// ApplyEnv overrides cfg with HELLO_TEXT, HELLO_DELAY and HELLO_LOG_LEVEL when set.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("HELLO_TEXT"); v != "" {
		cfg.Fetch.Text = v
	}
	if v := os.Getenv("HELLO_DELAY"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("HELLO_DELAY: %w", err)
		}
		cfg.Fetch.Delay = d
	}
	if v := os.Getenv("HELLO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("500ms", "2s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a string", node.Line)
	}
	return d.UnmarshalText([]byte(node.Value))
}

func parseDuration(s string) (Duration, error) {
	if s == "" {
		return Duration{}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return Duration{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return Duration{}, fmt.Errorf("duration %q must not be negative", s)
	}
	return Duration{d}, nil
}
