package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"taskdeck/internal/domain"
	"taskdeck/internal/query"
)

// Config models taskdeck.yml (or taskdeck.toml).
type Config struct {
	API struct {
		BaseURL string   `yaml:"base_url" toml:"base_url"`
		Token   string   `yaml:"token" toml:"token"`
		Timeout Duration `yaml:"timeout" toml:"timeout"`
	} `yaml:"api" toml:"api"`
	View struct {
		Filter string `yaml:"filter" toml:"filter"`
		Sort   string `yaml:"sort" toml:"sort"`
		Mode   string `yaml:"mode" toml:"mode"`
	} `yaml:"view" toml:"view"`
	Server struct {
		Addr      string `yaml:"addr" toml:"addr"`
		BasePath  string `yaml:"base_path" toml:"base_path"`
		JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	} `yaml:"server" toml:"server"`
	Watch struct {
		Interval Duration `yaml:"interval" toml:"interval"`
	} `yaml:"watch" toml:"watch"`
	Log struct {
		Level  string `yaml:"level" toml:"level"`
		Format string `yaml:"format" toml:"format"`
	} `yaml:"log" toml:"log"`
}

// Duration decodes "30s"-style strings from YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.API.BaseURL = "http://localhost:3000"
	cfg.API.Timeout = Duration{10 * time.Second}
	cfg.View.Filter = string(domain.FilterAll)
	cfg.View.Mode = string(domain.ModeLight)
	cfg.Server.Addr = "127.0.0.1:3000"
	cfg.Server.BasePath = "/"
	cfg.Watch.Interval = Duration{time.Minute}
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	if c.API.Timeout.Duration < 0 {
		return fmt.Errorf("config.api.timeout must not be negative")
	}
	if _, err := query.ParseFilter(c.View.Filter); err != nil {
		return fmt.Errorf("config.view.filter: %w", err)
	}
	if _, err := query.ParseSort(c.View.Sort); err != nil {
		return fmt.Errorf("config.view.sort: %w", err)
	}
	switch domain.Mode(c.View.Mode) {
	case "", domain.ModeLight, domain.ModeDark:
	default:
		return fmt.Errorf("config.view.mode must be light or dark")
	}
	if c.Watch.Interval.Duration < 0 {
		return fmt.Errorf("config.watch.interval must not be negative")
	}
	return nil
}

// Path returns the default YAML config path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdeck.yml")
}

// Discover returns the first existing config file in workspace, preferring YAML over TOML.
// It returns "" when neither exists.
func Discover(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	for _, name := range []string{"taskdeck.yml", "taskdeck.yaml", "taskdeck.toml"} {
		p := filepath.Join(workspace, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadOptional returns the defaults when no config file exists in workspace.
func LoadOptional(workspace string) (*Config, error) {
	p := Discover(workspace)
	if p == "" {
		return Default(), nil
	}
	return FromFile(p)
}

// FromFile reads a config file, choosing the decoder by extension.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FromTOML(data)
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromTOML parses and validates config from raw TOML bytes.
func FromTOML(data []byte) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("invalid config toml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenerateDefault returns a commented YAML template.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `api:
  base_url: http://localhost:3000
  # token: <bearer token from 'taskdeck token'>
  timeout: 10s

view:
  filter: all        # all | completed | pending | overdue
  sort: ""           # dueAsc | dueDesc | createdAsc | createdDesc
  mode: light        # light | dark

server:
  addr: 127.0.0.1:3000
  base_path: /
  # jwt_secret: change-me

watch:
  interval: 1m

log:
  level: info
  format: text
`
