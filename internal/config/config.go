// Package config provides YAML-based configuration loading for Testdeck.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// DefaultMaxUploadBytes caps a single attachment upload (2 MiB).
const DefaultMaxUploadBytes = 2 << 20

// Config is the top-level Testdeck configuration, loaded from testdeck.yaml.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Database    DatabaseConfig   `yaml:"database"`
	Attachments AttachmentConfig `yaml:"attachments"`
	Jira        JiraConfig       `yaml:"jira"`
	Notify      NotifyConfig     `yaml:"notify"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Debug    bool   `yaml:"debug"`
}

// AttachmentConfig configures the on-disk attachment store and its janitor.
type AttachmentConfig struct {
	Dir        string        `yaml:"dir"`
	MaxBytes   int64         `yaml:"max_bytes"`
	GCSchedule string        `yaml:"gc_schedule"`
	GCGrace    time.Duration `yaml:"gc_grace"`
}

// JiraConfig seeds the Jira settings row on first start.
type JiraConfig struct {
	BaseURL string `yaml:"base_url"`
}

// NotifyConfig enables chat notifications when a test run finishes.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
}

// ChatConfig holds a bot token and the channel to post into.
type ChatConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Enabled reports whether both token and channel are set.
func (c ChatConfig) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/api"
	}
	c.Server.BasePath = "/" + strings.Trim(c.Server.BasePath, "/")

	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			c.Database.Path = "testdeck.db"
		}
	case DriverMySQL:
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "testdeck"
		}
	}

	if c.Attachments.Dir == "" {
		c.Attachments.Dir = "uploads"
	}
	if c.Attachments.MaxBytes == 0 {
		c.Attachments.MaxBytes = DefaultMaxUploadBytes
	}
	if c.Attachments.GCSchedule == "" {
		c.Attachments.GCSchedule = "0 3 * * *"
	}
	if c.Attachments.GCGrace == 0 {
		c.Attachments.GCGrace = 24 * time.Hour
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverMySQL:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (want sqlite or mysql)", c.Database.Driver))
	}
	if c.Attachments.MaxBytes < 0 {
		errs = append(errs, "attachments.max_bytes must be positive")
	}
	if c.Attachments.GCGrace < 0 {
		errs = append(errs, "attachments.gc_grace must be positive")
	}
	if c.Attachments.GCSchedule != "off" {
		if _, err := cron.ParseStandard(c.Attachments.GCSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("attachments.gc_schedule: %v", err))
		}
	}
	if c.Notify.Slack.Token == "" != (c.Notify.Slack.Channel == "") {
		errs = append(errs, "notify.slack needs both token and channel")
	}
	if c.Notify.Discord.Token == "" != (c.Notify.Discord.Channel == "") {
		errs = append(errs, "notify.discord needs both token and channel")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
