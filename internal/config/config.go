package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type OTPConfig struct {
	CooldownSeconds int  `yaml:"cooldown_seconds"`
	AutoSubmit      bool `yaml:"auto_submit"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"url"`
}

type SessionConfig struct {
	// Key is the hex encoded 32 byte key sealing stored tokens.
	Key string `yaml:"key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	API      APIConfig      `yaml:"api"`
	OTP      OTPConfig      `yaml:"otp"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8787},
		API:      APIConfig{BaseURL: "http://localhost:8080", Timeout: 15 * time.Second},
		OTP:      OTPConfig{CooldownSeconds: 60},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "recipebox.db"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies RECIPEBOX_* environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("RECIPEBOX_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("RECIPEBOX_DB_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("RECIPEBOX_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("RECIPEBOX_SESSION_KEY"); v != "" {
		c.Session.Key = v
	}
	if v := os.Getenv("RECIPEBOX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RECIPEBOX_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = d.API.Timeout
	}
	if c.OTP.CooldownSeconds <= 0 {
		c.OTP.CooldownSeconds = d.OTP.CooldownSeconds
	}
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.url is required")
	}
	return nil
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
