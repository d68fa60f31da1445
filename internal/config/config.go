package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const FileName = "brokerdesk.yml"

// Config models brokerdesk.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Mail     MailConfig     `yaml:"mail"`
	Log      LogConfig      `yaml:"log"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  string `yaml:"token_ttl"`
	InviteTTL string `yaml:"invite_ttl"`
}

type DatabaseConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Workspace string `yaml:"workspace"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	URLTTL    string `yaml:"url_ttl"`
}

type MailConfig struct {
	Driver    string `yaml:"driver"`
	From      string `yaml:"from"`
	SMTPAddr  string `yaml:"smtp_addr"`
	AcceptURL string `yaml:"accept_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with brokerdesk init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err != nil {
		if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if _, err := c.TokenTTL(); err != nil {
		return fmt.Errorf("config.auth.token_ttl: %w", err)
	}
	if _, err := c.InviteTTL(); err != nil {
		return fmt.Errorf("config.auth.invite_ttl: %w", err)
	}
	switch c.Database.Driver {
	case "sqlite":
	case "pgx", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("config.database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("config.database.driver must be one of sqlite, pgx, postgres")
	}
	switch c.Storage.Driver {
	case "memory":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config.storage.bucket is required for s3")
		}
	default:
		return fmt.Errorf("config.storage.driver must be memory or s3")
	}
	if _, err := c.URLTTL(); err != nil {
		return fmt.Errorf("config.storage.url_ttl: %w", err)
	}
	switch c.Mail.Driver {
	case "log":
	case "smtp":
		if c.Mail.SMTPAddr == "" {
			return fmt.Errorf("config.mail.smtp_addr is required for smtp")
		}
	default:
		return fmt.Errorf("config.mail.driver must be log or smtp")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("config.log.format must be text or json")
	}
	return nil
}

func (c *Config) TokenTTL() (time.Duration, error)  { return parseTTL(c.Auth.TokenTTL, 12*time.Hour) }
func (c *Config) InviteTTL() (time.Duration, error) { return parseTTL(c.Auth.InviteTTL, 7*24*time.Hour) }
func (c *Config) URLTTL() (time.Duration, error)    { return parseTTL(c.Storage.URLTTL, 15*time.Minute) }

func parseTTL(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their defaults.
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  # Prefer BROKERDESK_JWT_SECRET over committing a secret here.
  jwt_secret: ""
  token_ttl: 12h
  invite_ttl: 168h

database:
  driver: sqlite
  dsn: ""
  workspace: .

storage:
  driver: memory
  bucket: ""
  region: us-east-1
  endpoint: ""
  path_style: false
  url_ttl: 15m

mail:
  driver: log
  from: no-reply@brokerdesk.local
  smtp_addr: ""
  accept_url: http://localhost:5173/invitations/accept

log:
  level: info
  format: text
`
