package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `json:"driver" yaml:"driver"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Name     string `json:"database" yaml:"database"`

	// AllowOverride permits callers to send their own connection object.
	AllowOverride     bool `json:"allow_override" yaml:"allow_override"`
	ProbeOnInitialize bool `json:"probe_on_initialize" yaml:"probe_on_initialize"`

	ConnectTimeoutSeconds int `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`

	// SSLMode is passed to postgres only.
	SSLMode string `json:"sslmode" yaml:"sslmode"`
}

func (d DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeoutSeconds) * time.Second
}

func (d DatabaseConfig) ReadTimeout() time.Duration {
	return time.Duration(d.ReadTimeoutSeconds) * time.Second
}

type LoggingConfig struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"`
	OutputFile string `json:"output_file" yaml:"output_file"`
	MaxSizeMB  int64  `json:"max_size_mb" yaml:"max_size_mb"`
	Console    bool   `json:"console" yaml:"console"`
}

type ServerConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Port    int    `json:"port" yaml:"port"`
}

// Config is the ambient configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Server   ServerConfig   `json:"server" yaml:"server"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:                "mysql",
			Host:                  "localhost",
			Port:                  3306,
			User:                  "root",
			AllowOverride:         true,
			ProbeOnInitialize:     true,
			ConnectTimeoutSeconds: 10,
			SSLMode:               "disable",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "text",
			MaxSizeMB: 10,
			Console:   true,
		},
		Server: ServerConfig{
			Name:    "mysql-mcp-server",
			Version: "1.0.0",
			Port:    8000,
		},
	}
}

// Load builds the configuration from defaults, an optional config file and
// the environment, in that order. An empty path searches the default
// locations and silently skips missing files.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadConfigFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		for _, p := range getConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				if err := loadConfigFromFile(p, cfg); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite3":
	default:
		return fmt.Errorf("database driver must be 'mysql', 'postgres' or 'sqlite3', got %q", c.Database.Driver)
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port out of range: %d", c.Database.Port)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Database.ConnectTimeoutSeconds < 0 || c.Database.ReadTimeoutSeconds < 0 {
		return fmt.Errorf("database timeouts cannot be negative")
	}
	return nil
}

func getConfigPaths() []string {
	var paths []string

	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			paths = append(paths,
				filepath.Join(appData, "mysql-mcp", "config.json"),
				filepath.Join(appData, "mysql-mcp", "config.yaml"))
		}
	default:
		homeDir := os.Getenv("HOME")
		if homeDir != "" {
			paths = append(paths,
				filepath.Join(homeDir, ".config", "mysql-mcp", "config.json"),
				filepath.Join(homeDir, ".config", "mysql-mcp", "config.yaml"))
		}
	}

	if pwd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(pwd, "config.json"),
			filepath.Join(pwd, "config.yaml"))
	}

	return paths
}

func loadConfigFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Database.Host, "MYSQL_HOST")
	setString(&cfg.Database.User, "MYSQL_USER")
	setString(&cfg.Database.Password, "MYSQL_PASSWORD")
	setString(&cfg.Database.Name, "MYSQL_DATABASE")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.OutputFile, "LOG_FILE")

	ints := []struct {
		key string
		dst *int
	}{
		{"MYSQL_PORT", &cfg.Database.Port},
		{"DB_CONNECT_TIMEOUT", &cfg.Database.ConnectTimeoutSeconds},
		{"DB_READ_TIMEOUT", &cfg.Database.ReadTimeoutSeconds},
		{"PORT", &cfg.Server.Port},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}

	if err := setBool(&cfg.Database.AllowOverride, "DB_ALLOW_OVERRIDE"); err != nil {
		return err
	}
	return setBool(&cfg.Database.ProbeOnInitialize, "DB_PROBE_ON_INITIALIZE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = i
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
