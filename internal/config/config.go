package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds client and dev backend configuration values.
type Config struct {
	ServerURL     string        `mapstructure:"server_url" yaml:"server_url"`
	APIURL        string        `mapstructure:"api_url" yaml:"api_url"`
	StatePath     string        `mapstructure:"state_path" yaml:"state_path"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level"`
	NoticeTTL     time.Duration `mapstructure:"notice_ttl" yaml:"notice_ttl"`
	ReactionLimit int           `mapstructure:"reaction_limit" yaml:"reaction_limit"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`

	DevServer DevServer `mapstructure:"devserver" yaml:"devserver"`
}

// DevServer configures the local stand-in backend.
type DevServer struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DBPath            string        `mapstructure:"db_path" yaml:"db_path"`
	UploadDir         string        `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:     "ws://localhost:8000/ws",
		APIURL:        "http://localhost:8000",
		StatePath:     defaultStatePath(),
		LogLevel:      "warn",
		NoticeTTL:     5 * time.Second,
		ReactionLimit: 5,
		DialTimeout:   10 * time.Second,
		HTTPTimeout:   30 * time.Second,
		DevServer: DevServer{
			Addr:              ":8000",
			DBPath:            ":memory:",
			UploadDir:         filepath.Join(os.TempDir(), "shadowchat-uploads"),
			MaxUploadBytes:    10 << 20,
			HistoryLimit:      200,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.StatePath != "" {
		c.StatePath = other.StatePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.NoticeTTL != 0 {
		c.NoticeTTL = other.NoticeTTL
	}
	if other.ReactionLimit != 0 {
		c.ReactionLimit = other.ReactionLimit
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.HTTPTimeout != 0 {
		c.HTTPTimeout = other.HTTPTimeout
	}
	if other.DevServer.Addr != "" {
		c.DevServer.Addr = other.DevServer.Addr
	}
	if other.DevServer.DBPath != "" {
		c.DevServer.DBPath = other.DevServer.DBPath
	}
	if other.DevServer.UploadDir != "" {
		c.DevServer.UploadDir = other.DevServer.UploadDir
	}
}

// normalize replaces values that would break the client with defaults.
func (c *Config) normalize() {
	def := Default()
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = def.NoticeTTL
	}
	if c.ReactionLimit <= 0 {
		c.ReactionLimit = def.ReactionLimit
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.DevServer.MaxUploadBytes <= 0 {
		c.DevServer.MaxUploadBytes = def.DevServer.MaxUploadBytes
	}
	if c.DevServer.HistoryLimit < 0 {
		c.DevServer.HistoryLimit = 0
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "shadow-state.db"
	}
	return filepath.Join(dir, "shadowchat", "state.db")
}
