package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envConfigDefaultPath = "SHADOW_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "shadow.yaml"
	envFileName          = ".env"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars (.env first) < caller overrides.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	loadDotEnv(logger, envFileName)

	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("state_path", cfg.StatePath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("notice_ttl", cfg.NoticeTTL)
	v.SetDefault("reaction_limit", cfg.ReactionLimit)
	v.SetDefault("dial_timeout", cfg.DialTimeout)
	v.SetDefault("http_timeout", cfg.HTTPTimeout)
	v.SetDefault("devserver.addr", cfg.DevServer.Addr)
	v.SetDefault("devserver.db_path", cfg.DevServer.DBPath)
	v.SetDefault("devserver.upload_dir", cfg.DevServer.UploadDir)
	v.SetDefault("devserver.max_upload_bytes", cfg.DevServer.MaxUploadBytes)
	v.SetDefault("devserver.history_limit", cfg.DevServer.HistoryLimit)
	v.SetDefault("devserver.read_header_timeout", cfg.DevServer.ReadHeaderTimeout)
	v.SetDefault("devserver.shutdown_timeout", cfg.DevServer.ShutdownTimeout)

	v.SetEnvPrefix("SHADOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	return cfg, configPath, nil
}

// loadDotEnv exports variables from path without overriding ones already set.
func loadDotEnv(logger *zerolog.Logger, path string) {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return
	}
	if logger != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to load env file")
	}
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
