// Package config manages configuration for the gpulogs CLI and relay.
// It uses Viper for unified configuration management from files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/turbocompute/gpulogs/internal/constants"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the effective configuration of one gpulogs invocation.
// It supports loading from YAML files and environment variables.
type Config struct {
	// Stream client
	URL        string `mapstructure:"url" yaml:"url" validate:"omitempty,wsurl"`
	TargetID   string `mapstructure:"target_id" yaml:"target_id,omitempty"`
	Token      string `mapstructure:"token" yaml:"token,omitempty"`
	MaxLines   int    `mapstructure:"max_lines" yaml:"max_lines" validate:"gt=0"`
	AutoScroll bool   `mapstructure:"auto_scroll" yaml:"auto_scroll"`
	ExportDir  string `mapstructure:"export_dir" yaml:"export_dir" validate:"required"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`

	// Relay server
	RelayListen string `mapstructure:"relay_listen" yaml:"relay_listen" validate:"required"`
	RelayReplay int    `mapstructure:"relay_replay" yaml:"relay_replay" validate:"gte=0"`
}

// configKeys lists every key persisted by Save and bound to GPULOGS_* env vars.
var configKeys = []string{
	"url",
	"target_id",
	"token",
	"max_lines",
	"auto_scroll",
	"export_dir",
	"log_level",
	"relay_listen",
	"relay_replay",
}

var validate = newValidator()

// homeDir is swapped in tests.
var homeDir = os.UserHomeDir

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("wsurl", func(fl validator.FieldLevel) bool {
		return IsStreamURL(fl.Field().String())
	})
	return v
}

// IsStreamURL reports whether raw is an absolute ws:// or wss:// URL with a host.
func IsStreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
}

// Load loads the configuration using Viper.
// Values come from ~/.gpulogs/config.yaml when present and from environment
// variables with the GPULOGS_ prefix, which take precedence over the file.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := loadConfigFile(v); err != nil {
		// A missing config file is fine, defaults and env vars still apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints, typically again after flag overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Save saves the configuration to the user's home directory.
// Overwrites the existing config file if it exists.
func Save(config *Config) error {
	configFilePath, err := GetConfigPath()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(configFilePath), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	v := viper.New()
	v.Set("url", config.URL)
	v.Set("target_id", config.TargetID)
	v.Set("token", config.Token)
	v.Set("max_lines", config.MaxLines)
	v.Set("auto_scroll", config.AutoScroll)
	v.Set("export_dir", config.ExportDir)
	v.Set("log_level", config.LogLevel)
	v.Set("relay_listen", config.RelayListen)
	v.Set("relay_replay", config.RelayReplay)

	if err = v.WriteConfigAs(configFilePath); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	// Set proper permissions, the file may hold a token
	if err = os.Chmod(configFilePath, constants.ConfigFilePermissions); err != nil {
		return fmt.Errorf("error setting config file permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return constants.ConfigFilePath(home), nil
}

// GetThemePath returns the path to the optional TUI theme file.
func GetThemePath() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(constants.ConfigDirPath(home), constants.ThemeFileName), nil
}

// GetLogLevel returns the slog.Level from the string configuration.
// Defaults to INFO if the level string is invalid.
func (c *Config) GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Helper functions

func setDefaults(v *viper.Viper) {
	v.SetDefault("url", constants.DefaultStreamURL)
	v.SetDefault("max_lines", constants.DefaultMaxLines)
	v.SetDefault("auto_scroll", true)
	v.SetDefault("export_dir", constants.DefaultExportDir)
	v.SetDefault("log_level", constants.DefaultLogLevel)
	v.SetDefault("relay_listen", constants.DefaultRelayListen)
	v.SetDefault("relay_replay", constants.DefaultRelayReplay)
}

func loadConfigFile(v *viper.Viper) error {
	configFile, err := GetConfigPath()
	if err != nil {
		return err
	}

	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	return v.ReadInConfig()
}

func bindEnvVars(v *viper.Viper) {
	for _, key := range configKeys {
		_ = v.BindEnv(key, constants.EnvPrefix+"_"+strings.ToUpper(key))
	}
}
