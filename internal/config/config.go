// Package config loads keepsake settings from a TOML file, KEEPSAKE_*
// environment variables and built-in defaults, in that order of precedence
// after explicit flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName = "keepsake"
	configType = "toml"
	envPrefix  = "KEEPSAKE"
	fileMode   = 0o600
	dirMode    = 0o700

	tempFilePattern = ".keepsake-*.toml.tmp"
)

// Keys.
const (
	KeyDatabase = "database"
	KeyCodec    = "codec"
	KeyLogLevel = "log_level"
	KeyCatalog  = "catalog"
)

// Config holds every setting.
type Config struct {
	Database string `mapstructure:"database" toml:"database" json:"database"`
	Codec    string `mapstructure:"codec" toml:"codec" json:"codec"`
	LogLevel string `mapstructure:"log_level" toml:"log_level" json:"log_level"`
	Catalog  string `mapstructure:"catalog" toml:"catalog" json:"catalog"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Database: "keepsake.db",
		Codec:    "url",
		LogLevel: "info",
	}
}

// Validate checks every setting.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.Codec, validation.Required, validation.In("url", "gzip")),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
	)
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the configuration. With file empty it searches the working
// directory and $HOME/.config/keepsake for keepsake.toml; a missing file is
// not an error. With file set, that file must exist. It returns the file
// actually read, if any.
func Load(v *viper.Viper, file string) (Config, string, error) {
	if v == nil {
		v = viper.New()
	}
	def := Default()
	v.SetDefault(KeyDatabase, def.Database)
	v.SetDefault(KeyCodec, def.Codec)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyCatalog, def.Catalog)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, "", fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

// DefaultPath is where config init writes when no path is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", configName, configName+"."+configType), nil
}

// Marshal encodes cfg as TOML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// WriteFile writes cfg to path atomically. An existing file is only
// replaced when overwrite is set.
func WriteFile(path string, cfg Config, overwrite bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}
	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}
	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false
	return nil
}
