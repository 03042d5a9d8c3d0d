// Package config provides configuration management.
//
// Values are layered: built-in defaults, then an optional JSON or YAML file,
// then UTILBILL_* environment variables (UTILBILL_STORAGE_BACKEND,
// UTILBILL_SERVER_ADDRESS, ...).
package config

import (
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // IANA zones for summary.location on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"utility-bill/adapters/storage"
	"utility-bill/internal/errors"
	"utility-bill/internal/logging"
	"utility-bill/internal/metrics"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "UTILBILL"

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" mapstructure:"version"`

	// Storage selects the history backend
	Storage storage.Config `json:"storage" mapstructure:"storage"`

	// Tariffs contains tariff table settings
	Tariffs TariffsConfig `json:"tariffs" mapstructure:"tariffs"`

	// Summary contains monthly summary settings
	Summary SummaryConfig `json:"summary" mapstructure:"summary"`

	// Server contains HTTP server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Output contains CLI output settings
	Output OutputConfig `json:"output" mapstructure:"output"`

	// Metrics contains Prometheus settings
	Metrics metrics.Config `json:"metrics" mapstructure:"metrics"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" mapstructure:"logging"`
}

// TariffsConfig contains tariff table settings
type TariffsConfig struct {
	// File overlays the built-in tables (.hcl, .json, .yaml); empty uses built-ins only
	File string `json:"file" mapstructure:"file"`
}

// SummaryConfig contains monthly summary settings
type SummaryConfig struct {
	// Location is the IANA time zone months are grouped in ("Asia/Kuala_Lumpur",
	// "UTC"); empty or "Local" uses the host's local time
	Location string `json:"location" mapstructure:"location"`
}

// TimeLocation resolves Location
func (s SummaryConfig) TimeLocation() (*time.Location, error) {
	if s.Location == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Location)
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Address is the listen address
	Address string `json:"address" mapstructure:"address" validate:"required"`

	// ReadTimeoutSeconds bounds reading a request
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds" validate:"gte=0"`

	// WriteTimeoutSeconds bounds writing a response
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds" validate:"gte=0"`
}

// OutputConfig contains CLI output settings
type OutputConfig struct {
	// DefaultFormat is the default output format
	DefaultFormat string `json:"default_format" mapstructure:"default_format" validate:"oneof=text json"`

	// ShowBreakdown prints the tier breakdown under each bill
	ShowBreakdown bool `json:"show_breakdown" mapstructure:"show_breakdown"`
}

// Dir returns the per-user directory for history and config files
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".utilbill"
	}
	return filepath.Join(homeDir, ".utilbill")
}

// Default returns a default configuration
func Default() *Config {
	dir := Dir()

	return &Config{
		Version: "1.0",
		Storage: storage.Config{
			Backend:   storage.BackendFile,
			Directory: filepath.Join(dir, "data"),
			Path:      filepath.Join(dir, "history.db"),
			Redis: storage.RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Server: ServerConfig{
			Address:             ":8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
		Output: OutputConfig{
			DefaultFormat: "text",
			ShowBreakdown: false,
		},
		Metrics: metrics.Config{
			Enabled:   true,
			Namespace: "utilbill",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration from path, if set, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) && !stderrors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrap(errors.TypeConfig, "failed to read config file", err).
					WithContext("path", path)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "failed to decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newViper registers every key with its default so that environment
// variables can override keys that no file sets.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range flatten("", toMap(Default())) {
		v.SetDefault(key, value)
	}
	return v
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.TypeConfig, "invalid configuration", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return errors.Wrap(errors.TypeConfig, "invalid storage configuration", err)
	}
	if _, err := c.Summary.TimeLocation(); err != nil {
		return errors.Wrap(errors.TypeConfig, "invalid summary location", err).
			WithContext("location", c.Summary.Location)
	}
	return nil
}

// Save writes the configuration to path. The format follows the extension.
func (c *Config) Save(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return errors.Config("config file must end in .json, .yaml or .yml").WithContext("path", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.TypeConfig, "failed to create config directory", err)
	}

	v := viper.New()
	if err := v.MergeConfigMap(toMap(c)); err != nil {
		return errors.Wrap(errors.TypeConfig, "failed to encode config", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrap(errors.TypeConfig, "failed to write config file", err).
			WithContext("path", path)
	}
	return nil
}

// YAML renders the configuration with the same keys files use
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(toMap(c))
}

// toMap converts c into a nested map keyed by the json tag names
func toMap(c *Config) map[string]interface{} {
	data, err := json.Marshal(c)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

func flatten(prefix string, in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
