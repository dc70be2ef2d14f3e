// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/safechat-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete safechat configuration.
type Config struct {
	// Backend connection
	Backend BackendConfig `toml:"backend" json:"backend"`

	// Token persistence
	Auth AuthConfig `toml:"auth" json:"auth"`

	// Conversation defaults
	Chat ChatConfig `toml:"chat" json:"chat"`

	// Presentation
	UI UIConfig `toml:"ui" json:"ui"`

	// Log output
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// BackendConfig describes how to reach the chat backend.
type BackendConfig struct {
	// URL is the backend base URL, without the /api prefix
	URL string `toml:"url" json:"url"`
	// APIPrefix is the path prefix of every endpoint
	APIPrefix string `toml:"api_prefix" json:"api_prefix"`
	// TimeoutSecs bounds every request
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimitPerSec caps outgoing requests (0 = unlimited)
	RateLimitPerSec float64 `toml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RateBurst is the limiter burst size
	RateBurst int `toml:"rate_burst" json:"rate_burst"`
}

// AuthConfig describes where and how the bearer token is kept.
type AuthConfig struct {
	// TokenFile is the token path (empty = ~/.safechat/token)
	TokenFile string `toml:"token_file" json:"token_file"`
	// EncryptToken encrypts the token at rest when a passphrase is available
	EncryptToken bool `toml:"encrypt_token" json:"encrypt_token"`
	// PassphraseEnv names the environment variable holding the passphrase
	PassphraseEnv string `toml:"passphrase_env" json:"passphrase_env"`
	// WatchToken re-resolves identity when the token file changes on disk
	WatchToken bool `toml:"watch_token" json:"watch_token"`
}

// ChatConfig holds conversation defaults.
type ChatConfig struct {
	// DefaultAge is the age override sent with every turn (0 = use account age)
	DefaultAge int `toml:"default_age" json:"default_age"`
	// HistoryDB is the session index path (empty = ~/.safechat/sessions.db)
	HistoryDB string `toml:"history_db" json:"history_db"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme"`
	// ScrollThresholdRows is how close to the bottom counts as "at bottom"
	ScrollThresholdRows int `toml:"scroll_threshold_rows" json:"scroll_threshold_rows"`
	// ShowModeration shows moderation reasons and categories under replies
	ShowModeration bool `toml:"show_moderation" json:"show_moderation"`
	// Markdown renders bot replies as Markdown
	Markdown bool `toml:"markdown" json:"markdown"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`
	// File is the log path (empty = ~/.safechat/safechat.log)
	File string `toml:"file" json:"file"`
	// MaxSizeMB rotates the file at this size
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb"`
	// MaxBackups is the number of rotated files kept
	MaxBackups int `toml:"max_backups" json:"max_backups"`
	// Compress gzips rotated files
	Compress bool `toml:"compress" json:"compress"`
}

// DefaultPassphraseEnv is the default passphrase variable.
const DefaultPassphraseEnv = "SAFECHAT_TOKEN_PASSPHRASE"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:             "http://localhost:8000",
			APIPrefix:       "/api",
			TimeoutSecs:     30,
			RateLimitPerSec: 5,
			RateBurst:       5,
		},
		Auth: AuthConfig{
			PassphraseEnv: DefaultPassphraseEnv,
			WatchToken:    true,
		},
		Chat: ChatConfig{},
		UI: UIConfig{
			Theme:               "auto",
			ScrollThresholdRows: 4,
			ShowModeration:      true,
			Markdown:            true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the safechat configuration directory path.
// SAFECHAT_HOME overrides the default ~/.safechat.
func ConfigDir() (string, error) {
	if dir := os.Getenv("SAFECHAT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".safechat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// resolvePath expands ~ and makes relative paths relative to the config dir.
// An empty path resolves to name inside the config dir.
func resolvePath(path, name string) string {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	switch {
	case path == "":
		return filepath.Join(dir, name)
	case path == "~" || strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
		return path
	case filepath.IsAbs(path):
		return path
	default:
		return filepath.Join(dir, path)
	}
}

// TokenPath returns the resolved token file path.
func (c *Config) TokenPath() string {
	return resolvePath(c.Auth.TokenFile, "token")
}

// HistoryDBPath returns the resolved session index path.
func (c *Config) HistoryDBPath() string {
	return resolvePath(c.Chat.HistoryDB, "sessions.db")
}

// LogPath returns the resolved log file path.
func (c *Config) LogPath() string {
	return resolvePath(c.Logging.File, "safechat.log")
}

// Timeout returns the backend request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}

// Passphrase returns the token passphrase from the environment, or "".
func (c *Config) Passphrase() string {
	name := c.Auth.PassphraseEnv
	if name == "" {
		name = DefaultPassphraseEnv
	}
	return os.Getenv(name)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ./.env (if present), then the default config file, then
// environment overrides. A missing config file yields defaults.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	path, err := ConfigPath()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		return cfg, err
	}
	return LoadFromPath(path)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromPath loads configuration from a TOML file at path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		// SECURITY: Check and fix file permissions if needed
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file: %w", err)
		}
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", statErr)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Written atomically with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# safechat configuration file")
	fmt.Fprintln(&buf, "# Generated by safechat - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Backend.URL),
		})
	}
	if c.Backend.APIPrefix != "" && !strings.HasPrefix(c.Backend.APIPrefix, "/") {
		errs = append(errs, ValidationError{Field: "backend.api_prefix", Message: "must start with '/'"})
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Backend.TimeoutSecs),
		})
	}
	if c.Backend.RateLimitPerSec < 0 {
		errs = append(errs, ValidationError{Field: "backend.rate_limit_per_sec", Message: "must not be negative"})
	}
	if c.Backend.RateBurst < 0 {
		errs = append(errs, ValidationError{Field: "backend.rate_burst", Message: "must not be negative"})
	}

	if c.Chat.DefaultAge != 0 && (c.Chat.DefaultAge < 1 || c.Chat.DefaultAge > 120) {
		errs = append(errs, ValidationError{
			Field:   "chat.default_age",
			Message: fmt.Sprintf("must be 0 (unset) or between 1 and 120, got %d", c.Chat.DefaultAge),
		})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme),
		})
	}
	if c.UI.ScrollThresholdRows < 0 || c.UI.ScrollThresholdRows > 100 {
		errs = append(errs, ValidationError{
			Field:   "ui.scroll_threshold_rows",
			Message: fmt.Sprintf("must be between 0 and 100, got %d", c.UI.ScrollThresholdRows),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level),
		})
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		errs = append(errs, ValidationError{Field: "logging", Message: "max_size_mb and max_backups must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values that have a sensible default.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	c.Backend.URL = strings.TrimRight(c.Backend.URL, "/")
	if c.Backend.APIPrefix == "" {
		c.Backend.APIPrefix = d.Backend.APIPrefix
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Backend.RateLimitPerSec > 0 && c.Backend.RateBurst == 0 {
		c.Backend.RateBurst = 1
	}
	if c.Auth.PassphraseEnv == "" {
		c.Auth.PassphraseEnv = d.Auth.PassphraseEnv
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - SAFECHAT_BACKEND_URL: overrides backend.url
//   - SAFECHAT_TIMEOUT: overrides backend.timeout_secs
//   - SAFECHAT_LOG_LEVEL: overrides logging.level
//   - SAFECHAT_AGE: overrides chat.default_age
//   - SAFECHAT_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SAFECHAT_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("SAFECHAT_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutSecs = secs
		}
	}
	if v := os.Getenv("SAFECHAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SAFECHAT_AGE"); v != "" {
		if age, err := strconv.Atoi(v); err == nil {
			c.Chat.DefaultAge = age
		}
	}
	if v := os.Getenv("SAFECHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "backend.url").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("'%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal, err := parseBool(strVal)
			if err != nil {
				return err
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %q", s)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"backend.url",
		"backend.api_prefix",
		"backend.timeout_secs",
		"backend.rate_limit_per_sec",
		"backend.rate_burst",
		"auth.token_file",
		"auth.encrypt_token",
		"auth.passphrase_env",
		"auth.watch_token",
		"chat.default_age",
		"chat.history_db",
		"ui.theme",
		"ui.scroll_threshold_rows",
		"ui.show_moderation",
		"ui.markdown",
		"logging.level",
		"logging.file",
		"logging.max_size_mb",
		"logging.max_backups",
		"logging.compress",
	}
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a JSON representation of the config for debugging.
// The passphrase itself is never part of the config, only its variable name.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
