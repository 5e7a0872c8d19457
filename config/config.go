// Package config loads storygen settings from an optional YAML file and the
// environment. Settings are read once at startup; there is no reload.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mhpenta/storygen"
)

// EnvPrefix prefixes every environment variable, e.g. STORYGEN_GEMINI_API_KEY.
const EnvPrefix = "STORYGEN"

// Config holds all settings.
type Config struct {
	// Provider selects the backend: gemini, doubao, ernie, qwen, or one of the
	// aliases primary, secondary, tertiary, quaternary.
	Provider string `mapstructure:"provider"`

	// Timeout bounds a whole call, retries included. Each HTTP attempt gets
	// an equal share, see AttemptTimeout.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// MaxRetries after the first attempt for transient transport failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=5"`

	// ChatReplayChars bounds the history replayed into each chat request.
	ChatReplayChars int `mapstructure:"chat_replay_chars" validate:"gte=0"`

	// ImageDir, when set, stores inline images on disk and returns file URLs.
	ImageDir string `mapstructure:"image_dir"`

	// ProgressPath is the SQLite file holding the game snapshot.
	ProgressPath string `mapstructure:"progress_path" validate:"required"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	Gemini ProviderSettings `mapstructure:"gemini"`
	Doubao ProviderSettings `mapstructure:"doubao"`
	Ernie  ProviderSettings `mapstructure:"ernie"`
	Qwen   ProviderSettings `mapstructure:"qwen"`
}

// ProviderSettings configures one backend. Empty fields use the backend's
// defaults.
type ProviderSettings struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url" validate:"omitempty,url"`
	TextModel  string `mapstructure:"text_model"`
	ImageModel string `mapstructure:"image_model"`
	ImageSize  string `mapstructure:"image_size"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Provider:        string(storygen.ProviderPrimary),
		Timeout:         storygen.DefaultTimeout,
		MaxRetries:      1,
		ChatReplayChars: storygen.DefaultReplayBudget,
		ProgressPath:    "storygen.db",
		LogLevel:        "info",
	}
}

// legacyEnv maps keys to additional environment variables accepted for
// compatibility with existing deployments.
var legacyEnv = map[string][]string{
	"provider":       {"VITE_AI_PROVIDER"},
	"gemini.api_key": {"GEMINI_API_KEY", "API_KEY"},
	"doubao.api_key": {"VITE_DOUBAO_API_KEY", "ARK_API_KEY"},
	"ernie.api_key":  {"VITE_ERNIE_API_KEY"},
	"qwen.api_key":   {"VITE_QWEN_API_KEY", "DASHSCOPE_API_KEY"},
}

// Load reads the file at path (if non-empty) and the environment. Without a
// path, a file named storygen.yaml is looked up in ./configs and the working
// directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("storygen")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	setDefaults(vip, Default())

	for key, names := range legacyEnv {
		envs := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := vip.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(vip *viper.Viper, d *Config) {
	vip.SetDefault("provider", d.Provider)
	vip.SetDefault("timeout", d.Timeout)
	vip.SetDefault("max_retries", d.MaxRetries)
	vip.SetDefault("chat_replay_chars", d.ChatReplayChars)
	vip.SetDefault("image_dir", d.ImageDir)
	vip.SetDefault("progress_path", d.ProgressPath)
	vip.SetDefault("log_level", d.LogLevel)

	// Every provider key needs a default so AutomaticEnv can override it
	// during Unmarshal.
	for _, name := range []string{"gemini", "doubao", "ernie", "qwen"} {
		for _, field := range []string{"api_key", "base_url", "text_model", "image_model", "image_size"} {
			vip.SetDefault(name+"."+field, "")
		}
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// SelectedProvider resolves the configured provider identifier. ok is false
// when the identifier was not recognized and the primary was substituted.
func (c *Config) SelectedProvider() (storygen.Provider, bool) {
	return storygen.ParseProvider(c.Provider)
}

// Settings returns the settings block for p.
func (c *Config) Settings(p storygen.Provider) ProviderSettings {
	switch p {
	case storygen.ProviderGemini:
		return c.Gemini
	case storygen.ProviderDoubao:
		return c.Doubao
	case storygen.ProviderErnie:
		return c.Ernie
	case storygen.ProviderQwen:
		return c.Qwen
	default:
		return ProviderSettings{}
	}
}

// ProviderConfig builds the immutable backend configuration for p.
func (c *Config) ProviderConfig(p storygen.Provider) storygen.ProviderConfig {
	s := c.Settings(p)
	return storygen.ProviderConfig{
		Provider:   p,
		APIKey:     strings.TrimSpace(s.APIKey),
		BaseURL:    strings.TrimSpace(s.BaseURL),
		TextModel:  s.TextModel,
		ImageModel: s.ImageModel,
		ImageSize:  s.ImageSize,
		Timeout:    c.AttemptTimeout(),
		MaxRetries: c.MaxRetries,
	}
}

// AttemptTimeout splits Timeout across the first attempt and every retry so
// a hung attempt cannot consume the budget of the retries after it.
func (c *Config) AttemptTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 0
	}
	return c.Timeout / time.Duration(c.MaxRetries+1)
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
