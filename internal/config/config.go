// Package config loads application configuration from a YAML file and
// FEDRATES_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OCR       OCRConfig       `yaml:"ocr" mapstructure:"ocr"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the sqlite database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DataConfig configures file locations.
type DataConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	OutDir   string `yaml:"out_dir" mapstructure:"out_dir"`
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

// FetchConfig configures the HTTP downloader.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	Force       bool   `yaml:"force" mapstructure:"force"`
}

// AnthropicConfig holds Anthropic API settings for the vision pass.
type AnthropicConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	Model            string `yaml:"model" mapstructure:"model"`
	CallIntervalSecs int    `yaml:"call_interval_secs" mapstructure:"call_interval_secs"`
}

// OCRConfig configures PDF text extraction and the OCR reread fallback.
type OCRConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// PipelineConfig configures extraction orchestration.
type PipelineConfig struct {
	Workers  int  `yaml:"workers" mapstructure:"workers"`
	AllowOCR bool `yaml:"allow_ocr" mapstructure:"allow_ocr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FEDRATES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "fedrates.db")
	v.SetDefault("data.dir", "data_raw")
	v.SetDefault("data.out_dir", "data_out")
	v.SetDefault("data.manifest", "manifest.csv")
	v.SetDefault("fetch.user_agent", "fedrates-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.call_interval_secs", 3)
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_ocr_model", "pixtral-large-latest")
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.allow_ocr", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validation modes name the credentials a command is about to need, so
// missing keys fail at startup instead of mid-run.
const (
	ModeLocal  = "local"  // sync + xlsx/pdf extraction, no model calls
	ModeVision = "vision" // anthropic vision extraction
)

// Validate checks that the configuration can support the given mode.
func (c *Config) Validate(mode string) error {
	if c.Store.Path == "" {
		return eris.New("config: store.path is required")
	}
	if c.Data.Dir == "" {
		return eris.New("config: data.dir is required")
	}

	switch mode {
	case ModeLocal:
		return nil
	case ModeVision:
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required for vision extraction (set FEDRATES_ANTHROPIC_KEY)")
		}
		return nil
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
