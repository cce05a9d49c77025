package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Media      MediaConfig      `yaml:"media" mapstructure:"media"`
	Semantic   SemanticConfig   `yaml:"semantic" mapstructure:"semantic"`
	Grouper    GrouperConfig    `yaml:"grouper" mapstructure:"grouper"`
	Advertiser AdvertiserConfig `yaml:"advertiser" mapstructure:"advertiser"`
	Export     ExportConfig     `yaml:"export" mapstructure:"export"`
	Taxonomy   TaxonomyConfig   `yaml:"taxonomy" mapstructure:"taxonomy"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OpenAIConfig holds OpenAI embeddings API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings for ad extraction.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MediaConfig configures the image fingerprinting pass.
type MediaConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries     int `yaml:"retries" mapstructure:"retries"`
	MaxImages   int `yaml:"max_images" mapstructure:"max_images"`
	FlushEvery  int `yaml:"flush_every" mapstructure:"flush_every"`
	RatePerSec  int `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SemanticConfig configures the product-name clustering pass.
type SemanticConfig struct {
	Model             string  `yaml:"model" mapstructure:"model"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	DistanceThreshold float64 `yaml:"distance_threshold" mapstructure:"distance_threshold"`
}

// GrouperConfig configures product aggregation and scoring.
type GrouperConfig struct {
	SignalWeights     map[string]float64 `yaml:"signal_weights" mapstructure:"signal_weights"`
	EvidencePerSignal int                `yaml:"evidence_per_signal" mapstructure:"evidence_per_signal"`
}

// AdvertiserConfig configures advertiser state tracking.
type AdvertiserConfig struct {
	DormantAfterDays int `yaml:"dormant_after_days" mapstructure:"dormant_after_days"`
}

// ExportConfig configures winners export.
type ExportConfig struct {
	Limit     int `yaml:"limit" mapstructure:"limit"`
	SampleAds int `yaml:"sample_ads" mapstructure:"sample_ads"`
}

// TaxonomyConfig points at the closed category taxonomy file.
type TaxonomyConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultSignalWeights is the hand-tuned commercial-intent weight table.
// Keys match the signal names emitted by the extractor.
func DefaultSignalWeights() map[string]float64 {
	return map[string]float64{
		"cod":                 0.12,
		"free_shipping":       0.06,
		"nationwide_shipping": 0.05,
		"whatsapp_cta":        0.06,
		"discount_offer":      0.07,
		"urgency":             0.05,
		"guarantee_trust":     0.03,
		"cash_price":          0.02,
	}
}

// Validate checks the signal weight table. Every weight is added straight
// into the candidate score, so each must stay within [0, 1]; a negative
// weight would make a true signal lower the score.
func (c GrouperConfig) Validate() error {
	var errs []string

	names := make([]string, 0, len(c.SignalWeights))
	for name := range c.SignalWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := c.SignalWeights[name]
		if w < 0 {
			errs = append(errs, fmt.Sprintf("signal_weights.%s must be >= 0, got %g", name, w))
		} else if w > 1 {
			errs = append(errs, fmt.Sprintf("signal_weights.%s must be <= 1, got %g", name, w))
		}
	}
	if c.EvidencePerSignal < 0 {
		errs = append(errs, fmt.Sprintf("evidence_per_signal must be >= 0, got %d", c.EvidencePerSignal))
	}

	if len(errs) > 0 {
		return eris.New("config: grouper: " + strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXPLORER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "explorer.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("media.workers", 12)
	v.SetDefault("media.timeout_secs", 20)
	v.SetDefault("media.retries", 2)
	v.SetDefault("media.max_images", 1)
	v.SetDefault("media.flush_every", 100)
	v.SetDefault("media.rate_per_sec", 25)
	v.SetDefault("semantic.model", "text-embedding-3-small")
	v.SetDefault("semantic.batch_size", 500)
	v.SetDefault("semantic.distance_threshold", 0.45)
	v.SetDefault("grouper.signal_weights", DefaultSignalWeights())
	v.SetDefault("grouper.evidence_per_signal", 2)
	v.SetDefault("advertiser.dormant_after_days", 7)
	v.SetDefault("export.limit", 50)
	v.SetDefault("export.sample_ads", 5)
	v.SetDefault("taxonomy.path", "taxonomy.yaml")

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
