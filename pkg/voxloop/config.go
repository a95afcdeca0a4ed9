package voxloop

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/lumenvoice/voxloop/pkg/vad"
	"github.com/spf13/viper"
)

// Config is the root engine configuration.
type Config struct {
	Engine        EngineConfig        `mapstructure:"engine"`
	VAD           vad.Config          `mapstructure:"vad"`
	Backend       BackendConfig       `mapstructure:"backend"`
	LogLevel      string              `mapstructure:"log_level"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type EngineConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
}

// BackendConfig points the engine at the responder service. Settings is
// a free-form bag for custom transports registered by embedders.
type BackendConfig struct {
	URL       string         `mapstructure:"url"`
	VoiceID   string         `mapstructure:"voice_id"`
	Transport string         `mapstructure:"transport"`
	TimeoutMS int            `mapstructure:"timeout_ms"`
	Settings  map[string]any `mapstructure:"settings"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
	// MetricsSampleRate thins the per-event debug log stream; 1 (and 0,
	// meaning unset) logs every event, 0.1 logs roughly one in ten.
	// Artifact observers (timeline, usage) always see the full stream.
	MetricsSampleRate float64 `mapstructure:"metrics_sample_rate"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

// DefaultConfig returns the stock tuning with a mock backend; callers
// set Backend.URL and Backend.Transport for live use.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{SampleRate: 16000},
		VAD:    vad.DefaultConfig(),
		Backend: BackendConfig{
			VoiceID:   "Fritz-PlayAI",
			Transport: "mock",
			TimeoutMS: 30000,
		},
		LogLevel:      "info",
		Observability: ObservabilityConfig{MetricsSampleRate: 1},
		Privacy:       PrivacyConfig{RedactPII: true},
	}
}

// LoadConfig reads a config file, applies defaults, expands ${ENV}
// references, and validates the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("engine.sample_rate", 16000)
	v.SetDefault("vad.positive_speech_threshold", 0.8)
	v.SetDefault("vad.negative_speech_threshold", 0.5)
	v.SetDefault("vad.pre_speech_pad_frames", 8)
	v.SetDefault("vad.min_speech_frames", 3)
	v.SetDefault("vad.redemption_frames", 10)
	v.SetDefault("vad.frame_samples", 512)
	v.SetDefault("backend.voice_id", "Fritz-PlayAI")
	v.SetDefault("backend.transport", "http")
	v.SetDefault("backend.timeout_ms", 30000)
	v.SetDefault("log_level", "info")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.metrics_sample_rate", 1.0)
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field consistency and fills derived values: the
// detector inherits the engine sample rate unless overridden.
func (c *Config) Validate() error {
	if c.Engine.SampleRate <= 0 {
		c.Engine.SampleRate = 16000
	}
	if c.VAD.SampleRate == 0 {
		c.VAD.SampleRate = c.Engine.SampleRate
	}
	if c.VAD.SampleRate != c.Engine.SampleRate {
		return fmt.Errorf("vad.sample_rate %d must match engine.sample_rate %d",
			c.VAD.SampleRate, c.Engine.SampleRate)
	}
	if err := c.VAD.Validate(); err != nil {
		return err
	}

	transport := strings.ToLower(strings.TrimSpace(c.Backend.Transport))
	if transport == "" {
		transport = "http"
	}
	c.Backend.Transport = transport
	if transport != "mock" && strings.TrimSpace(c.Backend.URL) == "" {
		return fmt.Errorf("backend.url is required for the %q transport", transport)
	}

	if c.Observability.MetricsSampleRate == 0 {
		c.Observability.MetricsSampleRate = 1
	}
	if r := c.Observability.MetricsSampleRate; r < 0 || r > 1 {
		return fmt.Errorf("observability.metrics_sample_rate %v must be within (0, 1]", r)
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Backend.Settings = expandSettings(cfg.Backend.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
