package koe

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Server        ServerConfig        `mapstructure:"server"`
	Transport     TransportConfig     `mapstructure:"transport"`
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Defaults      DefaultsConfig      `mapstructure:"defaults"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr"`
	TTSPath        string `mapstructure:"tts_path"`
	VoicesPath     string `mapstructure:"voices_path"`
	DrainTimeoutMS int    `mapstructure:"drain_timeout_ms"`
}

type TransportConfig struct {
	ProxyURL         string `mapstructure:"proxy_url"`
	RecycleIntervalS int    `mapstructure:"recycle_interval_s"`
	MaxRetries       int    `mapstructure:"max_retries"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	TTS VendorConfig `mapstructure:"tts"`
}

// DefaultsConfig fills empty synthesis request fields at the boundary.
type DefaultsConfig struct {
	VoiceName    string `mapstructure:"voice_name"`
	Rate         string `mapstructure:"rate"`
	Pitch        string `mapstructure:"pitch"`
	OutputFormat string `mapstructure:"output_format"`
	Style        string `mapstructure:"style"`
}

type ObservabilityConfig struct {
	MetricsPath string  `mapstructure:"metrics_path"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type PrivacyConfig struct {
	RedactLogs bool `mapstructure:"redact_logs"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.tts_path", "/tts")
	v.SetDefault("server.voices_path", "/voices")
	v.SetDefault("server.drain_timeout_ms", 10000)
	v.SetDefault("transport.recycle_interval_s", 600)
	v.SetDefault("transport.max_retries", 5)
	v.SetDefault("vendors.tts.provider", "translator")
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("privacy.redact_logs", false)

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

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.TTS.Provider) == "" {
		return fmt.Errorf("vendors.tts.provider is required")
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0, 1]")
	}
	return nil
}

// expandEnvStrings substitutes ${VAR} in every string field and settings
// map, so secrets can stay out of the config file.
func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.TTS.Settings = expandSettings(cfg.Vendors.TTS.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		if s, ok := v.(string); ok {
			settings[k] = os.ExpandEnv(s)
		}
	}
	return settings
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
