package koe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/koe/pkg/adapters/tts"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "environment: production\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("expected default addr, got %s", cfg.Server.Addr)
	}
	if cfg.Transport.RecycleIntervalS != 600 {
		t.Fatalf("expected default recycle interval, got %d", cfg.Transport.RecycleIntervalS)
	}
	if cfg.Vendors.TTS.Provider != "translator" {
		t.Fatalf("expected default provider, got %s", cfg.Vendors.TTS.Provider)
	}
	if cfg.Observability.SampleRate != 1.0 {
		t.Fatalf("expected default sample rate, got %f", cfg.Observability.SampleRate)
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("KOE_TEST_PROXY", "http://proxy.internal:3128")
	path := writeConfig(t, "transport:\n  proxy_url: ${KOE_TEST_PROXY}\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport.ProxyURL != "http://proxy.internal:3128" {
		t.Fatalf("env not expanded: %s", cfg.Transport.ProxyURL)
	}
}

func TestLoadConfigExpandsVendorSettings(t *testing.T) {
	t.Setenv("KOE_TEST_SETTING", "cheerful")
	path := writeConfig(t, "vendors:\n  tts:\n    provider: translator\n    settings:\n      style: ${KOE_TEST_SETTING}\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vendors.TTS.Settings["style"] != "cheerful" {
		t.Fatalf("settings env not expanded: %v", cfg.Vendors.TTS.Settings)
	}
}

func TestLoadConfigRejectsBadSampleRate(t *testing.T) {
	path := writeConfig(t, "observability:\n  sample_rate: 3\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewProviderRegistry()
	if _, _, err := reg.BuildTTS("nope", Config{}, Runtime{}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestRegistryNormalizesNames(t *testing.T) {
	reg := NewProviderRegistry()
	called := false
	reg.RegisterTTS("Translator", func(cfg Config, rt Runtime) (tts.Synthesizer, tts.Catalog, error) {
		called = true
		return nil, nil, nil
	})
	if _, _, err := reg.BuildTTS("  translator ", Config{}, Runtime{}); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !called {
		t.Fatalf("factory not invoked")
	}
}
