package koe

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/metrics"
	"github.com/harunnryd/koe/pkg/session"
)

// Runtime carries the shared infrastructure handed to provider factories.
type Runtime struct {
	HTTP     *session.Client
	Logger   *slog.Logger
	Observer metrics.Observer
}

// TTSFactory builds a synthesizer and its voice catalog from config.
type TTSFactory func(cfg Config, rt Runtime) (tts.Synthesizer, tts.Catalog, error)

type ProviderRegistry struct {
	tts map[string]TTSFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{tts: make(map[string]TTSFactory)}
}

func (r *ProviderRegistry) RegisterTTS(name string, factory TTSFactory) {
	r.tts[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildTTS(provider string, cfg Config, rt Runtime) (tts.Synthesizer, tts.Catalog, error) {
	fn := r.tts[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, nil, fmt.Errorf("tts provider not registered: %s", provider)
	}
	return fn(cfg, rt)
}
