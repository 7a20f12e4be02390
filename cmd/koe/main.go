package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/auth"
	"github.com/harunnryd/koe/pkg/configutil"
	"github.com/harunnryd/koe/pkg/koe"
	"github.com/harunnryd/koe/pkg/logging"
	"github.com/harunnryd/koe/pkg/metrics"
	"github.com/harunnryd/koe/pkg/providers/mock"
	"github.com/harunnryd/koe/pkg/providers/translator"
	"github.com/harunnryd/koe/pkg/redact"
	"github.com/harunnryd/koe/pkg/resilience"
	"github.com/harunnryd/koe/pkg/runner"
	"github.com/harunnryd/koe/pkg/server"
	"github.com/harunnryd/koe/pkg/session"
)

type translatorSettings struct {
	ProxyURL          string `mapstructure:"proxy_url"`
	UseCircuitBreaker *bool  `mapstructure:"use_circuit_breaker"`
	CircuitThreshold  int    `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int    `mapstructure:"circuit_cooldown_ms"`
}

type mockSettings struct {
	Audio string `mapstructure:"audio"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := koe.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactLogs)

	observer, stopObserver := buildObserver(cfg, logger)

	manager, err := session.NewManager(session.Config{
		RecycleInterval: time.Duration(cfg.Transport.RecycleIntervalS) * time.Second,
		MaxRetries:      cfg.Transport.MaxRetries,
		ProxyURL:        cfg.Transport.ProxyURL,
	}, logging.NewComponentLogger(logger, "session"))
	if err != nil {
		logger.Error("session setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	httpClient := session.NewClient(manager, logging.NewComponentLogger(logger, "session"))

	reg := koe.NewProviderRegistry()
	registerProviders(reg)

	synth, catalog, err := reg.BuildTTS(cfg.Vendors.TTS.Provider, cfg, koe.Runtime{
		HTTP:     httpClient,
		Logger:   logger,
		Observer: observer,
	})
	if err != nil {
		logger.Error("provider setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("tts provider ready", slog.String("provider", synth.Name()))

	srv := server.New(server.Config{
		Addr:       cfg.Server.Addr,
		TTSPath:    cfg.Server.TTSPath,
		VoicesPath: cfg.Server.VoicesPath,
		Defaults:   requestDefaults(cfg),
	}, synth, catalog, logging.NewComponentLogger(logger, "server"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := runner.NewLifecycleRunner(srv, runner.Hooks{
		OnStart: func() { _ = srv.Start(ctx) },
		OnStop: func() {
			manager.Close()
			stopObserver()
		},
	}, time.Duration(cfg.Server.DrainTimeoutMS)*time.Millisecond)

	if err := run.Run(ctx); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("stopped")
}

func registerProviders(reg *koe.ProviderRegistry) {
	reg.RegisterTTS("translator", func(cfg koe.Config, rt koe.Runtime) (tts.Synthesizer, tts.Catalog, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"proxy_url", "use_circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"},
		}); err != nil {
			return nil, nil, fmt.Errorf("vendors.tts.settings: %w", err)
		}
		var settings translatorSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, nil, err
		}

		var breaker *resilience.CircuitBreaker
		if configutil.BoolValue(settings.UseCircuitBreaker, false) {
			breaker = resilience.NewCircuitBreaker(
				settings.CircuitThreshold,
				time.Duration(settings.CircuitCooldownMS)*time.Millisecond,
			)
		}

		cache := auth.NewCache(auth.Config{}, rt.HTTP,
			logging.NewComponentLogger(rt.Logger, "auth"), rt.Observer)
		synth := translator.New(translator.Config{
			Defaults: requestDefaults(cfg),
			ProxyURL: settings.ProxyURL,
			Breaker:  breaker,
		}, cache, rt.HTTP, logging.NewComponentLogger(rt.Logger, "translator"), rt.Observer)
		catalog := translator.NewCatalog(translator.CatalogConfig{}, rt.HTTP,
			logging.NewComponentLogger(rt.Logger, "voices"), rt.Observer)
		return synth, catalog, nil
	})

	reg.RegisterTTS("mock", func(cfg koe.Config, rt koe.Runtime) (tts.Synthesizer, tts.Catalog, error) {
		if err := configutil.ValidateSettings(cfg.Vendors.TTS.Settings, configutil.Schema{
			Optional: []string{"audio"},
		}); err != nil {
			return nil, nil, fmt.Errorf("vendors.tts.settings: %w", err)
		}
		var settings mockSettings
		if err := configutil.DecodeSettings(cfg.Vendors.TTS.Settings, &settings); err != nil {
			return nil, nil, err
		}
		return mock.NewSynthesizer(mock.Config{Audio: []byte(settings.Audio)}), &mock.Catalog{}, nil
	})
}

// requestDefaults merges config defaults over the provider's own, so the
// routing layer and the synthesizer agree on what an empty field means.
func requestDefaults(cfg koe.Config) tts.Request {
	d := tts.Request{
		VoiceName:    cfg.Defaults.VoiceName,
		Rate:         cfg.Defaults.Rate,
		Pitch:        cfg.Defaults.Pitch,
		OutputFormat: cfg.Defaults.OutputFormat,
		Style:        cfg.Defaults.Style,
	}
	if d.VoiceName == "" {
		d.VoiceName = translator.DefaultVoiceName
	}
	if d.Rate == "" {
		d.Rate = translator.DefaultRate
	}
	if d.Pitch == "" {
		d.Pitch = translator.DefaultPitch
	}
	if d.OutputFormat == "" {
		d.OutputFormat = translator.DefaultOutputFormat
	}
	if d.Style == "" {
		d.Style = translator.DefaultStyle
	}
	return d
}

func buildObserver(cfg koe.Config, logger *slog.Logger) (metrics.Observer, func()) {
	if cfg.Observability.MetricsPath == "" {
		return metrics.NoopObserver{}, func() {}
	}
	f, err := os.OpenFile(cfg.Observability.MetricsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("metrics sink unavailable", slog.Any("error", err))
		return metrics.NoopObserver{}, func() {}
	}
	var inner metrics.Observer = metrics.NewJSONLObserver(f)
	if cfg.Observability.SampleRate < 1 {
		inner = metrics.NewSamplingObserver(inner, cfg.Observability.SampleRate)
	}
	async := metrics.NewAsyncObserver(inner, 256)
	return async, func() {
		async.Close()
		_ = f.Close()
	}
}
