// Package server is the thin routing layer in front of the synthesis
// client: query parameters in, audio bytes out.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/errorsx"
	"github.com/harunnryd/koe/pkg/redact"
)

type Config struct {
	Addr       string
	TTSPath    string
	VoicesPath string
	// Defaults fill empty query parameters before the request reaches
	// the synthesizer.
	Defaults tts.Request
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.TTSPath == "" {
		c.TTSPath = "/tts"
	}
	if c.VoicesPath == "" {
		c.VoicesPath = "/voices"
	}
	return c
}

type Server struct {
	cfg     Config
	synth   tts.Synthesizer
	catalog tts.Catalog
	logger  *slog.Logger

	server   *http.Server
	draining atomic.Bool
}

func New(cfg Config, synth tts.Synthesizer, catalog tts.Catalog, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg.withDefaults(), synth: synth, catalog: catalog, logger: logger}
}

// Handler builds the route table; exposed separately so tests can drive
// the mux without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.TTSPath, s.handleTTS)
	mux.HandleFunc(s.cfg.VoicesPath, s.handleVoices)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Synthesis of long texts can legitimately take most of the
		// upstream 30s budget.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", slog.Any("error", err))
		}
	}()
	return nil
}

// Drain stops accepting new requests and waits for in-flight ones.
func (s *Server) Drain() error {
	s.draining.Store(true)
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) Stop() error {
	return s.Drain()
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	text := q.Get("text")
	if strings.TrimSpace(text) == "" {
		http.Error(w, "text must not be empty", http.StatusBadRequest)
		return
	}

	req := tts.Request{
		Text:         text,
		VoiceName:    orDefault(q.Get("voice_name"), s.cfg.Defaults.VoiceName),
		Rate:         orDefault(q.Get("rate"), s.cfg.Defaults.Rate),
		Pitch:        orDefault(q.Get("pitch"), s.cfg.Defaults.Pitch),
		OutputFormat: orDefault(q.Get("output_format"), s.cfg.Defaults.OutputFormat),
		Style:        orDefault(q.Get("style"), s.cfg.Defaults.Style),
	}

	audio, err := s.synth.Synthesize(r.Context(), req)
	if err != nil {
		s.logger.Error("synthesis failed",
			slog.String("reason", string(errorsx.Reason(err))),
			slog.String("text", redact.Text(text)),
			slog.Any("error", err))
		s.writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", tts.ContentType(req.OutputFormat))
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	voices, err := s.catalog.Voices(r.Context())
	if err != nil {
		s.logger.Error("voice list failed", slog.Any("error", err))
		http.Error(w, "voice list unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(voices)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

// writeFailure translates the error taxonomy into responses without
// leaking transport internals.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch errorsx.Reason(err) {
	case errorsx.ReasonRemote:
		http.Error(w, "speech service rejected the request", http.StatusBadGateway)
	case errorsx.ReasonAuthFetch, errorsx.ReasonAuthParse, errorsx.ReasonNetwork:
		http.Error(w, "speech service unavailable, retry later", http.StatusBadGateway)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
