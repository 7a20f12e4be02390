// Package session provides the pooled, retrying HTTP layer shared by the
// token, synthesis, and voice-catalog calls.
package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

type Config struct {
	// RecycleInterval bounds the age of a pooled session. Connections can
	// go bad at the TLS layer without surfacing an error until mid-stream;
	// swapping the pool on a timer sheds them before retries have to.
	RecycleInterval time.Duration
	// MaxRetries caps the HTTP-layer retry tier (attempts = MaxRetries).
	MaxRetries     int
	InitialBackoff time.Duration
	// ProxyURL applies to all outbound calls unless a call overrides it.
	ProxyURL            string
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

func (c Config) withDefaults() Config {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 600 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 50
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 20
	}
	return c
}

// Manager owns the pooled *http.Client and replaces it once it exceeds the
// recycle interval. Swapping only affects subsequently acquired clients;
// requests in flight on the old pool finish undisturbed.
type Manager struct {
	cfg    Config
	proxy  *url.URL
	logger *slog.Logger

	mu     sync.Mutex
	client *http.Client
	born   time.Time
}

func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	var proxy *url.URL
	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = u
	}
	m := &Manager{cfg: cfg, proxy: proxy, logger: logger}
	m.client = m.newClient(proxy)
	m.born = time.Now()
	return m, nil
}

func (m *Manager) Config() Config { return m.cfg }

// Client returns the current pooled client, building a fresh one when the
// previous pool has outlived the recycle interval.
func (m *Manager) Client() *http.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.born) > m.cfg.RecycleInterval {
		old := m.client
		m.client = m.newClient(m.proxy)
		m.born = time.Now()
		go old.CloseIdleConnections()
		m.logger.Info("recycled pooled session",
			slog.Duration("interval", m.cfg.RecycleInterval))
	}
	return m.client
}

// OneShot builds an unpooled client for a single call, used when a
// per-call proxy overrides the configured one.
func (m *Manager) OneShot(proxy *url.URL) *http.Client {
	return m.newClient(proxy)
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client.CloseIdleConnections()
}

func (m *Manager) newClient(proxy *url.URL) *http.Client {
	proxyFn := http.ProxyFromEnvironment
	if proxy != nil {
		proxyFn = http.ProxyURL(proxy)
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               proxyFn,
			MaxIdleConns:        m.cfg.MaxIdleConns,
			MaxIdleConnsPerHost: m.cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}
