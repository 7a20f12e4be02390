package translator

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/errorsx"
	"github.com/harunnryd/koe/pkg/metrics"
	"github.com/harunnryd/koe/pkg/session"
)

// VoicesURL lists the available voices; no signature needed, only a
// browser-looking identity.
const VoicesURL = "https://eastus.api.speech.microsoft.com/cognitiveservices/voices/list"

const voicesUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/107.0.0.0 Safari/537.36 Edg/107.0.1418.26"

type getter interface {
	Get(ctx context.Context, url string, header http.Header, timeout time.Duration) (*session.Response, error)
}

type CatalogConfig struct {
	URL     string
	Timeout time.Duration
}

func (c CatalogConfig) withDefaults() CatalogConfig {
	if c.URL == "" {
		c.URL = VoicesURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Catalog fetches the voice list once and serves it from memory for the
// rest of the process lifetime.
type Catalog struct {
	cfg      CatalogConfig
	http     getter
	logger   *slog.Logger
	observer metrics.Observer

	mu     sync.Mutex
	cached []byte
}

func NewCatalog(cfg CatalogConfig, client getter, logger *slog.Logger, observer metrics.Observer) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Catalog{cfg: cfg.withDefaults(), http: client, logger: logger, observer: observer}
}

func (c *Catalog) Voices(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil {
		return c.cached, nil
	}

	header := http.Header{}
	header.Set("User-Agent", voicesUserAgent)
	header.Set("X-Ms-Useragent", "SpeechStudio/2021.05.001")
	header.Set("Content-Type", "application/json")
	header.Set("Origin", "https://azure.microsoft.com")
	header.Set("Referer", "https://azure.microsoft.com")

	started := time.Now()
	resp, err := c.http.Get(ctx, c.cfg.URL, header, c.cfg.Timeout)
	if err == nil && !resp.OK() {
		err = errorsx.New(errorsx.ReasonVoicesFetch, "voice list returned status %d", resp.Status)
	}
	c.observer.RecordEvent(metrics.Duration(metrics.EventVoicesFetch, "translator", started, err))
	if err != nil {
		c.logger.Error("voice list fetch failed", slog.Any("error", err))
		return nil, errorsx.Wrap(err, errorsx.ReasonVoicesFetch)
	}

	c.cached = resp.Body
	c.logger.Info("cached voice list", slog.Int("bytes", len(c.cached)))
	return c.cached, nil
}

var _ tts.Catalog = (*Catalog)(nil)
