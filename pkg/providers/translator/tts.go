// Package translator implements synthesis against the speech endpoint
// fronted by the translator token protocol.
package translator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/auth"
	"github.com/harunnryd/koe/pkg/errorsx"
	"github.com/harunnryd/koe/pkg/metrics"
	"github.com/harunnryd/koe/pkg/resilience"
	"github.com/harunnryd/koe/pkg/session"
	"github.com/harunnryd/koe/pkg/ssml"
)

// URLTemplate interpolates the credential's region into the synthesis host.
const URLTemplate = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"

const (
	DefaultVoiceName    = "zh-CN-XiaoxiaoMultilingualNeural"
	DefaultRate         = "0"
	DefaultPitch        = "0"
	DefaultOutputFormat = "audio-16khz-32kbitrate-mono-mp3"
	DefaultStyle        = "general"
)

type credentialSource interface {
	Credential(ctx context.Context) (auth.Credential, error)
}

type poster interface {
	Do(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration, opts session.CallOptions) (*session.Response, error)
}

type Config struct {
	URLTemplate string
	Timeout     time.Duration
	Defaults    tts.Request
	// ProxyURL routes synthesis calls only, overriding the transport-wide
	// proxy. Token and voice-list calls keep the shared session.
	ProxyURL string
	// Breaker, when set, rejects calls fast after repeated 429s.
	Breaker *resilience.CircuitBreaker
}

func (c Config) withDefaults() Config {
	if c.URLTemplate == "" {
		c.URLTemplate = URLTemplate
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Defaults.VoiceName == "" {
		c.Defaults.VoiceName = DefaultVoiceName
	}
	if c.Defaults.Rate == "" {
		c.Defaults.Rate = DefaultRate
	}
	if c.Defaults.Pitch == "" {
		c.Defaults.Pitch = DefaultPitch
	}
	if c.Defaults.OutputFormat == "" {
		c.Defaults.OutputFormat = DefaultOutputFormat
	}
	if c.Defaults.Style == "" {
		c.Defaults.Style = DefaultStyle
	}
	return c
}

// Client orchestrates token cache, SSML rendering, and the pooled session
// into one synthesis call.
type Client struct {
	cfg      Config
	creds    credentialSource
	http     poster
	logger   *slog.Logger
	observer metrics.Observer
	retry    resilience.RetryPolicy
}

func New(cfg Config, creds credentialSource, client poster, logger *slog.Logger, observer metrics.Observer) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Client{
		cfg:      cfg.withDefaults(),
		creds:    creds,
		http:     client,
		logger:   logger,
		observer: observer,
		// Outer tier: connection, TLS, and timeout failures only. Status
		// rejections are deterministic and must surface unretried.
		retry: resilience.NewRetryPolicy(3, 2*time.Second, 5*time.Second, func(err error) bool {
			return errorsx.Reason(err) == errorsx.ReasonUnknown
		}),
	}
}

func (c *Client) Name() string { return "translator" }

func (c *Client) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	req = c.applyDefaults(req)

	if c.cfg.Breaker != nil && !c.cfg.Breaker.Allow() {
		return nil, errorsx.Wrap(resilience.RateLimitError{
			Provider: c.Name(),
			Message:  "circuit open after repeated rate limits",
		}, errorsx.ReasonRemote)
	}

	started := time.Now()
	audio, err := c.synthesize(ctx, req)
	c.observer.RecordEvent(metrics.Duration(metrics.EventSynthesize, c.Name(), started, err))
	if c.cfg.Breaker != nil {
		if err != nil {
			c.cfg.Breaker.OnError(err)
		} else {
			c.cfg.Breaker.OnSuccess()
		}
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("synthesized",
		slog.String("voice", req.VoiceName),
		slog.String("format", req.OutputFormat),
		slog.Int("text_chars", len(req.Text)),
		slog.Int("audio_bytes", len(audio)))
	return audio, nil
}

func (c *Client) synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	cred, err := c.creds.Credential(ctx)
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf(c.cfg.URLTemplate, cred.Region)
	body := []byte(ssml.Build(req.Text, req.VoiceName, req.Rate, req.Pitch, req.Style))

	header := http.Header{}
	header.Set("Authorization", cred.Token)
	header.Set("Content-Type", "application/ssml+xml")
	header.Set("X-Microsoft-OutputFormat", req.OutputFormat)

	var audio []byte
	err = c.retry.Do(ctx, func() error {
		resp, err := c.http.Do(ctx, http.MethodPost, target, header, body, c.cfg.Timeout,
			session.CallOptions{ProxyURL: c.cfg.ProxyURL})
		if err != nil {
			return err
		}
		if !resp.OK() {
			if resp.Status == http.StatusTooManyRequests {
				return errorsx.Wrap(resilience.RateLimitError{
					Provider: c.Name(),
					Message:  fmt.Sprintf("synthesis endpoint returned status %d", resp.Status),
				}, errorsx.ReasonRemote)
			}
			return errorsx.New(errorsx.ReasonRemote, "synthesis endpoint returned status %d", resp.Status)
		}
		audio = resp.Body
		return nil
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonNetwork)
	}
	return audio, nil
}

func (c *Client) applyDefaults(req tts.Request) tts.Request {
	d := c.cfg.Defaults
	if req.VoiceName == "" {
		req.VoiceName = d.VoiceName
	}
	if req.Rate == "" {
		req.Rate = d.Rate
	}
	if req.Pitch == "" {
		req.Pitch = d.Pitch
	}
	if req.OutputFormat == "" {
		req.OutputFormat = d.OutputFormat
	}
	if req.Style == "" {
		req.Style = d.Style
	}
	return req
}

var _ tts.Synthesizer = (*Client)(nil)
