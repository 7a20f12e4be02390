// Package auth acquires and caches the bearer token for the synthesis
// endpoint. The token endpoint speaks an undocumented, signature-based
// protocol; everything here mimics the mobile client it was built for.
package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/harunnryd/koe/pkg/errorsx"
	"github.com/harunnryd/koe/pkg/metrics"
	"github.com/harunnryd/koe/pkg/redact"
	"github.com/harunnryd/koe/pkg/resilience"
	"github.com/harunnryd/koe/pkg/session"
	"github.com/harunnryd/koe/pkg/signer"
)

// EndpointURL is the fixed token endpoint.
const EndpointURL = "https://dev.microsofttranslator.com/apps/endpoint?api-version=1.0"

// Fixed client-identity headers. The remote service only hands out tokens
// to callers that look like this specific mobile client build.
const (
	userAgent     = "okhttp/4.5.0"
	clientVersion = "4.0.530a 5fe1dc6c"
	userID        = "0f04d16a175c411e"
	homeRegion    = "zh-Hans-CN"
	clientTraceID = "aab069b9-70a7-4844-a734-96cd78d94be9"
)

type poster interface {
	Post(ctx context.Context, url string, header http.Header, body []byte, timeout time.Duration) (*session.Response, error)
}

type Config struct {
	EndpointURL  string
	FetchTimeout time.Duration
	RefreshSkew  time.Duration
}

func (c Config) withDefaults() Config {
	if c.EndpointURL == "" {
		c.EndpointURL = EndpointURL
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.RefreshSkew <= 0 {
		c.RefreshSkew = RefreshSkew
	}
	return c
}

// Cache holds the current credential and refreshes it through the signed
// token protocol when it goes stale. Reads are concurrent; refresh is
// single-flight so a thundering herd of stale readers costs one call.
type Cache struct {
	cfg      Config
	http     poster
	logger   *slog.Logger
	observer metrics.Observer
	retry    resilience.RetryPolicy

	group singleflight.Group
	mu    sync.RWMutex
	cred  Credential

	now func() time.Time
}

func NewCache(cfg Config, client poster, logger *slog.Logger, observer metrics.Observer) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Cache{
		cfg:      cfg.withDefaults(),
		http:     client,
		logger:   logger,
		observer: observer,
		// Outer tier: network failures only. The pooled session has its
		// own HTTP-layer retries underneath.
		retry: resilience.NewRetryPolicy(3, time.Second, 5*time.Second, func(err error) bool {
			return errorsx.Reason(err) == errorsx.ReasonUnknown
		}),
		now: time.Now,
	}
}

// Credential returns a usable credential, refreshing when the cached one
// is absent or inside the skew window.
func (c *Cache) Credential(ctx context.Context) (Credential, error) {
	c.mu.RLock()
	cred := c.cred
	c.mu.RUnlock()

	now := c.now()
	if cred.Usable(now, c.cfg.RefreshSkew) {
		c.logger.Debug("reusing token",
			slog.Duration("remaining", cred.Remaining(now)))
		return cred, nil
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		// A concurrent flight may have refreshed while we waited.
		c.mu.RLock()
		current := c.cred
		c.mu.RUnlock()
		if current.Usable(c.now(), c.cfg.RefreshSkew) {
			return current, nil
		}
		// The flight serves every waiter, so the first caller's
		// cancellation must not fail the rest. Each fetch attempt stays
		// bounded by the fetch timeout.
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return Credential{}, err
	}
	return v.(Credential), nil
}

func (c *Cache) refresh(ctx context.Context) (Credential, error) {
	started := time.Now()
	var cred Credential
	err := c.retry.Do(ctx, func() error {
		fetched, err := c.fetch(ctx)
		if err != nil {
			return err
		}
		cred = fetched
		return nil
	})
	c.observer.RecordEvent(metrics.Duration(metrics.EventTokenRefresh, "translator", started, err))
	if err != nil {
		// Terminal parse failures keep their reason; everything else is
		// an unreachable endpoint.
		return Credential{}, errorsx.Wrap(err, errorsx.ReasonAuthFetch)
	}

	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	now := c.now()
	c.logger.Info("refreshed token",
		slog.String("token", redact.Token(cred.Token)),
		slog.String("region", cred.Region),
		slog.Duration("remaining", cred.Remaining(now)))
	return cred, nil
}

func (c *Cache) fetch(ctx context.Context) (Credential, error) {
	header := http.Header{}
	header.Set("Accept-Language", "zh-Hans")
	header.Set("X-ClientVersion", clientVersion)
	header.Set("X-UserId", userID)
	header.Set("X-HomeGeographicRegion", homeRegion)
	header.Set("X-ClientTraceId", clientTraceID)
	header.Set("X-MT-Signature", signer.Sign(c.cfg.EndpointURL))
	header.Set("User-Agent", userAgent)
	header.Set("Content-Type", "application/json; charset=utf-8")

	// Empty body; the signature carries all request identity.
	resp, err := c.http.Post(ctx, c.cfg.EndpointURL, header, []byte{}, c.cfg.FetchTimeout)
	if err != nil {
		return Credential{}, err
	}
	if !resp.OK() {
		return Credential{}, errorsx.New(errorsx.ReasonAuthFetch, "token endpoint returned status %d", resp.Status)
	}
	return parseCredential(resp.Body)
}

// parseCredential reads the {t, r} payload and pulls the expiry out of
// the token's claims. Failures here indicate a protocol change, not
// transience, so they are terminal.
func parseCredential(body []byte) (Credential, error) {
	var payload struct {
		Token  string `json:"t"`
		Region string `json:"r"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Credential{}, errorsx.Wrap(err, errorsx.ReasonAuthParse)
	}
	if payload.Token == "" || payload.Region == "" {
		return Credential{}, errorsx.New(errorsx.ReasonAuthParse, "token endpoint response missing t/r fields")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(payload.Token, claims); err != nil {
		return Credential{}, errorsx.Wrap(err, errorsx.ReasonAuthParse)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return Credential{}, errorsx.New(errorsx.ReasonAuthParse, "token missing exp claim")
	}

	return Credential{
		Token:     payload.Token,
		Region:    payload.Region,
		ExpiresAt: exp.Time,
	}, nil
}
