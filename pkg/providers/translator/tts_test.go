package translator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/auth"
	"github.com/harunnryd/koe/pkg/errorsx"
	"github.com/harunnryd/koe/pkg/metrics"
	"github.com/harunnryd/koe/pkg/resilience"
	"github.com/harunnryd/koe/pkg/session"
)

type stubCreds struct {
	cred auth.Credential
	err  error
}

func (s *stubCreds) Credential(ctx context.Context) (auth.Credential, error) {
	return s.cred, s.err
}

type postCall struct {
	url    string
	header http.Header
	body   []byte
	opts   session.CallOptions
}

type stubPoster struct {
	calls    int32
	failFor  int32
	lastCall postCall
	resp     *session.Response
}

func (s *stubPoster) Do(ctx context.Context, method, url string, header http.Header, body []byte, timeout time.Duration, opts session.CallOptions) (*session.Response, error) {
	n := atomic.AddInt32(&s.calls, 1)
	s.lastCall = postCall{url: url, header: header, body: body, opts: opts}
	if n <= s.failFor {
		return nil, errors.New("connection reset by peer")
	}
	return s.resp, nil
}

func goodCreds() *stubCreds {
	return &stubCreds{cred: auth.Credential{
		Token:     "bearer-token",
		Region:    "eastus",
		ExpiresAt: time.Now().Add(time.Hour),
	}}
}

func fastClient(cfg Config, creds credentialSource, post poster) *Client {
	c := New(cfg, creds, post, nil, nil)
	c.retry.InitialBackoff = time.Millisecond
	c.retry.MaxBackoff = time.Millisecond
	return c
}

func TestSynthesizeAppliesDefaultsAndHeaders(t *testing.T) {
	post := &stubPoster{resp: &session.Response{Status: 200, Body: []byte("mp3-bytes")}}
	c := fastClient(Config{}, goodCreds(), post)

	audio, err := c.Synthesize(context.Background(), tts.Request{Text: "Hello"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("unexpected audio: %q", audio)
	}
	if !strings.Contains(post.lastCall.url, "https://eastus.tts.speech.microsoft.com") {
		t.Fatalf("region not interpolated: %s", post.lastCall.url)
	}
	if got := post.lastCall.header.Get("Authorization"); got != "bearer-token" {
		t.Fatalf("authorization header: %s", got)
	}
	if got := post.lastCall.header.Get("X-Microsoft-OutputFormat"); got != DefaultOutputFormat {
		t.Fatalf("output format header: %s", got)
	}
	if got := post.lastCall.header.Get("Content-Type"); got != "application/ssml+xml" {
		t.Fatalf("content type header: %s", got)
	}
	body := string(post.lastCall.body)
	if !strings.Contains(body, DefaultVoiceName) || !strings.Contains(body, "Hello") {
		t.Fatalf("defaults missing from ssml: %s", body)
	}
}

func TestSynthesizeStatusRejectionNotRetried(t *testing.T) {
	post := &stubPoster{resp: &session.Response{Status: 401, Body: []byte("denied")}}
	c := fastClient(Config{}, goodCreds(), post)

	_, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonRemote) {
		t.Fatalf("expected remote_status reason, got %v", err)
	}
	if got := atomic.LoadInt32(&post.calls); got != 1 {
		t.Fatalf("401 must surface with zero retries, got %d calls", got)
	}
}

func TestSynthesizeRetriesNetworkFailures(t *testing.T) {
	post := &stubPoster{failFor: 2, resp: &session.Response{Status: 200, Body: []byte("ok")}}
	c := fastClient(Config{}, goodCreds(), post)

	audio, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "ok" {
		t.Fatalf("unexpected audio: %q", audio)
	}
	if got := atomic.LoadInt32(&post.calls); got != 3 {
		t.Fatalf("expected 2 failures + 1 success, got %d calls", got)
	}
}

func TestSynthesizePersistentNetworkFailure(t *testing.T) {
	post := &stubPoster{failFor: 100}
	c := fastClient(Config{}, goodCreds(), post)

	_, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonNetwork) {
		t.Fatalf("expected network reason, got %v", err)
	}
	if got := atomic.LoadInt32(&post.calls); got != 3 {
		t.Fatalf("expected retry budget of 3, got %d calls", got)
	}
}

func TestSynthesizePropagatesAuthFailure(t *testing.T) {
	creds := &stubCreds{err: errorsx.New(errorsx.ReasonAuthFetch, "endpoint down")}
	post := &stubPoster{}
	c := fastClient(Config{}, creds, post)

	_, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonAuthFetch) {
		t.Fatalf("expected auth_fetch reason, got %v", err)
	}
	if atomic.LoadInt32(&post.calls) != 0 {
		t.Fatalf("synthesis must not be attempted without a credential")
	}
}

func TestSynthesizeCircuitBreakerOpensOnRateLimit(t *testing.T) {
	post := &stubPoster{resp: &session.Response{Status: 429}}
	breaker := resilience.NewCircuitBreaker(1, time.Minute)
	c := fastClient(Config{Breaker: breaker}, goodCreds(), post)

	_, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if !errorsx.HasReason(err, errorsx.ReasonRemote) {
		t.Fatalf("expected remote_status reason, got %v", err)
	}
	if !resilience.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	before := atomic.LoadInt32(&post.calls)
	_, err = c.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if err == nil {
		t.Fatalf("expected circuit-open rejection")
	}
	if atomic.LoadInt32(&post.calls) != before {
		t.Fatalf("open breaker must reject without a network call")
	}
}

func TestSynthesizeProxyOverrideForwarded(t *testing.T) {
	post := &stubPoster{resp: &session.Response{Status: 200, Body: []byte("ok")}}
	c := fastClient(Config{ProxyURL: "http://proxy.internal:3128"}, goodCreds(), post)

	if _, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if post.lastCall.opts.ProxyURL != "http://proxy.internal:3128" {
		t.Fatalf("per-call proxy not forwarded: %+v", post.lastCall.opts)
	}
}

func TestSynthesizeRecordsMetrics(t *testing.T) {
	post := &stubPoster{resp: &session.Response{Status: 200, Body: []byte("ok")}}
	mem := metrics.NewMemoryObserver()
	c := New(Config{}, goodCreds(), post, nil, mem)

	if _, err := c.Synthesize(context.Background(), tts.Request{Text: "hi"}); err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	events := mem.Events()
	if len(events) != 1 || events[0].Name != metrics.EventSynthesize {
		t.Fatalf("expected one synthesize event, got %+v", events)
	}
	if events[0].Tags[metrics.TagOutcome] != "ok" {
		t.Fatalf("expected ok outcome")
	}
}
