package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/harunnryd/koe/pkg/adapters/tts"
	"github.com/harunnryd/koe/pkg/errorsx"
	"github.com/harunnryd/koe/pkg/providers/mock"
)

func newTestServer(t *testing.T, synthCfg mock.Config) (*httptest.Server, *mock.Synthesizer) {
	t.Helper()
	synth := mock.NewSynthesizer(synthCfg)
	catalog := &mock.Catalog{JSON: []byte(`[{"ShortName":"zh-CN-XiaoxiaoNeural"}]`)}
	s := New(Config{
		Defaults: tts.Request{
			VoiceName:    "zh-CN-XiaoxiaoMultilingualNeural",
			Rate:         "0",
			Pitch:        "0",
			OutputFormat: "audio-16khz-32kbitrate-mono-mp3",
			Style:        "general",
		},
	}, synth, catalog, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, synth
}

func get(t *testing.T, rawURL string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("get %s: %v", rawURL, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func TestTTSDefaultRequest(t *testing.T) {
	srv, synth := newTestServer(t, mock.Config{})

	resp, body := get(t, srv.URL+"/tts?text=Hello")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if len(body) == 0 {
		t.Fatalf("expected non-empty audio")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg for default format, got %s", ct)
	}
	reqs := synth.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one synthesis, got %d", len(reqs))
	}
	if reqs[0].VoiceName != "zh-CN-XiaoxiaoMultilingualNeural" || reqs[0].Style != "general" {
		t.Fatalf("defaults not applied: %+v", reqs[0])
	}
}

func TestTTSBlankTextRejected(t *testing.T) {
	srv, synth := newTestServer(t, mock.Config{})

	for _, q := range []string{"", "text=", "text=" + url.QueryEscape("   ")} {
		resp, _ := get(t, srv.URL+"/tts?"+q)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("query %q: expected 400, got %d", q, resp.StatusCode)
		}
	}
	if len(synth.Requests()) != 0 {
		t.Fatalf("blank text must not reach the synthesizer")
	}
}

func TestTTSContentTypes(t *testing.T) {
	srv, _ := newTestServer(t, mock.Config{})

	cases := map[string]string{
		"audio-16khz-32kbitrate-mono-mp3": "audio/mpeg",
		"ogg-24khz-16bit-mono-opus":       "audio/ogg",
		"riff-24khz-16bit-mono-pcm-wav":   "audio/wav",
		"raw-24khz-16bit-mono-pcm":        "application/octet-stream",
	}
	for format, want := range cases {
		resp, _ := get(t, srv.URL+"/tts?text=hi&output_format="+url.QueryEscape(format))
		if got := resp.Header.Get("Content-Type"); got != want {
			t.Fatalf("format %s: expected %s, got %s", format, want, got)
		}
	}
}

func TestTTSQueryOverridesDefaults(t *testing.T) {
	srv, synth := newTestServer(t, mock.Config{})

	get(t, srv.URL+"/tts?text=hi&voice_name=en-US-JennyNeural&rate=-20&style=cheerful")
	reqs := synth.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one synthesis, got %d", len(reqs))
	}
	if reqs[0].VoiceName != "en-US-JennyNeural" || reqs[0].Rate != "-20" || reqs[0].Style != "cheerful" {
		t.Fatalf("overrides not applied: %+v", reqs[0])
	}
}

func TestTTSUpstreamFailures(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errorsx.New(errorsx.ReasonRemote, "status 401"), http.StatusBadGateway},
		{errorsx.New(errorsx.ReasonNetwork, "tls handshake"), http.StatusBadGateway},
		{errorsx.New(errorsx.ReasonAuthFetch, "endpoint down"), http.StatusBadGateway},
		{errorsx.New(errorsx.ReasonAuthParse, "bad token"), http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv, _ := newTestServer(t, mock.Config{Err: tc.err})
		resp, _ := get(t, srv.URL+"/tts?text=hi")
		if resp.StatusCode != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, resp.StatusCode)
		}
	}
}

func TestTTSMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, mock.Config{})
	resp, err := http.Post(srv.URL+"/tts?text=hi", "text/plain", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestVoicesServed(t *testing.T) {
	srv, _ := newTestServer(t, mock.Config{})
	resp, body := get(t, srv.URL+"/voices")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type")
	}
	if string(body) != `[{"ShortName":"zh-CN-XiaoxiaoNeural"}]` {
		t.Fatalf("unexpected voices body: %s", body)
	}
}

func TestVoicesFailure(t *testing.T) {
	synth := mock.NewSynthesizer(mock.Config{})
	catalog := &mock.Catalog{Err: errorsx.New(errorsx.ReasonVoicesFetch, "down")}
	s := New(Config{}, synth, catalog, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/voices")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, mock.Config{})
	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health response: %d %s", resp.StatusCode, body)
	}
}
