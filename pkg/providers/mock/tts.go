// Package mock provides deterministic in-memory implementations of the
// vendor contracts, for tests and dry runs without upstream access.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/harunnryd/koe/pkg/adapters/tts"
)

type Config struct {
	// Audio is returned verbatim; when empty a marker payload derived
	// from the request is produced instead.
	Audio []byte
	// Err, when set, fails every call.
	Err error
}

type Synthesizer struct {
	cfg Config

	mu       sync.Mutex
	requests []tts.Request
}

func NewSynthesizer(cfg Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.cfg.Err != nil {
		return nil, s.cfg.Err
	}
	if len(s.cfg.Audio) > 0 {
		return s.cfg.Audio, nil
	}
	return []byte(fmt.Sprintf("audio(%s,%s)", req.VoiceName, req.Text)), nil
}

// Requests returns every request seen so far.
func (s *Synthesizer) Requests() []tts.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tts.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Catalog serves a static voice list.
type Catalog struct {
	JSON []byte
	Err  error
}

func (c *Catalog) Voices(ctx context.Context) ([]byte, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if c.JSON == nil {
		return []byte(`[]`), nil
	}
	return c.JSON, nil
}

var (
	_ tts.Synthesizer = (*Synthesizer)(nil)
	_ tts.Catalog     = (*Catalog)(nil)
)
