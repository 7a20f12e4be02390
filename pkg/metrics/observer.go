package metrics

import "time"

// Event names recorded by the synthesis client and token cache.
const (
	EventSynthesize   = "tts.synthesize"
	EventTokenRefresh = "token.refresh"
	EventVoicesFetch  = "voices.fetch"
)

// Tag keys shared by all events.
const (
	TagProvider = "provider"
	TagOutcome  = "outcome"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Duration builds a latency event with outcome derived from err.
func Duration(name, provider string, started time.Time, err error) MetricsEvent {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	return MetricsEvent{
		Name:  name,
		Time:  started,
		Value: float64(time.Since(started).Milliseconds()),
		Tags:  map[string]string{TagProvider: provider, TagOutcome: outcome},
	}
}
