package tts

import (
	"context"
	"strings"
)

// Request describes one synthesis call. Empty fields are filled with the
// provider's defaults; Text is validated at the boundary, not here.
type Request struct {
	Text         string
	VoiceName    string
	Rate         string
	Pitch        string
	OutputFormat string
	Style        string
}

// Synthesizer defines the contract for any TTS vendor implementation.
type Synthesizer interface {
	// Name returns the provider name for logging/metrics.
	Name() string
	// Synthesize returns raw audio bytes for the request.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}

// Catalog exposes the vendor's available voice list as raw JSON.
type Catalog interface {
	Voices(ctx context.Context) ([]byte, error)
}

// ContentType derives the downstream content type purely from the output
// format identifier.
func ContentType(outputFormat string) string {
	f := strings.ToLower(outputFormat)
	switch {
	case strings.Contains(f, "mp3"):
		return "audio/mpeg"
	case strings.Contains(f, "ogg"):
		return "audio/ogg"
	case strings.Contains(f, "wav"):
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
