package transcribe

import (
	"context"

	"github.com/snarg/voxrelay/internal/audio"
)

// DefaultPrompt is the instruction sent alongside the audio when the caller
// does not supply one.
const DefaultPrompt = "Transcribe this audio verbatim. Preserve punctuation. Do not add commentary. Return only the transcript."

// Provider is the interface for upstream speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (*Response, error)
	Name() string
	Model() string // model identifier for logs and health
}

// Request is a single upstream transcription call.
type Request struct {
	AudioBase64 string
	Format      audio.Format
	Prompt      string
}

// Response is the transcript extracted from the provider's reply.
type Response struct {
	Text  string
	Model string // model reported by the provider, if any
}

// Normalizer converts arbitrary uploaded audio into a format the provider
// accepts. Implementations must return WAV input unchanged.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte, format audio.Format) (*Normalized, error)
}

// Normalized is the output of a Normalizer.
type Normalized struct {
	Data      []byte
	Format    audio.Format
	Converted bool // false when the input was passed through
}
