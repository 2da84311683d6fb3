package transcribe

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voxrelay/internal/audio"
	"github.com/snarg/voxrelay/internal/metrics"
)

// Upload is one caller-supplied audio clip. MIMEType and Filename are
// untrusted hints; Prompt is empty unless the caller overrode it.
type Upload struct {
	Data     []byte
	MIMEType string
	Filename string
	Prompt   string
}

// Result is the transcript returned to the caller.
type Result struct {
	Text string `json:"text"`
}

// Stage is a step of a single pipeline run, used in logs.
type Stage int

const (
	StageReceived Stage = iota
	StageParsed
	StageFormatDetected
	StageTranscoded
	StagePassthrough
	StageUpstreamCalled
	StageCompleted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageParsed:
		return "parsed"
	case StageFormatDetected:
		return "format_detected"
	case StageTranscoded:
		return "transcoded"
	case StagePassthrough:
		return "passthrough"
	case StageUpstreamCalled:
		return "upstream_called"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pipeline runs detect → normalize → upstream for each upload. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	normalizer Normalizer
	provider   Provider
	log        zerolog.Logger

	upstream atomic.Int64
}

// NewPipeline creates a pipeline from its two collaborators.
func NewPipeline(normalizer Normalizer, provider Provider, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		provider:   provider,
		log:        log,
	}
}

// Model returns the upstream model identifier.
func (p *Pipeline) Model() string { return p.provider.Model() }

// TranscodesInFlight returns the number of transcoder runs in progress, or 0
// if the normalizer does not count them.
func (p *Pipeline) TranscodesInFlight() int64 {
	if c, ok := p.normalizer.(interface{ InFlight() int64 }); ok {
		return c.InFlight()
	}
	return 0
}

// UpstreamInFlight returns the number of provider calls in progress.
func (p *Pipeline) UpstreamInFlight() int64 { return p.upstream.Load() }

// Run transcribes up. Errors are *Error values classified by Kind.
//
// Work is detached from ctx cancellation: once started, a transcode or
// upstream call runs to completion even if the caller goes away.
func (p *Pipeline) Run(ctx context.Context, up *Upload) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	log := p.log.With().Int("bytes", len(up.Data)).Logger()

	res, stage, err := p.run(ctx, log, up)
	if err != nil {
		kind := KindOf(err)
		metrics.TranscriptionsTotal.WithLabelValues(kind.String()).Inc()
		log.Warn().Err(err).
			Str("stage", stage.String()).
			Str("kind", kind.String()).
			Msg("transcription failed")
		return nil, err
	}

	metrics.TranscriptionsTotal.WithLabelValues("ok").Inc()
	log.Info().
		Int("chars", len(res.Text)).
		Dur("duration_ms", time.Since(start)).
		Msg("transcription complete")
	return res, nil
}

// run returns the last stage reached alongside any error.
func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, up *Upload) (*Result, Stage, error) {
	if len(up.Data) == 0 {
		return nil, StageParsed, BadRequest("missing audio file")
	}

	format := audio.Detect(up.MIMEType, up.Filename)
	log.Debug().
		Str("mime", up.MIMEType).
		Str("filename", up.Filename).
		Str("format", format.String()).
		Msg("format detected")

	norm, err := p.normalizer.Normalize(ctx, up.Data, format)
	if err != nil {
		return nil, StageFormatDetected, err
	}

	stage := StagePassthrough
	if norm.Converted {
		stage = StageTranscoded
		if ev := log.Debug(); ev.Enabled() {
			ev = ev.Int("out_bytes", len(norm.Data))
			if info, err := audio.InspectWAV(norm.Data); err == nil {
				ev = ev.Uint16("channels", info.Channels).Uint32("sample_rate", info.SampleRate)
			}
			ev.Msg("audio normalized")
		}
	}

	resp, err := p.transcribe(ctx, Request{
		AudioBase64: base64.StdEncoding.EncodeToString(norm.Data),
		Format:      norm.Format,
		Prompt:      up.Prompt,
	})
	if err != nil {
		return nil, stage, err
	}

	return &Result{Text: resp.Text}, StageCompleted, nil
}

func (p *Pipeline) transcribe(ctx context.Context, req Request) (*Response, error) {
	p.upstream.Add(1)
	defer p.upstream.Add(-1)
	return p.provider.Transcribe(ctx, req)
}
