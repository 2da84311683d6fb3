package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/voxrelay/internal/audio"
)

// stubNormalizer records its input and returns canned output.
type stubNormalizer struct {
	gotFormat audio.Format
	calls     int
	out       *Normalized
	err       error
}

func (s *stubNormalizer) Normalize(ctx context.Context, data []byte, format audio.Format) (*Normalized, error) {
	s.calls++
	s.gotFormat = format
	if s.err != nil {
		return nil, s.err
	}
	if s.out != nil {
		return s.out, nil
	}
	return &Normalized{Data: data, Format: format}, nil
}

// stubProvider records the request and returns canned output.
type stubProvider struct {
	got   Request
	calls int
	text  string
	err   error
	ctxOK bool
}

func (s *stubProvider) Transcribe(ctx context.Context, req Request) (*Response, error) {
	s.calls++
	s.got = req
	s.ctxOK = ctx.Err() == nil
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: s.text}, nil
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub/model" }

func TestPipeline_Success(t *testing.T) {
	wav := fakeWAV(32)
	norm := &stubNormalizer{out: &Normalized{Data: wav, Format: audio.FormatWAV, Converted: true}}
	prov := &stubProvider{text: "bonjour"}
	p := NewPipeline(norm, prov, zerolog.Nop())

	res, err := p.Run(context.Background(), &Upload{
		Data:     []byte("OggS-opus-bytes"),
		MIMEType: "audio/ogg",
		Filename: "voice.oga",
		Prompt:   "French voice note",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Text != "bonjour" {
		t.Errorf("Text = %q, want bonjour", res.Text)
	}
	if norm.gotFormat != audio.FormatOGG {
		t.Errorf("normalizer format = %q, want ogg", norm.gotFormat)
	}
	if prov.got.Format != audio.FormatWAV {
		t.Errorf("provider format = %q, want wav", prov.got.Format)
	}
	decoded, err := base64.StdEncoding.DecodeString(prov.got.AudioBase64)
	if err != nil || !bytes.Equal(decoded, wav) {
		t.Error("provider did not receive base64 of normalized audio")
	}
	if prov.got.Prompt != "French voice note" {
		t.Errorf("prompt = %q", prov.got.Prompt)
	}
	if p.TranscodesInFlight() != 0 || p.UpstreamInFlight() != 0 {
		t.Error("in-flight counters not released")
	}
}

func TestPipeline_WAVIdentity(t *testing.T) {
	in := fakeWAV(64)
	prov := &stubProvider{text: "ok"}
	p := NewPipeline(NewFFmpegNormalizer(FFmpegOptions{Path: "/nonexistent/ffmpeg", Log: zerolog.Nop()}), prov, zerolog.Nop())

	if _, err := p.Run(context.Background(), &Upload{Data: in, MIMEType: "audio/wav", Filename: "a.wav"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := base64.StdEncoding.EncodeToString(in)
	if prov.got.AudioBase64 != want {
		t.Error("wav upload was modified before reaching the provider")
	}
}

func TestPipeline_EmptyUpload(t *testing.T) {
	norm := &stubNormalizer{}
	prov := &stubProvider{}
	_, err := NewPipeline(norm, prov, zerolog.Nop()).Run(context.Background(), &Upload{})
	if KindOf(err) != KindBadRequest {
		t.Fatalf("kind = %v, want %v", KindOf(err), KindBadRequest)
	}
	if Message(err) != "missing audio file" {
		t.Errorf("message = %q", Message(err))
	}
	if norm.calls != 0 || prov.calls != 0 {
		t.Error("collaborators called for empty upload")
	}
}

func TestPipeline_TranscodeFailureSkipsUpstream(t *testing.T) {
	norm := &stubNormalizer{err: TranscodeFailed("Invalid data found")}
	prov := &stubProvider{}
	_, err := NewPipeline(norm, prov, zerolog.Nop()).Run(context.Background(), &Upload{Data: []byte("x"), Filename: "a.mp3"})
	if KindOf(err) != KindTranscode {
		t.Fatalf("kind = %v, want %v", KindOf(err), KindTranscode)
	}
	if StatusFor(err) != 500 {
		t.Errorf("status = %d, want 500", StatusFor(err))
	}
	if prov.calls != 0 {
		t.Error("provider called after transcode failure")
	}
}

func TestPipeline_UpstreamErrorPropagates(t *testing.T) {
	prov := &stubProvider{err: UpstreamHTTP(502, "bad gateway")}
	_, err := NewPipeline(&stubNormalizer{}, prov, zerolog.Nop()).Run(context.Background(), &Upload{Data: []byte("x")})
	var e *Error
	if !errors.As(err, &e) || e.StatusCode != 502 {
		t.Fatalf("err = %v, want upstream 502", err)
	}
}

func TestPipeline_IgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prov := &stubProvider{text: "done"}
	res, err := NewPipeline(&stubNormalizer{}, prov, zerolog.Nop()).Run(ctx, &Upload{Data: []byte("x")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !prov.ctxOK {
		t.Error("provider saw a cancelled context")
	}
	if res.Text != "done" {
		t.Errorf("Text = %q", res.Text)
	}
}

// funcProvider runs fn for every Transcribe call.
type funcProvider func(ctx context.Context, req Request) (*Response, error)

func (f funcProvider) Transcribe(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }
func (f funcProvider) Name() string                                                   { return "func" }
func (f funcProvider) Model() string                                                  { return "func/model" }

func TestPipeline_InFlightCounters(t *testing.T) {
	t.Run("wav_passthrough_not_counted", func(t *testing.T) {
		var p *Pipeline
		var transcodes, upstream int64
		prov := funcProvider(func(ctx context.Context, req Request) (*Response, error) {
			transcodes, upstream = p.TranscodesInFlight(), p.UpstreamInFlight()
			return &Response{Text: "ok"}, nil
		})
		norm := NewFFmpegNormalizer(FFmpegOptions{Path: "/nonexistent/ffmpeg", Log: zerolog.Nop()})
		p = NewPipeline(norm, prov, zerolog.Nop())

		if _, err := p.Run(context.Background(), &Upload{Data: fakeWAV(8), Filename: "a.wav"}); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if transcodes != 0 {
			t.Errorf("transcodes in flight during passthrough = %d, want 0", transcodes)
		}
		if upstream != 1 {
			t.Errorf("upstream in flight during provider call = %d, want 1", upstream)
		}
		if p.UpstreamInFlight() != 0 {
			t.Errorf("upstream in flight after Run = %d, want 0", p.UpstreamInFlight())
		}
	})

	t.Run("released_after_provider_panic", func(t *testing.T) {
		prov := funcProvider(func(ctx context.Context, req Request) (*Response, error) {
			panic("provider blew up")
		})
		p := NewPipeline(&stubNormalizer{}, prov, zerolog.Nop())

		func() {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			p.Run(context.Background(), &Upload{Data: []byte("x")})
		}()
		if got := p.UpstreamInFlight(); got != 0 {
			t.Errorf("upstream in flight after panic = %d, want 0", got)
		}
	})

	t.Run("normalizer_without_counter", func(t *testing.T) {
		p := NewPipeline(&stubNormalizer{}, &stubProvider{}, zerolog.Nop())
		if got := p.TranscodesInFlight(); got != 0 {
			t.Errorf("TranscodesInFlight = %d, want 0", got)
		}
	})
}

func TestPipeline_NormalizedShapeLoggedAtDebug(t *testing.T) {
	norm := &stubNormalizer{out: &Normalized{Data: fakeWAV(16), Format: audio.FormatWAV, Converted: true}}
	up := &Upload{Data: []byte("ID3"), Filename: "a.mp3"}

	var debug bytes.Buffer
	if _, err := NewPipeline(norm, &stubProvider{text: "x"}, zerolog.New(&debug).Level(zerolog.DebugLevel)).Run(context.Background(), up); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Contains(debug.Bytes(), []byte(`"sample_rate":16000`)) {
		t.Errorf("debug log missing normalized shape:\n%s", debug.String())
	}

	var info bytes.Buffer
	if _, err := NewPipeline(norm, &stubProvider{text: "x"}, zerolog.New(&info).Level(zerolog.InfoLevel)).Run(context.Background(), up); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if bytes.Contains(info.Bytes(), []byte("audio normalized")) {
		t.Error("normalized shape logged above debug level")
	}
}
