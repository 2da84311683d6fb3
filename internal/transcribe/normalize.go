package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/voxrelay/internal/audio"
	"github.com/snarg/voxrelay/internal/metrics"
)

const (
	// TargetSampleRate and TargetChannels describe the normalized waveform.
	TargetSampleRate = 16000
	TargetChannels   = 1

	maxStderrBytes = 500
	scratchPrefix  = "voxrelay-"
)

// LookupFFmpeg reports whether the transcoder binary can be resolved.
// Call once at startup.
func LookupFFmpeg(path string) bool {
	_, err := exec.LookPath(path)
	return err == nil
}

// FFmpegOptions configures an FFmpegNormalizer.
type FFmpegOptions struct {
	Path       string        // binary name or path, default "ffmpeg"
	ScratchDir string        // parent of per-call workspaces, default os.TempDir()
	Timeout    time.Duration // 0 = no limit
	Log        zerolog.Logger
}

// FFmpegNormalizer converts audio to mono 16 kHz PCM WAV by running ffmpeg
// against a scratch copy of the upload. Safe for concurrent use; every call
// gets its own workspace.
type FFmpegNormalizer struct {
	path       string
	scratchDir string
	timeout    time.Duration
	log        zerolog.Logger

	inFlight atomic.Int64
}

// NewFFmpegNormalizer creates a normalizer from opts.
func NewFFmpegNormalizer(opts FFmpegOptions) *FFmpegNormalizer {
	if opts.Path == "" {
		opts.Path = "ffmpeg"
	}
	return &FFmpegNormalizer{
		path:       opts.Path,
		scratchDir: opts.ScratchDir,
		timeout:    opts.Timeout,
		log:        opts.Log,
	}
}

// InFlight returns the number of transcoder runs in progress. WAV
// passthroughs are not counted.
func (n *FFmpegNormalizer) InFlight() int64 { return n.inFlight.Load() }

// Normalize returns WAV input untouched. Anything else is transcoded.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, data []byte, format audio.Format) (*Normalized, error) {
	if format == audio.FormatWAV {
		return &Normalized{Data: data, Format: audio.FormatWAV}, nil
	}

	n.inFlight.Add(1)
	defer n.inFlight.Add(-1)

	start := time.Now()
	out, err := n.transcode(ctx, data, format)
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscodeTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.TranscodeTotal.WithLabelValues("ok").Inc()
	return &Normalized{Data: out, Format: audio.FormatWAV, Converted: true}, nil
}

func (n *FFmpegNormalizer) transcode(ctx context.Context, data []byte, format audio.Format) ([]byte, error) {
	ws, err := newWorkspace(n.scratchDir)
	if err != nil {
		return nil, TranscodeSetupFailed(err)
	}
	defer ws.release(n.log)

	inPath := filepath.Join(ws.dir, "input"+format.Extension())
	outPath := filepath.Join(ws.dir, "output.wav")

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, TranscodeSetupFailed(fmt.Errorf("write input: %w", err))
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, n.path,
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", inPath,
		"-vn",
		"-ac", strconv.Itoa(TargetChannels),
		"-ar", strconv.Itoa(TargetSampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrTail := tail(stderr.String(), maxStderrBytes)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason := "timed out"
			if stderrTail != "" {
				reason += ": " + stderrTail
			}
			n.log.Warn().
				Str("workspace", ws.id).
				Str("format", format.String()).
				Dur("timeout", n.timeout).
				Str("stderr", stderrTail).
				Msg("ffmpeg timed out")
			return nil, TranscodeFailed(reason)
		}

		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, TranscodeSpawnFailed(err)
		}
		reason := stderrTail
		if reason == "" {
			reason = "unknown"
		}
		n.log.Warn().
			Str("workspace", ws.id).
			Str("format", format.String()).
			Int("exit_code", exitErr.ExitCode()).
			Str("stderr", reason).
			Msg("ffmpeg exited with error")
		return nil, TranscodeFailed(reason)
	}

	out, err := os.ReadFile(outPath)
	if err != nil || len(out) == 0 {
		return nil, TranscodeFailed("transcoder produced no output")
	}
	return out, nil
}

// tail trims s and keeps at most the last limit bytes.
func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) > limit {
		s = strings.TrimSpace(s[len(s)-limit:])
	}
	return s
}

// workspace is a scratch directory owned by exactly one transcode call.
type workspace struct {
	id  string
	dir string
}

// newWorkspace creates a uniquely named directory under parent. os.Mkdir
// fails rather than reusing an existing directory.
func newWorkspace(parent string) (*workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	id := uuid.NewString()
	dir := filepath.Join(parent, scratchPrefix+id)
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &workspace{id: id, dir: dir}, nil
}

// release removes the workspace. Failure is logged, not returned.
func (ws *workspace) release(log zerolog.Logger) {
	if err := os.RemoveAll(ws.dir); err != nil {
		log.Warn().Err(err).Str("workspace", ws.id).Msg("failed to remove scratch dir")
	}
}
