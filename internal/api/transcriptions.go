package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/voxrelay/internal/transcribe"
)

// Transcriber runs one upload through the transcription pipeline.
type Transcriber interface {
	Run(ctx context.Context, up *transcribe.Upload) (*transcribe.Result, error)
}

// TranscriptionHandler serves the OpenAI-style transcription endpoints.
type TranscriptionHandler struct {
	pipeline       Transcriber
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewTranscriptionHandler creates a new transcription handler.
// maxUploadBytes <= 0 disables the size cap.
func NewTranscriptionHandler(pipeline Transcriber, maxUploadBytes int64, log zerolog.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{
		pipeline:       pipeline,
		maxUploadBytes: maxUploadBytes,
		log:            log.With().Str("handler", "transcriptions").Logger(),
	}
}

// Routes registers both the versioned and unversioned paths.
func (h *TranscriptionHandler) Routes(r chi.Router) {
	r.Post("/v1/audio/transcriptions", h.Transcribe)
	r.Post("/audio/transcriptions", h.Transcribe)
}

// Transcribe handles POST /v1/audio/transcriptions.
// Accepts multipart form uploads with a "file" part and optional "prompt".
func (h *TranscriptionHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	up, err := ReadUpload(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("rejected upload")
		WriteError(w, transcribe.StatusFor(err), transcribe.Message(err))
		return
	}

	res, err := h.pipeline.Run(r.Context(), up)
	if err != nil {
		WriteError(w, transcribe.StatusFor(err), transcribe.Message(err))
		return
	}

	WriteJSON(w, http.StatusOK, res)
}
