package api

import (
	"net/http"

	"github.com/snarg/voxrelay/internal/config"
)

// HealthResponse reports upstream configuration without exposing the key.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Model   string `json:"model"`
	BaseURL string `json:"baseUrl"`
	HasKey  bool   `json:"hasKey"`
	FFmpeg  bool   `json:"ffmpeg"`
}

type HealthHandler struct {
	resp HealthResponse
}

// NewHealthHandler builds the static health payload. ffmpegFound is checked
// once at startup.
func NewHealthHandler(cfg *config.Config, ffmpegFound bool) *HealthHandler {
	return &HealthHandler{
		resp: HealthResponse{
			OK:      true,
			Model:   cfg.UpstreamModel,
			BaseURL: cfg.UpstreamBaseURL,
			HasKey:  cfg.HasAPIKey(),
			FFmpeg:  ffmpegFound,
		},
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.resp)
}
