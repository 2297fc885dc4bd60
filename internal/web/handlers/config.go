package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	StoreBackend      string   `json:"store_backend"`
	AvailableBackends []string `json:"available_backends"`
	CaptureMode       string   `json:"capture_mode"`
	GuardSeconds      float64  `json:"guard_seconds"`
	RequireToken      bool     `json:"require_token"`
	EnrollCallbackURL string   `json:"enroll_callback_url"`
	VerifyCallbackURL string   `json:"verify_callback_url"`
}

// Get returns the non-secret part of the configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	response := ConfigResponse{
		StoreBackend:      h.config.Store.Backend,
		AvailableBackends: database.Backends(),
		CaptureMode:       h.config.Capture.Mode,
		GuardSeconds:      h.config.Capture.GuardDuration.Seconds(),
		RequireToken:      h.config.Capture.RequireToken,
		EnrollCallbackURL: h.config.Web.EnrollCallbackURL(),
		VerifyCallbackURL: h.config.Web.VerifyCallbackURL(),
	}

	respondJSON(w, http.StatusOK, response)
}
