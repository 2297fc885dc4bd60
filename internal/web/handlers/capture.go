package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/capture"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// CaptureHandler handles capture session endpoints
type CaptureHandler struct {
	controller *capture.Controller
	logger     *zap.Logger
}

// NewCaptureHandler creates a new capture handler
func NewCaptureHandler(controller *capture.Controller, logger *zap.Logger) *CaptureHandler {
	return &CaptureHandler{controller: controller, logger: logger.Named("capture")}
}

type captureStatusResponse struct {
	Sessions []capture.SessionHandle `json:"sessions"`
}

// Trigger starts a capture. The session handle is returned in every case; the
// status code tells a fresh start (202) from an already running capture (200),
// a busy capture process (409) and a failed trigger.
func (h *CaptureHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	kind, err := capture.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	handle, err := h.controller.Trigger(r.Context(), kind)
	switch {
	case err == nil && handle.Result == capture.ResultAlreadyInProgress:
		respondJSON(w, http.StatusOK, handle)
	case err == nil:
		respondJSON(w, http.StatusAccepted, handle)
	case errors.Is(err, directory.ErrConflict):
		respondJSON(w, http.StatusConflict, handle)
	case directory.IsTaxonomy(err):
		respondJSON(w, statusForError(err), handle)
	default:
		respondJSON(w, http.StatusBadGateway, handle)
	}
}

// Status returns the session state of one kind.
func (h *CaptureHandler) Status(w http.ResponseWriter, r *http.Request) {
	kind, err := capture.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.controller.Status(kind))
}

// Events streams session changes of both kinds.
func (h *CaptureHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.controller, h.snapshot())
}

func (h *CaptureHandler) snapshot() captureStatusResponse {
	resp := captureStatusResponse{Sessions: make([]capture.SessionHandle, 0, len(capture.Kinds))}
	for _, k := range capture.Kinds {
		resp.Sessions = append(resp.Sessions, h.controller.Status(k))
	}
	return resp
}
