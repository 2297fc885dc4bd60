package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kozaktomas/face-registry/internal/capture"
	"github.com/kozaktomas/face-registry/internal/correlator"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// CallbackState is what a result redirect resolved to.
type CallbackState string

const (
	CallbackEmpty   CallbackState = "empty"   // page load without a result payload
	CallbackPrefill CallbackState = "prefill" // enrollment geometry ready for the form
	CallbackOutcome CallbackState = "outcome" // verification outcome ready for display
	CallbackError   CallbackState = "error"   // payload could not be decoded and was discarded
	CallbackStale   CallbackState = "stale"   // payload belongs to a superseded session and was discarded
)

// CallbackHandler receives capture results delivered by redirect and the enrollment form.
type CallbackHandler struct {
	controller *capture.Controller
	repo       *directory.Repository
	logger     *zap.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(controller *capture.Controller, repo *directory.Repository, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{controller: controller, repo: repo, logger: logger.Named("callback")}
}

type signupResponse struct {
	State    CallbackState       `json:"state"`
	Session  string              `json:"session,omitempty"`
	Geometry *directory.Geometry `json:"geometry,omitempty"`
	Message  string              `json:"message,omitempty"`
}

type loginResponse struct {
	State   CallbackState                   `json:"state"`
	Session string                          `json:"session,omitempty"`
	Outcome *correlator.VerificationOutcome `json:"outcome,omitempty"`
	Message string                          `json:"message,omitempty"`
}

type enrollRequest struct {
	Name        string          `json:"name"`
	Department  string          `json:"department"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Signup handles the enrollment redirect. Decoded geometry is returned for the
// registration form; a malformed payload is discarded and reported as an error state.
// The response is always 200 so the page can render every state.
func (h *CallbackHandler) Signup(w http.ResponseWriter, r *http.Request) {
	cb := correlator.FromQuery(r.URL.Query())
	if !cb.HasEnrollment() {
		respondJSON(w, http.StatusOK, signupResponse{State: CallbackEmpty})
		return
	}

	if err := h.controller.Accept(capture.KindEnroll, cb.Session); err != nil {
		h.logger.Warn("enrollment result discarded", zap.String("session", sanitizeForLog(cb.Session)), zap.Error(err))
		respondJSON(w, http.StatusOK, signupResponse{State: CallbackStale, Session: cb.Session, Message: err.Error()})
		return
	}

	g, err := cb.Enrollment()
	if err != nil {
		h.logger.Info("enrollment payload rejected", zap.Error(err))
		respondJSON(w, http.StatusOK, signupResponse{State: CallbackError, Session: cb.Session, Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, signupResponse{State: CallbackPrefill, Session: cb.Session, Geometry: &g})
}

// Login handles the verification redirect. Every payload resolves to a display-safe
// outcome; nothing here is an HTTP error.
func (h *CallbackHandler) Login(w http.ResponseWriter, r *http.Request) {
	cb := correlator.FromQuery(r.URL.Query())
	if !cb.HasVerification() {
		respondJSON(w, http.StatusOK, loginResponse{State: CallbackEmpty})
		return
	}

	if err := h.controller.Accept(capture.KindVerify, cb.Session); err != nil {
		h.logger.Warn("verification result discarded", zap.String("session", sanitizeForLog(cb.Session)), zap.Error(err))
		respondJSON(w, http.StatusOK, loginResponse{State: CallbackStale, Session: cb.Session, Message: err.Error()})
		return
	}

	outcome, _ := cb.Verification()
	state := CallbackOutcome
	if outcome.Status == correlator.StatusError {
		state = CallbackError
	}
	h.logger.Info("verification result",
		zap.String("status", string(outcome.Status)),
		zap.Bool("matched", outcome.MatchedUser != nil))
	respondJSON(w, http.StatusOK, loginResponse{State: state, Session: cb.Session, Outcome: &outcome, Message: outcome.Message})
}

// Enroll persists the registration form. The coordinates may be the geometry object
// or the JSON text of it, as carried on the redirect.
func (h *CallbackHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload := bytes.TrimSpace(req.Coordinates)
	if len(payload) > 0 && payload[0] == '"' {
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload = []byte(text)
	}

	g, err := correlator.DecodeEnrollmentPayload(payload)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	id, err := h.repo.Create(r.Context(), req.Name, req.Department, directory.GeometryDescriptor(g))
	if err != nil {
		if !errors.Is(err, directory.ErrValidation) {
			h.logger.Warn("enrollment not saved", zap.Error(err))
		}
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id, "message": "Data saved"})
}
