package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// EditHandler drives the single-record edit mode of the admin console
type EditHandler struct {
	repo   *directory.Repository
	logger *zap.Logger
}

// NewEditHandler creates a new edit handler
func NewEditHandler(repo *directory.Repository, logger *zap.Logger) *EditHandler {
	return &EditHandler{repo: repo, logger: logger.Named("edit")}
}

type editDraftRequest struct {
	ID         string  `json:"id"`
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
}

type editResponse struct {
	Editing bool                 `json:"editing"`
	Draft   *directory.EditDraft `json:"draft,omitempty"`
}

// Begin puts the record into edit mode, discarding any other draft.
func (h *EditHandler) Begin(w http.ResponseWriter, r *http.Request) {
	draft, err := h.repo.BeginEdit(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, editResponse{Editing: true, Draft: &draft})
}

// Get returns the current draft.
func (h *EditHandler) Get(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.repo.Editing()
	if !ok {
		respondJSON(w, http.StatusOK, editResponse{})
		return
	}
	respondJSON(w, http.StatusOK, editResponse{Editing: true, Draft: &draft})
}

// Update changes fields of the current draft without persisting them.
func (h *EditHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req editDraftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		if current, ok := h.repo.Editing(); ok {
			req.ID = current.ID
		}
	}

	draft, err := h.repo.SetDraft(req.ID, directory.Partial{Name: req.Name, Department: req.Department})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, editResponse{Editing: true, Draft: &draft})
}

// Cancel discards the current draft.
func (h *EditHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.repo.CancelEdit()
	respondJSON(w, http.StatusOK, editResponse{})
}

// Save persists the draft. On failure the draft is kept so the operator can retry.
func (h *EditHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, err := h.repo.SaveEdit(r.Context())
	if err != nil {
		h.logger.Info("save edit failed", zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
