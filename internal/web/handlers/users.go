package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// UsersHandler handles directory record endpoints
type UsersHandler struct {
	repo   *directory.Repository
	logger *zap.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(repo *directory.Repository, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{repo: repo, logger: logger.Named("users")}
}

type createUserRequest struct {
	Name       string               `json:"name"`
	Department string               `json:"department"`
	Face       directory.Descriptor `json:"face"`
}

type listUsersResponse struct {
	Users []directory.UserRecord `json:"users"`
	Count int                    `json:"count"`
}

// List reloads the directory from the store.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.repo.ListAll(r.Context())
	if err != nil {
		h.logger.Warn("list users failed", zap.Error(err))
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, listUsersResponse{Users: users, Count: len(users)})
}

// Search filters the loaded directory by name or department.
func (h *UsersHandler) Search(w http.ResponseWriter, r *http.Request) {
	users := h.repo.Search(r.URL.Query().Get("q"))
	if len(users) > constants.MaxSearchResults {
		users = users[:constants.MaxSearchResults]
	}
	respondJSON(w, http.StatusOK, listUsersResponse{Users: users, Count: len(users)})
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.repo.Create(r.Context(), req.Name, req.Department, req.Face)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	user, err := h.repo.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Update applies a partial update of name and department.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var p directory.Partial
	if err := decodeJSON(w, r, &p); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.repo.Update(r.Context(), id, p); err != nil {
		h.logger.Info("update user rejected", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondDomainError(w, err)
		return
	}
	user, err := h.repo.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// StoreStatus pings the backing store.
func (h *UsersHandler) StoreStatus(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  strings.TrimSpace(err.Error()),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
