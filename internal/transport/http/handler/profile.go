package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-identity-sync/internal/application/profile"
	"github.com/go-identity-sync/internal/domain"
	"github.com/go-identity-sync/internal/transport/http/middleware"
)

// ProfileHandler applies partial profile updates for the verified identity.
type ProfileHandler struct {
	profileSvc profile.Service
}

func NewProfileHandler(profileSvc profile.Service) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc}
}

// Update handles PUT /v1/profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req domain.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.profileSvc.Update(r.Context(), identity.ID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}
