package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-identity-sync/internal/application/reconcile"
	"github.com/go-identity-sync/internal/domain"
	"github.com/go-identity-sync/internal/transport/http/middleware"
)

// SessionHandler reconciles a verified provider session into a local user.
type SessionHandler struct {
	reconciler reconcile.Service
}

func NewSessionHandler(reconciler reconcile.Service) *SessionHandler {
	return &SessionHandler{reconciler: reconciler}
}

// Reconcile handles POST /v1/sessions. The body may carry registration
// extras for first-time provisioning; it is optional and ignored for
// already-known identities.
func (h *SessionHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}

	var extras *domain.RegistrationExtras
	if r.ContentLength > 0 {
		extras = &domain.RegistrationExtras{}
		if err := json.NewDecoder(r.Body).Decode(extras); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	u, err := h.reconciler.Reconcile(r.Context(), identity, extras)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u})
}
