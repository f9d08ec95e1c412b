package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-identity-sync/internal/application/totp"
	"github.com/go-identity-sync/internal/pkg/validate"
	"github.com/go-identity-sync/internal/transport/http/middleware"
)

type confirmTOTPRequest struct {
	Secret string `json:"secret" validate:"required"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

type disableTOTPRequest struct {
	Password string `json:"password" validate:"required"`
	Code     string `json:"code" validate:"required"`
}

// TOTPHandler exposes the second-factor enrollment state machine.
type TOTPHandler struct {
	totpSvc totp.Service
}

func NewTOTPHandler(totpSvc totp.Service) *TOTPHandler {
	return &TOTPHandler{totpSvc: totpSvc}
}

// Enroll handles POST /v1/totp/enroll.
func (h *TOTPHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	secret, uri, err := h.totpSvc.StartEnrollment(r.Context(), identity.ID, identity.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EnrollmentEnvelope{Secret: secret, ProvisioningURI: uri})
}

// Confirm handles POST /v1/totp/confirm.
func (h *TOTPHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req confirmTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	codes, err := h.totpSvc.ConfirmEnrollment(r.Context(), identity.ID, req.Secret, req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BackupCodesEnvelope{
		BackupCodes: codes,
		Message:     "store these backup codes now; they will not be shown again",
	})
}

// Disable handles POST /v1/totp/disable.
func (h *TOTPHandler) Disable(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req disableTOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.totpSvc.Disable(r.Context(), identity.ID, req.Password, req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "two-factor disabled"})
}
