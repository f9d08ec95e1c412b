package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-identity-sync/internal/application/otp"
	"github.com/go-identity-sync/internal/application/reconcile"
	"github.com/go-identity-sync/internal/domain"
	"github.com/go-identity-sync/internal/pkg/validate"
	"github.com/go-identity-sync/internal/transport/http/middleware"
)

type issueOTPRequest struct {
	Method      string `json:"method" validate:"required,oneof=email sms"`
	PhoneNumber string `json:"phone_number"`
	DisplayName string `json:"display_name"`
}

type verifyOTPRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// OTPHandler exposes code issuance and verification, including the
// registration flow where a successful verify also confirms the email with
// the provider.
type OTPHandler struct {
	otpSvc     otp.Service
	reconciler reconcile.Service
}

func NewOTPHandler(otpSvc otp.Service, reconciler reconcile.Service) *OTPHandler {
	return &OTPHandler{otpSvc: otpSvc, reconciler: reconciler}
}

// Issue handles POST /v1/otp.
func (h *OTPHandler) Issue(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req issueOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.otpSvc.Issue(r.Context(), otp.IssueRequest{
		UserID:      identity.ID,
		Email:       identity.Email,
		Phone:       req.PhoneNumber,
		Method:      req.Method,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code sent"})
}

// Verify handles POST /v1/otp/verify.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.otpSvc.Verify(r.Context(), identity.ID, req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "code verified"})
}

type registerOTPRequest struct {
	issueOTPRequest
	domain.RegistrationExtras
}

// Register handles POST /v1/register/otp: provisions the local user from the
// verified identity (with any extras) and issues the registration code.
func (h *OTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req registerOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req.issueOTPRequest); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.reconciler.Reconcile(r.Context(), identity, &req.RegistrationExtras)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = u.FullName
	}
	err = h.otpSvc.Issue(r.Context(), otp.IssueRequest{
		UserID:      u.UserID,
		Email:       u.Email,
		Phone:       req.issueOTPRequest.PhoneNumber,
		Method:      req.Method,
		DisplayName: displayName,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{User: u, Message: "code sent"})
}

// RegisterVerify handles POST /v1/register/verify: consumes the registration
// code and confirms the email with the provider and locally.
func (h *OTPHandler) RegisterVerify(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no verified identity")
		return
	}
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.otpSvc.Verify(r.Context(), identity.ID, req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.reconciler.MarkEmailVerified(r.Context(), identity.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "registration verified"})
}
