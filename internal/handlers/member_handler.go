package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kinship/internal/service"
)

// MemberHandler serves family membership requests
type MemberHandler struct {
	membershipService   *service.MembershipService
	registrationService *service.RegistrationService
	logger              *zap.Logger
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(membershipService *service.MembershipService, registrationService *service.RegistrationService, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{
		membershipService:   membershipService,
		registrationService: registrationService,
		logger:              logger,
	}
}

type joinRequest struct {
	FamilyCode string `json:"familyCode"`
	MemberID   int64  `json:"memberId"`
}

// RequestJoin files a join request for the caller, or for memberId on their behalf
func (h *MemberHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil || req.FamilyCode == "" {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	callerID, _ := GetUserIDFromContext(r.Context())
	memberID := callerID
	if req.MemberID != 0 {
		memberID = req.MemberID
	}

	member, updated, err := h.membershipService.RequestJoinAs(r.Context(), callerID, memberID, req.FamilyCode)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	if updated {
		respondJSON(w, http.StatusOK, "Family join request updated successfully", member)
		return
	}
	respondJSON(w, http.StatusCreated, "Family join request submitted successfully", member)
}

// RegisterAndJoin creates an account that joins the family immediately
func (h *MemberHandler) RegisterAndJoin(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterAndJoinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	callerID, _ := GetUserIDFromContext(r.Context())
	result, err := h.registrationService.RegisterAndJoin(r.Context(), req, callerID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, "User registered and join request submitted successfully", result)
}

// Approve accepts a pending request
func (h *MemberHandler) Approve(w http.ResponseWriter, r *http.Request) {
	memberID, ok := int64Param(r, "memberId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}

	callerID, _ := GetUserIDFromContext(r.Context())
	member, err := h.membershipService.ApproveAs(r.Context(), callerID, memberID, chi.URLParam(r, "familyCode"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family member approved successfully", member)
}

// Reject deletes a membership row; the caller is the rejector
func (h *MemberHandler) Reject(w http.ResponseWriter, r *http.Request) {
	memberID, ok := int64Param(r, "memberId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}

	callerID, _ := GetUserIDFromContext(r.Context())
	name, err := h.membershipService.Reject(r.Context(), memberID, callerID, chi.URLParam(r, "familyCode"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, fmt.Sprintf("Family member %s rejected successfully", name), nil)
}

// Remove deletes a member from a family
func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	memberID, ok := int64Param(r, "memberId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}

	callerID, _ := GetUserIDFromContext(r.Context())
	if err := h.membershipService.RemoveAs(r.Context(), callerID, memberID, chi.URLParam(r, "familyCode")); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family member removed successfully", nil)
}

// ListApproved returns the approved members of a family
func (h *MemberHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	callerID, _ := GetUserIDFromContext(r.Context())
	members, err := h.membershipService.ListApproved(r.Context(), callerID, chi.URLParam(r, "familyCode"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, fmt.Sprintf("%d approved family members found.", len(members)), members)
}

// Stats returns the demographics of a family
func (h *MemberHandler) Stats(w http.ResponseWriter, r *http.Request) {
	callerID, _ := GetUserIDFromContext(r.Context())
	stats, err := h.membershipService.Stats(r.Context(), callerID, chi.URLParam(r, "familyCode"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family stats fetched successfully", stats)
}

// ListPending returns the pending requests of the caller's family
func (h *MemberHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	callerID, _ := GetUserIDFromContext(r.Context())
	members, err := h.membershipService.ListPendingForRequester(r.Context(), callerID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, fmt.Sprintf("%d pending family member request(s) found.", len(members)), members)
}

// Get returns a single member visible to the caller
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	memberID, ok := int64Param(r, "memberId")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}

	callerID, _ := GetUserIDFromContext(r.Context())
	member, err := h.membershipService.GetMember(r.Context(), callerID, memberID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family member fetched successfully", member)
}
