package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"kinship/internal/service"
)

// FamilyHandler serves the family registry
type FamilyHandler struct {
	familyService *service.FamilyService
	logger        *zap.Logger
}

// NewFamilyHandler creates a new family handler
func NewFamilyHandler(familyService *service.FamilyService, logger *zap.Logger) *FamilyHandler {
	return &FamilyHandler{familyService: familyService, logger: logger}
}

// Create registers a family owned by the caller
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.FamilyInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	userID, _ := GetUserIDFromContext(r.Context())
	family, err := h.familyService.CreateFamily(r.Context(), userID, in)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Family created successfully", family)
}

// List returns every family
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyService.ListAll(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Families fetched successfully", families)
}

// Search matches active families by name or code
func (h *FamilyHandler) Search(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyService.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Families fetched successfully", families)
}

// GetByCode returns a single family
func (h *FamilyHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	family, err := h.familyService.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family fetched successfully", family)
}

// Update edits a family the caller manages
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}
	var in service.FamilyInput
	if err := decodeJSON(w, r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	userID, _ := GetUserIDFromContext(r.Context())
	family, err := h.familyService.UpdateFamily(r.Context(), userID, id, in)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family updated successfully", family)
}

// Delete removes a family the caller manages
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, ErrInvalidID, nil)
		return
	}

	userID, _ := GetUserIDFromContext(r.Context())
	if err := h.familyService.DeleteFamily(r.Context(), userID, id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Family deleted successfully", nil)
}
