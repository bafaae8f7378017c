package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"kinship/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register starts a sign-up and emails an OTP
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, "Registration successful. Please verify the OTP sent to your email.", user)
}

// VerifyOTP activates an account and returns an access token
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	result, err := h.authService.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Account verified successfully", result)
}

// ResendOTP sends a fresh OTP
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	if err := h.authService.ResendOTP(r.Context(), req.Email); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "OTP resent successfully", nil)
}

// Login checks credentials and returns an access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrInvalidRequestBody, nil)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "Login successful", result)
}

// Me returns the authenticated account
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	user, err := h.authService.User(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, "User fetched successfully", user)
}
