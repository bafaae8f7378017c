package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"kinship/internal/service"
)

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Error(logMsg, zap.Int("status", status), zap.Error(err))
	}

	respondJSON(w, status, userMsg, nil)
}

// statusFor maps a service error kind to its HTTP status. ok is false for
// errors that carry no kind.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, service.ErrValidationConflict):
		return http.StatusBadRequest, true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, true
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, true
	default:
		return http.StatusInternalServerError, false
	}
}

// respondWithServiceError writes the client-safe message of a service error,
// or a generic 500 with the cause logged
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, ok := statusFor(err)
	var svcErr *service.Error
	if ok && errors.As(err, &svcErr) {
		respondJSON(w, status, svcErr.Message, nil)
		return
	}
	respondWithError(w, logger.With(zap.String("request_id", RequestIDFromContext(r.Context()))),
		http.StatusInternalServerError, ErrInternalServerError, r.Method+" "+r.URL.Path+" failed", err)
}
