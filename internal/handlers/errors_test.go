package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"kinship/internal/service"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRespondWithErrorWritesStatusAndBody(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondWithError(recorder, zap.NewNop(), 418, "Teapot", "", nil)

	assert.Equal(t, 418, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "Teapot", decodeEnvelope(t, recorder).Message)
}

func TestRespondWithErrorLogsMessage(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	recorder := httptest.NewRecorder()

	respondWithError(recorder, zap.New(core), 500, "Internal server error", "", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Internal server error", entries[0].Message)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
}

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"conflict", service.ErrUserExists, http.StatusBadRequest, service.ErrUserExists.Message},
		{"not found", service.ErrPendingRequestNotFound, http.StatusNotFound, service.ErrPendingRequestNotFound.Message},
		{"denied", service.ErrAccessDenied, http.StatusForbidden, service.ErrAccessDenied.Message},
		{"unauthenticated", service.ErrInvalidCredentials, http.StatusUnauthorized, service.ErrInvalidCredentials.Message},
		{"wrapped", fmt.Errorf("outer: %w", service.ErrMemberNotFound), http.StatusNotFound, service.ErrMemberNotFound.Message},
		{"infrastructure", errors.New("connection reset"), http.StatusInternalServerError, ErrInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)

			respondWithServiceError(rec, req, zap.New(core), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeEnvelope(t, rec).Message)
			if tt.status == http.StatusInternalServerError {
				assert.Equal(t, 1, logs.Len())
				assert.NotContains(t, rec.Body.String(), "connection reset")
			} else {
				assert.Zero(t, logs.Len())
			}
		})
	}
}
