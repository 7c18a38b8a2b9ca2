package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	plain := NewNotFoundError("visitor not found")
	assert.Equal(t, "not_found: visitor not found", plain.Error())

	cause := stderrors.New("dial tcp: refused")
	wrapped := NewUnavailableError("store offline", cause)
	assert.Equal(t, "unavailable: store offline (dial tcp: refused)", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, cause))
	assert.Equal(t, http.StatusServiceUnavailable, wrapped.StatusCode)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteJSON(rec, NewRateLimitError("slow down"), "req-1")
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, ErrorTypeRateLimit, body.Error.Type)
	assert.Equal(t, "slow down", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.RequestID)
	assert.NotEmpty(t, body.Error.Timestamp)
}
