package respond

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONWritesSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "p-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "p-1", body["data"].(map[string]any)["id"])
	assert.NotContains(t, body, "error")
}

func TestFieldErrorWritesFailureEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	FieldError(rec, http.StatusBadRequest, CodeValidation, "reason", "reason is required")

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, CodeValidation, env.Error.Code)
	assert.Equal(t, "reason", env.Error.Field)
	assert.Nil(t, env.Data)
}
