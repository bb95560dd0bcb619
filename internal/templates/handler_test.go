package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	} `json:"error"`
}

func call(t *testing.T, fn http.HandlerFunc, method, id string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/templates", &buf)
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	w := httptest.NewRecorder()
	fn(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestTemplateHandlersRoundTrip(t *testing.T) {
	svc, def := newTestService(t)
	h := NewHandler(svc, nil)

	w, env := call(t, h.CreateTemplate, http.MethodPost, "", map[string]any{
		"title": "Reminder", "content": "{{.Name}} {{.ReservationTime}}", "messageType": "SMS",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created Template
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, def.ID, created.CategoryID)

	w, env = call(t, h.PreviewTemplate, http.MethodPost, created.ID, map[string]any{"patientId": "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	var p Preview
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "Kim Minji 14:30", p.Content)

	w, env = call(t, h.PreviewTemplate, http.MethodPost, created.ID, map[string]any{"patientId": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	w, _ = call(t, h.DeleteTemplate, http.MethodDelete, created.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, env = call(t, h.GetTemplate, http.MethodGet, created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
}

func TestCreateTemplateHandlerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHandler(svc, nil)

	w, env := call(t, h.CreateTemplate, http.MethodPost, "", map[string]any{
		"title": "Promo", "content": "photo", "messageType": "MMS",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Equal(t, "imageRef", env.Error.Field)
}

func TestCategoryHandlers(t *testing.T) {
	svc, def := newTestService(t)
	h := NewHandler(svc, nil)

	w, env := call(t, h.CreateCategory, http.MethodPost, "", map[string]any{"name": "recall", "displayName": "Recall", "color": "#112233"})
	require.Equal(t, http.StatusCreated, w.Code)
	var c Category
	require.NoError(t, json.Unmarshal(env.Data, &c))

	w, env = call(t, h.CreateCategory, http.MethodPost, "", map[string]any{"name": "recall", "displayName": "Again", "color": "#112233"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "name", env.Error.Field)

	w, env = call(t, h.DeleteCategory, http.MethodDelete, def.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", env.Error.Code)

	w, env = call(t, h.DeleteCategory, http.MethodDelete, c.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res DeleteResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, def.ID, res.MovedTo)

	w, env = call(t, h.ListCategories, http.MethodGet, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []Category
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}
