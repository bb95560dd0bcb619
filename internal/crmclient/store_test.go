package crmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// fakeAPI serves a fixed patient list and answers deletes with deleteStatus.
type fakeAPI struct {
	deleteStatus atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/patients":
		items := []map[string]any{{"id": "p1", "name": "A"}, {"id": "p2", "name": "B"}, {"id": "p3", "name": "C"}}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"items": items, "total": 3, "limit": 20, "offset": 0},
		})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/patients/"):
		status := int(f.deleteStatus.Load())
		w.WriteHeader(status)
		switch status {
		case http.StatusOK:
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]string{"id": "p2"}})
		case http.StatusNotFound:
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]string{"code": "not_found", "message": "patient not found"}})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]string{"code": "internal_error", "message": "internal server error"}})
		}
	case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/status"):
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]string{"code": "not_found", "message": "patient not found"}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeStore(t *testing.T, deleteStatus int) *Store {
	t.Helper()
	api := &fakeAPI{}
	api.deleteStatus.Store(int32(deleteStatus))
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	s := NewStore(New(srv.URL, Options{Timeout: 5 * time.Second, Logger: logging.New("error")}))
	require.NoError(t, s.RefreshPatients(context.Background(), PatientQuery{}))
	require.Len(t, s.Patients(), 3)
	return s
}

func ids(list []*patients.Patient) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}

func TestStoreDeleteCommits(t *testing.T) {
	s := newFakeStore(t, http.StatusOK)

	op := s.DeletePatient(context.Background(), "p2")
	assert.Equal(t, OpCommitted, op.State)
	assert.NoError(t, op.Err)
	assert.Equal(t, []string{"p1", "p3"}, ids(s.Patients()))
	assert.Zero(t, s.Pending())
}

func TestStoreDeleteRollsBackInPlace(t *testing.T) {
	s := newFakeStore(t, http.StatusInternalServerError)

	op := s.DeletePatient(context.Background(), "p2")
	assert.Equal(t, OpRolledBack, op.State)
	assert.ErrorIs(t, op.Err, ErrServer)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(s.Patients()))

	history := s.Ops()
	require.Len(t, history, 1)
	assert.Equal(t, "patient", history[0].Kind)
}

func TestStoreDeleteNotFoundDropsStaleItem(t *testing.T) {
	s := newFakeStore(t, http.StatusNotFound)

	op := s.DeletePatient(context.Background(), "p1")
	assert.Equal(t, OpCommitted, op.State)
	assert.ErrorIs(t, op.Err, ErrNotFound)
	assert.Equal(t, []string{"p2", "p3"}, ids(s.Patients()))
}

func TestStoreApplyRemovesMissingPatient(t *testing.T) {
	s := newFakeStore(t, http.StatusOK)

	_, err := s.Apply(context.Background(), "p3", patients.Command{Action: patients.ActionHold})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"p1", "p2"}, ids(s.Patients()))
}

func TestStoreReturnsCopies(t *testing.T) {
	s := newFakeStore(t, http.StatusOK)

	list := s.Patients()
	list[0].Name = "changed"
	assert.Equal(t, "A", s.Patients()[0].Name)
}
