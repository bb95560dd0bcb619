package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dentalcrm/internal/templates"
)

func TestSQLLogStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLLogStore(db)
	sentAt := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO message_logs").
		WithArgs("log-1", "p1", "01012345678", "hello", "MMS", "success", "t1", "c1",
			pq.Array([]string{"img/a.png"}), "", "carrier-9", sentAt, "counselor-kim").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Append(context.Background(), &Log{
		ID: "log-1", PatientID: "p1", Phone: "01012345678", Content: "hello",
		MessageType: templates.TypeMMS, Status: StatusSuccess, TemplateID: "t1", CategoryID: "c1",
		ImageRefs: []string{"img/a.png"}, ProviderID: "carrier-9", SentAt: sentAt, Actor: "counselor-kim",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLogStoreList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLLogStore(db)
	sentAt := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "patient_id", "phone", "content", "message_type", "status", "template_id", "category_id", "image_refs", "error_message", "provider_id", "sent_at", "actor", "count"}

	mock.ExpectQuery("FROM message_logs").
		WithArgs("p1", 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("log-2", "p1", "01012345678", "again", "SMS", "failed", "", "", "{}", "carrier down", "", sentAt, "kim", 2).
			AddRow("log-1", "p1", "01012345678", "photo", "MMS", "success", "t1", "c1", "{img/a.png,img/b.png}", "", "carrier-1", sentAt, "kim", 2))

	logs, total, err := store.List(context.Background(), LogFilter{PatientID: "p1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, logs, 2)
	assert.Equal(t, StatusFailed, logs[0].Status)
	assert.Equal(t, "carrier down", logs[0].ErrorMessage)
	assert.Equal(t, []string{}, logs[0].ImageRefs)
	assert.Equal(t, []string{"img/a.png", "img/b.png"}, logs[1].ImageRefs)
	assert.Equal(t, "carrier-1", logs[1].ProviderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLLogStoreListPastEndCountsSeparately(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewSQLLogStore(db)
	cols := []string{"id", "patient_id", "phone", "content", "message_type", "status", "template_id", "category_id", "image_refs", "error_message", "provider_id", "sent_at", "actor", "count"}

	mock.ExpectQuery("FROM message_logs").
		WithArgs("", 10, 50).
		WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	logs, total, err := store.List(context.Background(), LogFilter{Limit: 10, Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryLogStoreNewestFirst(t *testing.T) {
	s := NewMemoryLogStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(ctx, &Log{ID: id, PatientID: "p1", SentAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, s.Append(ctx, &Log{ID: "z", PatientID: "p2", SentAt: base}))

	logs, total, err := s.List(ctx, LogFilter{PatientID: "p1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].ID)
	assert.Equal(t, "b", logs[1].ID)
}
