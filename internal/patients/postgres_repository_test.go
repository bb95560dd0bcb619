package patients

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	p := newPatient()

	mock.ExpectExec("INSERT INTO patients").
		WithArgs(p.ID, p.Name, "01012345678", "phone-consultation", "new", "2025-03-01", pgxmock.AnyArg(), p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(context.Background(), p))

	mock.ExpectExec("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.Create(context.Background(), p), ErrDuplicatePhone)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	p := newPatient()
	p.VisitConfirmed = true
	p.FirstVisitDate = ptrDate("2025-03-05")
	doc, err := json.Marshal(p)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT document FROM patients").WithArgs("p-1").
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(doc))
	got, err := repo.Get(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "Kim Minji", got.Name)
	assert.True(t, got.VisitConfirmed)
	assert.Equal(t, "2025-03-05", got.FirstVisitDate.String())

	mock.ExpectQuery("SELECT document FROM patients").WithArgs("missing").WillReturnError(pgx.ErrNoRows)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPatientNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryUpdateAndDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	p := newPatient()

	mock.ExpectExec("UPDATE patients").
		WithArgs(p.ID, p.Name, "01012345678", "phone-consultation", "new", "2025-03-01", pgxmock.AnyArg(), p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, repo.Update(context.Background(), p))

	mock.ExpectExec("UPDATE patients").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.Update(context.Background(), p), ErrPatientNotFound)

	mock.ExpectExec("DELETE FROM patients").WithArgs("p-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.Delete(context.Background(), "p-1"))

	mock.ExpectExec("DELETE FROM patients").WithArgs("p-1").WillReturnError(errors.New("connection reset"))
	err = repo.Delete(context.Background(), "p-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "patients: delete failed")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	p := newPatient()
	doc, err := json.Marshal(p)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT document, COUNT\\(\\*\\) OVER\\(\\) FROM patients WHERE phase = \\$1 AND \\(LOWER\\(name\\) LIKE \\$2 OR phone_digits LIKE \\$3\\)").
		WithArgs("phone-consultation", "%010%", "%010%", 10).
		WillReturnRows(pgxmock.NewRows([]string{"document", "count"}).AddRow(doc, 7))

	items, total, err := repo.List(context.Background(), ListFilter{Phase: PhasePhoneConsultation, Query: "010", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, items, 1)
	assert.Equal(t, "p-1", items[0].ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepositoryListPastEnd(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)

	mock.ExpectQuery("SELECT document, COUNT").
		WithArgs("new", 20, 40).
		WillReturnRows(pgxmock.NewRows([]string{"document", "count"}))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM patients WHERE current_status = \\$1").
		WithArgs("new").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	items, total, err := repo.List(context.Background(), ListFilter{Status: StatusNew, Limit: 20, Offset: 40})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 3, total)

	require.NoError(t, mock.ExpectationsWereMet())
}
