package patients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var patientsTracer = otel.Tracer("dentalcrm.internal.patients")

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores each patient as a JSONB document next to the columns used for filtering.
type PostgresRepository struct {
	db pgxQuerier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db pgxQuerier) *PostgresRepository {
	if db == nil {
		panic("patients: db required")
	}
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

func (r *PostgresRepository) Create(ctx context.Context, p *Patient) error {
	ctx, span := patientsTracer.Start(ctx, "patients.create")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", p.ID))

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("patients: encode: %w", err)
	}
	query := `
		INSERT INTO patients (id, name, phone_digits, phase, current_status, call_in_date, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)
	`
	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		digitsOnly(p.Phone),
		string(p.Phase),
		string(p.CurrentStatus),
		p.CallInDate.String(),
		doc,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return r.fail(span, "insert", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Patient, error) {
	ctx, span := patientsTracer.Start(ctx, "patients.get")
	defer span.End()

	var doc []byte
	err := r.db.QueryRow(ctx, `SELECT document FROM patients WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, r.fail(span, "select", err)
	}
	return decodePatient(doc)
}

func (r *PostgresRepository) Update(ctx context.Context, p *Patient) error {
	ctx, span := patientsTracer.Start(ctx, "patients.update")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", p.ID))

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("patients: encode: %w", err)
	}
	query := `
		UPDATE patients
		SET name = $2, phone_digits = $3, phase = $4, current_status = $5,
		    call_in_date = $6::date, document = $7, updated_at = $8
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		digitsOnly(p.Phone),
		string(p.Phase),
		string(p.CurrentStatus),
		p.CallInDate.String(),
		doc,
		p.UpdatedAt,
	)
	if err != nil {
		return r.fail(span, "update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ctx, span := patientsTracer.Start(ctx, "patients.delete")
	defer span.End()

	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return r.fail(span, "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	ctx, span := patientsTracer.Start(ctx, "patients.list")
	defer span.End()

	where, args := buildWhere(f)
	query := `SELECT document, COUNT(*) OVER() FROM patients` + where +
		` ORDER BY call_in_date DESC, created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, r.fail(span, "list", err)
	}
	defer rows.Close()

	out := make([]*Patient, 0)
	total := 0
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc, &total); err != nil {
			return nil, 0, r.fail(span, "scan", err)
		}
		p, err := decodePatient(doc)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, r.fail(span, "rows", err)
	}
	if len(out) == 0 && f.Offset > 0 {
		// the window count is lost when the page is past the end
		if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args[:len(args)-offsetArgs(f)]...).Scan(&total); err != nil {
			return nil, 0, r.fail(span, "count", err)
		}
	}
	span.SetAttributes(attribute.Int("patients.total", total))
	return out, total, nil
}

func (r *PostgresRepository) All(ctx context.Context) ([]*Patient, error) {
	ctx, span := patientsTracer.Start(ctx, "patients.all")
	defer span.End()

	rows, err := r.db.Query(ctx, `SELECT document FROM patients ORDER BY call_in_date DESC, created_at DESC, id`)
	if err != nil {
		return nil, r.fail(span, "all", err)
	}
	defer rows.Close()

	out := make([]*Patient, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, r.fail(span, "scan", err)
		}
		p, err := decodePatient(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail(span, "rows", err)
	}
	return out, nil
}

func (r *PostgresRepository) fail(span trace.Span, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicatePhone
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return fmt.Errorf("patients: %s failed: %w", op, err)
}

func buildWhere(f ListFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Phase != "" {
		add("phase = $%d", string(f.Phase))
	}
	if f.Status != "" {
		add("current_status = $%d", string(f.Status))
	}
	if f.From != nil {
		add("call_in_date >= $%d::date", f.From.String())
	}
	if f.To != nil {
		add("call_in_date <= $%d::date", f.To.String())
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+strings.ToLower(q)+"%")
		n := len(args)
		if d := digitsOnly(q); d != "" {
			args = append(args, "%"+d+"%")
			clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE $%d OR phone_digits LIKE $%d)", n, n+1))
		} else {
			clauses = append(clauses, fmt.Sprintf("LOWER(name) LIKE $%d", n))
		}
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func offsetArgs(f ListFilter) int {
	n := 0
	if f.Limit > 0 {
		n++
	}
	if f.Offset > 0 {
		n++
	}
	return n
}

func decodePatient(doc []byte) (*Patient, error) {
	var p Patient
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("patients: decode: %w", err)
	}
	return &p, nil
}
