package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var templatesTracer = otel.Tracer("dentalcrm.internal.templates")

type execQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type db interface {
	execQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists templates and categories in Postgres.
type PostgresStore struct {
	db db
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("templates: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(d db) *PostgresStore {
	if d == nil {
		panic("templates: db required")
	}
	return &PostgresStore{db: d}
}

const (
	templateColumns = `id, title, content, category_id, message_type, image_ref, rcs_options, created_at, updated_at`
	categoryColumns = `id, name, display_name, color, is_default, is_active, created_at, updated_at`
	uniqueViolation = "23505"
	fkViolation     = "23503"
)

func (s *PostgresStore) ListTemplates(ctx context.Context, f TemplateFilter) ([]*Template, error) {
	query := `SELECT ` + templateColumns + ` FROM message_templates
		WHERE ($1 = '' OR category_id = $1) AND ($2 = '' OR message_type = $2)
		ORDER BY created_at DESC, id`
	rows, err := s.db.Query(ctx, query, f.CategoryID, string(f.MessageType))
	if err != nil {
		return nil, fmt.Errorf("templates: list templates: %w", err)
	}
	defer rows.Close()

	out := make([]*Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("templates: list templates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*Template, error) {
	row := s.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM message_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	return t, err
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, t *Template) error {
	opts, err := encodeOptions(t.RCSOptions)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO message_templates (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.Exec(ctx, query, t.ID, t.Title, t.Content, t.CategoryID, string(t.MessageType), t.ImageRef, opts, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return mapWriteErr("insert template", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTemplate(ctx context.Context, t *Template) error {
	opts, err := encodeOptions(t.RCSOptions)
	if err != nil {
		return err
	}
	query := `
		UPDATE message_templates
		SET title = $2, content = $3, category_id = $4, message_type = $5, image_ref = $6, rcs_options = $7, updated_at = $8
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, t.ID, t.Title, t.Content, t.CategoryID, string(t.MessageType), t.ImageRef, opts, t.UpdatedAt)
	if err != nil {
		return mapWriteErr("update template", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM message_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("templates: delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := s.db.Query(ctx, `SELECT `+categoryColumns+` FROM message_categories ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("templates: list categories: %w", err)
	}
	defer rows.Close()

	out := make([]*Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("templates: list categories: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetCategory(ctx context.Context, id string) (*Category, error) {
	c, err := scanCategory(s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM message_categories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

func (s *PostgresStore) DefaultCategory(ctx context.Context) (*Category, error) {
	c, err := scanCategory(s.db.QueryRow(ctx, `SELECT `+categoryColumns+` FROM message_categories WHERE is_default LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	return c, err
}

func (s *PostgresStore) SaveCategory(ctx context.Context, c *Category) error {
	ctx, span := templatesTracer.Start(ctx, "templates.save_category")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", c.ID), attribute.Bool("category.default", c.IsDefault))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("templates: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if c.IsDefault {
		if _, err := tx.Exec(ctx, `UPDATE message_categories SET is_default = FALSE, updated_at = $2 WHERE id <> $1 AND is_default`, c.ID, c.UpdatedAt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("templates: clear default: %w", err)
		}
	}
	query := `
		INSERT INTO message_categories (` + categoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			display_name = EXCLUDED.display_name,
			color = EXCLUDED.color,
			is_default = EXCLUDED.is_default,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, query, c.ID, c.Name, c.DisplayName, c.Color, c.IsDefault, c.IsActive, c.CreatedAt, c.UpdatedAt); err != nil {
		span.RecordError(err)
		return mapWriteErr("save category", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("templates: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) (int, error) {
	ctx, span := templatesTracer.Start(ctx, "templates.delete_category")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("templates: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var isDefault bool
	if err := tx.QueryRow(ctx, `SELECT is_default FROM message_categories WHERE id = $1 FOR UPDATE`, id).Scan(&isDefault); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCategoryNotFound
		}
		return 0, fmt.Errorf("templates: lock category: %w", err)
	}
	if isDefault {
		return 0, ErrDefaultCategory
	}
	var defaultID string
	if err := tx.QueryRow(ctx, `SELECT id FROM message_categories WHERE is_default LIMIT 1`).Scan(&defaultID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrDefaultCategory
		}
		return 0, fmt.Errorf("templates: find default category: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE message_templates SET category_id = $1 WHERE category_id = $2`, defaultID, id)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("templates: reassign templates: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM message_categories WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("templates: delete category: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("templates: commit: %w", err)
	}
	moved := int(tag.RowsAffected())
	span.SetAttributes(attribute.Int("templates.moved", moved))
	return moved, nil
}

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var msgType string
	var opts []byte
	if err := row.Scan(&t.ID, &t.Title, &t.Content, &t.CategoryID, &msgType, &t.ImageRef, &opts, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("templates: scan template: %w", err)
	}
	t.MessageType = MessageType(msgType)
	if len(opts) > 0 && string(opts) != "null" {
		var o RCSOptions
		if err := json.Unmarshal(opts, &o); err != nil {
			return nil, fmt.Errorf("templates: decode rcs options: %w", err)
		}
		t.RCSOptions = &o
	}
	return &t, nil
}

func scanCategory(row pgx.Row) (*Category, error) {
	var c Category
	if err := row.Scan(&c.ID, &c.Name, &c.DisplayName, &c.Color, &c.IsDefault, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("templates: scan category: %w", err)
	}
	return &c, nil
}

func encodeOptions(o *RCSOptions) ([]byte, error) {
	if o == nil {
		return nil, nil
	}
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("templates: encode rcs options: %w", err)
	}
	return b, nil
}

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return ErrDuplicateCategory
		case fkViolation:
			return ErrCategoryNotFound
		}
	}
	return fmt.Errorf("templates: %s: %w", op, err)
}
