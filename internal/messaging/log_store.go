package messaging

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/lib/pq"

	"github.com/wolfman30/dentalcrm/internal/templates"
)

// LogFilter selects a page of the send log, newest first.
type LogFilter struct {
	PatientID string
	Limit     int
	Offset    int
}

// LogStore appends and lists send-log entries.
type LogStore interface {
	Append(ctx context.Context, l *Log) error
	List(ctx context.Context, f LogFilter) ([]*Log, int, error)
}

// SQLLogStore keeps the send log in Postgres through database/sql.
type SQLLogStore struct {
	db *sql.DB
}

func NewSQLLogStore(db *sql.DB) *SQLLogStore {
	if db == nil {
		panic("messaging: sql db required")
	}
	return &SQLLogStore{db: db}
}

func (s *SQLLogStore) Append(ctx context.Context, l *Log) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_logs (id, patient_id, phone, content, message_type, status,
		    template_id, category_id, image_refs, error_message, provider_id, sent_at, actor)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13)`,
		l.ID, l.PatientID, l.Phone, l.Content, string(l.MessageType), string(l.Status),
		l.TemplateID, l.CategoryID, pq.Array(l.ImageRefs), l.ErrorMessage, l.ProviderID, l.SentAt, l.Actor)
	if err != nil {
		return fmt.Errorf("messaging: insert log: %w", err)
	}
	return nil
}

func (s *SQLLogStore) List(ctx context.Context, f LogFilter) ([]*Log, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(patient_id, ''), phone, content, message_type, status,
		       COALESCE(template_id, ''), COALESCE(category_id, ''), image_refs,
		       error_message, provider_id, sent_at, actor, COUNT(*) OVER()
		FROM message_logs
		WHERE ($1 = '' OR patient_id = $1)
		ORDER BY sent_at DESC, id
		LIMIT $2 OFFSET $3`, f.PatientID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("messaging: list logs: %w", err)
	}
	defer rows.Close()

	out := make([]*Log, 0)
	total := 0
	for rows.Next() {
		var l Log
		var msgType, status string
		if err := rows.Scan(&l.ID, &l.PatientID, &l.Phone, &l.Content, &msgType, &status,
			&l.TemplateID, &l.CategoryID, pq.Array(&l.ImageRefs),
			&l.ErrorMessage, &l.ProviderID, &l.SentAt, &l.Actor, &total); err != nil {
			return nil, 0, fmt.Errorf("messaging: scan log: %w", err)
		}
		l.MessageType = templates.MessageType(msgType)
		l.Status = LogStatus(status)
		if l.ImageRefs == nil {
			l.ImageRefs = []string{}
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("messaging: list logs: %w", err)
	}
	if len(out) == 0 && f.Offset > 0 {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_logs WHERE ($1 = '' OR patient_id = $1)`, f.PatientID).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("messaging: count logs: %w", err)
		}
	}
	return out, total, nil
}

// MemoryLogStore keeps the send log in process.
type MemoryLogStore struct {
	mu   sync.RWMutex
	logs []*Log
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

func (s *MemoryLogStore) Append(_ context.Context, l *Log) error {
	c := *l
	c.ImageRefs = append([]string{}, l.ImageRefs...)
	s.mu.Lock()
	s.logs = append(s.logs, &c)
	s.mu.Unlock()
	return nil
}

func (s *MemoryLogStore) List(_ context.Context, f LogFilter) ([]*Log, int, error) {
	s.mu.RLock()
	matched := make([]*Log, 0, len(s.logs))
	for _, l := range s.logs {
		if f.PatientID == "" || l.PatientID == f.PatientID {
			c := *l
			c.ImageRefs = append([]string{}, l.ImageRefs...)
			matched = append(matched, &c)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].SentAt.Equal(matched[j].SentAt) {
			return matched[i].SentAt.After(matched[j].SentAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	if f.Offset >= total {
		return []*Log{}, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}
