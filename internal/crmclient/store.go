package crmclient

import (
	"context"
	"errors"
	"sync"

	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/internal/templates"
)

// OpState is the outcome of an optimistic local change.
type OpState string

const (
	OpPending    OpState = "pending"
	OpCommitted  OpState = "committed"
	OpRolledBack OpState = "rolled-back"
)

// Op records one optimistic delete. Err is set for rolled-back operations
// and for commits where the server no longer had the item.
type Op struct {
	Kind  string
	ID    string
	State OpState
	Err   error
}

// Store is a local copy of patient and template lists. Deletes are applied
// locally first and rolled back if the server rejects them; a not-found reply
// drops the stale item instead.
type Store struct {
	client *Client

	mu        sync.Mutex
	patients  []*patients.Patient
	templates []*templates.Template
	ops       []*Op
}

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

// RefreshPatients replaces the local patient list with one server page.
func (s *Store) RefreshPatients(ctx context.Context, q PatientQuery) error {
	page, err := s.client.ListPatients(ctx, q)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.patients = page.Items
	s.mu.Unlock()
	return nil
}

func (s *Store) RefreshTemplates(ctx context.Context, f templates.TemplateFilter) error {
	list, err := s.client.ListTemplates(ctx, f)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.templates = list
	s.mu.Unlock()
	return nil
}

// Patients returns copies of the locally held patients in server order.
func (s *Store) Patients() []*patients.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*patients.Patient, len(s.patients))
	for i, p := range s.patients {
		out[i] = p.Clone()
	}
	return out
}

func (s *Store) Templates() []*templates.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*templates.Template, len(s.templates))
	for i, t := range s.templates {
		out[i] = t.Clone()
	}
	return out
}

// Apply runs a lifecycle action and replaces the local copy with the server's.
// A not-found reply removes the patient locally.
func (s *Store) Apply(ctx context.Context, id string, cmd patients.Command) (*patients.Patient, error) {
	p, err := s.client.UpdateStatus(ctx, id, cmd)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, ErrNotFound):
		s.patients, _, _ = without(s.patients, id, patientID)
		return nil, err
	case err != nil:
		return nil, err
	}
	if i := indexOf(s.patients, id, patientID); i >= 0 {
		s.patients[i] = p.Clone()
	}
	return p, nil
}

// DeletePatient removes the patient locally, then on the server.
func (s *Store) DeletePatient(ctx context.Context, id string) Op {
	s.mu.Lock()
	var (
		removed *patients.Patient
		at      int
	)
	s.patients, removed, at = without(s.patients, id, patientID)
	op := s.begin("patient", id)
	s.mu.Unlock()

	err := s.client.DeletePatient(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settle(op, err) == OpRolledBack && removed != nil {
		s.patients = insertAt(s.patients, removed, at)
	}
	return *op
}

// DeleteTemplate removes the template locally, then on the server.
func (s *Store) DeleteTemplate(ctx context.Context, id string) Op {
	s.mu.Lock()
	var (
		removed *templates.Template
		at      int
	)
	s.templates, removed, at = without(s.templates, id, templateID)
	op := s.begin("template", id)
	s.mu.Unlock()

	err := s.client.DeleteTemplate(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settle(op, err) == OpRolledBack && removed != nil {
		s.templates = insertAt(s.templates, removed, at)
	}
	return *op
}

// Ops returns the history of optimistic operations, oldest first.
func (s *Store) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Op, len(s.ops))
	for i, op := range s.ops {
		out[i] = *op
	}
	return out
}

// Pending reports how many operations await a server reply.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, op := range s.ops {
		if op.State == OpPending {
			n++
		}
	}
	return n
}

// begin and settle run with mu held.
func (s *Store) begin(kind, id string) *Op {
	op := &Op{Kind: kind, ID: id, State: OpPending}
	s.ops = append(s.ops, op)
	return op
}

func (s *Store) settle(op *Op, err error) OpState {
	switch {
	case err == nil:
		op.State = OpCommitted
	case errors.Is(err, ErrNotFound):
		op.State = OpCommitted
		op.Err = err
	default:
		op.State = OpRolledBack
		op.Err = err
	}
	return op.State
}

func patientID(p *patients.Patient) string    { return p.ID }
func templateID(t *templates.Template) string { return t.ID }

func indexOf[T any](list []T, id string, key func(T) string) int {
	for i, v := range list {
		if key(v) == id {
			return i
		}
	}
	return -1
}

// without drops the item with id and reports it with its former index.
func without[T any](list []T, id string, key func(T) string) ([]T, T, int) {
	var zero T
	i := indexOf(list, id, key)
	if i < 0 {
		return list, zero, -1
	}
	item := list[i]
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	out = append(out, list[i+1:]...)
	return out, item, i
}

func insertAt[T any](list []T, item T, at int) []T {
	if at < 0 || at > len(list) {
		at = len(list)
	}
	out := make([]T, 0, len(list)+1)
	out = append(out, list[:at]...)
	out = append(out, item)
	return append(out, list[at:]...)
}
