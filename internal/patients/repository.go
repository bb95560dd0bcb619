package patients

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ListFilter narrows a patient listing. Zero values match everything.
type ListFilter struct {
	Phase  Phase
	Status Status
	Query  string
	From   *Date
	To     *Date
	Limit  int
	Offset int
}

// Matches applies the filter to a single patient.
func (f ListFilter) Matches(p *Patient) bool {
	if f.Phase != "" && p.Phase != f.Phase {
		return false
	}
	if f.Status != "" && p.CurrentStatus != f.Status {
		return false
	}
	if f.From != nil && p.CallInDate.Before(*f.From) {
		return false
	}
	if f.To != nil && p.CallInDate.After(*f.To) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		nameHit := strings.Contains(strings.ToLower(p.Name), q)
		d := digitsOnly(q)
		phoneHit := d != "" && strings.Contains(digitsOnly(p.Phone), d)
		if !nameHit && !phoneHit {
			return false
		}
	}
	return true
}

// Repository persists patients. Implementations return copies; callers own what they receive.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]*Patient, int, error)
	All(ctx context.Context) ([]*Patient, error)
}

// InMemoryRepository keeps patients in a map. Used in tests and when no database is configured.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[string]*Patient)}
}

func (r *InMemoryRepository) Create(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	phone := digitsOnly(p.Phone)
	for _, existing := range r.patients {
		if digitsOnly(existing.Phone) == phone {
			return ErrDuplicatePhone
		}
	}
	r.patients[p.ID] = p.Clone()
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p.Clone(), nil
}

func (r *InMemoryRepository) Update(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[p.ID]; !ok {
		return ErrPatientNotFound
	}
	phone := digitsOnly(p.Phone)
	for id, existing := range r.patients {
		if id != p.ID && digitsOnly(existing.Phone) == phone {
			return ErrDuplicatePhone
		}
	}
	r.patients[p.ID] = p.Clone()
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(r.patients, id)
	return nil
}

// List returns the requested page, newest call-in first, and the total match count.
func (r *InMemoryRepository) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	r.mu.RLock()
	matched := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		if f.Matches(p) {
			matched = append(matched, p.Clone())
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(matched)
	total := len(matched)
	return page(matched, f.Offset, f.Limit), total, nil
}

func (r *InMemoryRepository) All(ctx context.Context) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		out = append(out, p.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(list []*Patient) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CallInDate.Equal(b.CallInDate) {
			return a.CallInDate.After(b.CallInDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func page(list []*Patient, offset, limit int) []*Patient {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return []*Patient{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
