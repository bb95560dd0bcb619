package templates

import (
	"context"
	"sort"
	"sync"
)

// TemplateFilter narrows a template listing. Zero values match everything.
type TemplateFilter struct {
	CategoryID  string
	MessageType MessageType
}

func (f TemplateFilter) matches(t *Template) bool {
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.MessageType != "" && t.MessageType != f.MessageType {
		return false
	}
	return true
}

// Store persists templates and categories. Implementations return copies.
type Store interface {
	ListTemplates(ctx context.Context, f TemplateFilter) ([]*Template, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
	CreateTemplate(ctx context.Context, t *Template) error
	UpdateTemplate(ctx context.Context, t *Template) error
	DeleteTemplate(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]*Category, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
	DefaultCategory(ctx context.Context) (*Category, error)
	// SaveCategory inserts or updates c. When c is the default, every other category loses the flag.
	SaveCategory(ctx context.Context, c *Category) error
	// DeleteCategory removes a non-default category and moves its templates to the default one,
	// returning how many templates moved.
	DeleteCategory(ctx context.Context, id string) (int, error)
}

// MemoryStore keeps templates and categories in maps guarded by one lock, so category
// deletion and reassignment happen atomically.
type MemoryStore struct {
	mu         sync.RWMutex
	templates  map[string]*Template
	categories map[string]*Category
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates:  make(map[string]*Template),
		categories: make(map[string]*Category),
	}
}

func (s *MemoryStore) ListTemplates(ctx context.Context, f TemplateFilter) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		if f.matches(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryStore) CreateTemplate(ctx context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[t.CategoryID]; !ok {
		return ErrCategoryNotFound
	}
	s.templates[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) UpdateTemplate(ctx context.Context, t *Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[t.ID]; !ok {
		return ErrTemplateNotFound
	}
	if _, ok := s.categories[t.CategoryID]; !ok {
		return ErrCategoryNotFound
	}
	s.templates[t.ID] = t.Clone()
	return nil
}

func (s *MemoryStore) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c.Clone())
	}
	sortCategories(out)
	return out, nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id string) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) DefaultCategory(ctx context.Context) (*Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.IsDefault {
			return c.Clone(), nil
		}
	}
	return nil, ErrCategoryNotFound
}

func (s *MemoryStore) SaveCategory(ctx context.Context, c *Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.categories {
		if id != c.ID && existing.Name == c.Name {
			return ErrDuplicateCategory
		}
	}
	if c.IsDefault {
		for id, existing := range s.categories {
			if id != c.ID && existing.IsDefault {
				existing.IsDefault = false
				existing.UpdatedAt = c.UpdatedAt
			}
		}
	}
	s.categories[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.categories[id]
	if !ok {
		return 0, ErrCategoryNotFound
	}
	if c.IsDefault {
		return 0, ErrDefaultCategory
	}
	var def *Category
	for _, other := range s.categories {
		if other.IsDefault {
			def = other
			break
		}
	}
	if def == nil {
		return 0, ErrDefaultCategory
	}
	moved := 0
	for _, t := range s.templates {
		if t.CategoryID == id {
			t.CategoryID = def.ID
			moved++
		}
	}
	delete(s.categories, id)
	return moved, nil
}

func sortCategories(list []*Category) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].IsDefault != list[j].IsDefault {
			return list[i].IsDefault
		}
		return list[i].Name < list[j].Name
	})
}
