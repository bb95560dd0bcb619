package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// Default category created on first start when none exists.
const (
	DefaultCategoryName    = "general"
	DefaultCategoryDisplay = "General"
	DefaultCategoryColor   = "#6B7280"
)

// VariableSource supplies the template variables for a patient.
type VariableSource interface {
	Variables(ctx context.Context, patientID string) (map[string]any, error)
}

// TemplateInput is the writable part of a template.
type TemplateInput struct {
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	CategoryID  string      `json:"categoryId"`
	MessageType MessageType `json:"messageType"`
	ImageRef    string      `json:"imageRef"`
	RCSOptions  *RCSOptions `json:"rcsOptions"`
}

// CategoryInput is the writable part of a category. Nil flags keep the stored value.
type CategoryInput struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	IsDefault   *bool  `json:"isDefault"`
	IsActive    *bool  `json:"isActive"`
}

// PreviewRequest selects the variables for a preview: a patient's, overridden by explicit ones.
type PreviewRequest struct {
	PatientID string `json:"patientId"`
	Variables Vars   `json:"variables"`
}

// Preview is rendered template content and its length against the carrier budget.
type Preview struct {
	TemplateID  string      `json:"templateId"`
	CategoryID  string      `json:"categoryId"`
	MessageType MessageType `json:"messageType"`
	ImageRef    string      `json:"imageRef,omitempty"`
	Content     string      `json:"content"`
	ByteLength  int         `json:"byteLength"`
	ByteLimit   int         `json:"byteLimit"`
	WithinLimit bool        `json:"withinLimit"`
}

// DeleteResult reports a category deletion.
type DeleteResult struct {
	ID             string `json:"id"`
	MovedTemplates int    `json:"movedTemplates"`
	MovedTo        string `json:"movedTo"`
}

type Service struct {
	store    Store
	renderer Renderer
	vars     VariableSource
	now      func() time.Time
	logger   *logging.Logger
}

func NewService(store Store, logger *logging.Logger) *Service {
	if store == nil {
		panic("templates: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, now: time.Now, logger: logger}
}

// WithVariables lets previews and sends resolve patient variables.
func (s *Service) WithVariables(src VariableSource) *Service {
	s.vars = src
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// EnsureDefaultCategory creates the built-in default category when no default exists.
func (s *Service) EnsureDefaultCategory(ctx context.Context) (*Category, error) {
	c, err := s.store.DefaultCategory(ctx)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCategoryNotFound) {
		return nil, err
	}
	now := s.now().UTC()
	c = &Category{
		ID:          uuid.New().String(),
		Name:        DefaultCategoryName,
		DisplayName: DefaultCategoryDisplay,
		Color:       DefaultCategoryColor,
		IsDefault:   true,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("templates: create default category: %w", err)
	}
	s.logger.Info("default message category created", "category_id", c.ID)
	return c, nil
}

func (s *Service) ListTemplates(ctx context.Context, f TemplateFilter) ([]*Template, error) {
	if f.MessageType != "" && !f.MessageType.Valid() {
		return nil, invalid("messageType", "must be one of SMS, LMS, MMS, RCS")
	}
	return s.store.ListTemplates(ctx, f)
}

func (s *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return s.store.GetTemplate(ctx, id)
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*Template, error) {
	now := s.now().UTC()
	t := &Template{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}
	if err := s.fill(ctx, t, in); err != nil {
		return nil, err
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("message template created", "template_id", t.ID, "category_id", t.CategoryID, "type", t.MessageType)
	return t, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, id string, in TemplateInput) (*Template, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fill(ctx, t, in); err != nil {
		return nil, err
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.store.DeleteTemplate(ctx, id)
}

func (s *Service) fill(ctx context.Context, t *Template, in TemplateInput) error {
	t.Title = strings.TrimSpace(in.Title)
	t.Content = in.Content
	t.MessageType = MessageType(strings.ToUpper(string(in.MessageType)))
	t.ImageRef = strings.TrimSpace(in.ImageRef)
	t.RCSOptions = in.RCSOptions.clone()
	if err := ValidateTemplate(t); err != nil {
		return err
	}
	if err := s.renderer.Check(t.Content); err != nil {
		return invalid("content", err.Error())
	}
	cat, err := s.resolveCategory(ctx, in.CategoryID)
	if err != nil {
		return err
	}
	t.CategoryID = cat.ID
	return nil
}

func (s *Service) resolveCategory(ctx context.Context, id string) (*Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		c, err := s.store.DefaultCategory(ctx)
		if errors.Is(err, ErrCategoryNotFound) {
			return nil, invalid("categoryId", "no default category is configured")
		}
		return c, err
	}
	c, err := s.store.GetCategory(ctx, id)
	if errors.Is(err, ErrCategoryNotFound) {
		return nil, invalid("categoryId", "unknown category")
	}
	return c, err
}

func (s *Service) ListCategories(ctx context.Context) ([]*Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	now := s.now().UTC()
	c := &Category{ID: uuid.New().String(), IsActive: true, CreatedAt: now, UpdatedAt: now}
	applyCategory(c, in)
	if err := ValidateCategory(c); err != nil {
		return nil, err
	}
	if c.IsDefault && !c.IsActive {
		return nil, invalid("isActive", "the default category must be active")
	}
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	wasDefault := c.IsDefault
	applyCategory(c, in)
	if wasDefault && !c.IsDefault {
		return nil, ErrDefaultCategory
	}
	if c.IsDefault && !c.IsActive {
		return nil, invalid("isActive", "the default category must be active")
	}
	if err := ValidateCategory(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.SaveCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCategory removes a non-default category; its templates move to the default category.
func (s *Service) DeleteCategory(ctx context.Context, id string) (*DeleteResult, error) {
	def, err := s.store.DefaultCategory(ctx)
	if err != nil && !errors.Is(err, ErrCategoryNotFound) {
		return nil, err
	}
	moved, err := s.store.DeleteCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &DeleteResult{ID: id, MovedTemplates: moved}
	if def != nil {
		res.MovedTo = def.ID
	}
	s.logger.Info("message category deleted", "category_id", id, "moved_templates", moved)
	return res, nil
}

func applyCategory(c *Category, in CategoryInput) {
	if v := strings.TrimSpace(in.Name); v != "" {
		c.Name = strings.ToLower(v)
	}
	if v := strings.TrimSpace(in.DisplayName); v != "" {
		c.DisplayName = v
	}
	if v := strings.TrimSpace(in.Color); v != "" {
		c.Color = strings.ToUpper(v)
	}
	if in.IsDefault != nil {
		c.IsDefault = *in.IsDefault
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
}

// Preview renders template id for the request's variables.
func (s *Service) Preview(ctx context.Context, id string, req PreviewRequest) (*Preview, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, t, req)
}

// Render fills t with patient and explicit variables. Missing variables are a validation error.
func (s *Service) Render(ctx context.Context, t *Template, req PreviewRequest) (*Preview, error) {
	vars := Vars{}
	if id := strings.TrimSpace(req.PatientID); id != "" {
		if s.vars == nil {
			return nil, invalid("patientId", "patient variables are not available")
		}
		pv, err := s.vars.Variables(ctx, id)
		if err != nil {
			return nil, err
		}
		for k, v := range pv {
			vars[k] = v
		}
	}
	for k, v := range req.Variables {
		vars[k] = v
	}
	out, err := s.renderer.Render(t.ID, t.Content, vars)
	if err != nil {
		return nil, invalid("variables", err.Error())
	}
	n, limit := ByteLength(out), t.MessageType.ByteLimit()
	return &Preview{
		TemplateID:  t.ID,
		CategoryID:  t.CategoryID,
		MessageType: t.MessageType,
		ImageRef:    t.ImageRef,
		Content:     out,
		ByteLength:  n,
		ByteLimit:   limit,
		WithinLimit: n <= limit,
	}, nil
}
