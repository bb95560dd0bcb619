package patients

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/dentalcrm/internal/observability/metrics"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// CreateRequest is the intake form for a new patient.
type CreateRequest struct {
	Name               string           `json:"name"`
	Phone              string           `json:"phone"`
	Age                int              `json:"age"`
	Gender             Gender           `json:"gender"`
	Region             string           `json:"region"`
	ConsultationType   ConsultationType `json:"consultationType"`
	SourceChannel      string           `json:"sourceChannel"`
	CallInDate         *Date            `json:"callInDate"`
	InterestedServices []string         `json:"interestedServices"`
	Teeth              []int            `json:"teeth"`
	TeethUnknown       bool             `json:"teethUnknown"`
	Notes              string           `json:"notes"`
	EstimatedAmount    int64            `json:"estimatedAmount"`
}

// UpdateRequest patches identity and intake fields; nil fields are left alone.
type UpdateRequest struct {
	Name             *string           `json:"name"`
	Phone            *string           `json:"phone"`
	Age              *int              `json:"age"`
	Gender           *Gender           `json:"gender"`
	Region           *string           `json:"region"`
	ConsultationType *ConsultationType `json:"consultationType"`
	SourceChannel    *string           `json:"sourceChannel"`
	CallInDate       *Date             `json:"callInDate"`
}

// Service applies validated mutations to stored patients.
// Every mutation runs against a copy, so a rejected request persists nothing.
type Service struct {
	repo    Repository
	engine  *Engine
	metrics *metrics.CRMMetrics
	logger  *logging.Logger
}

func NewService(repo Repository, engine *Engine, logger *logging.Logger) *Service {
	if repo == nil {
		panic("patients: repository required")
	}
	if engine == nil {
		engine = NewEngine(nil)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, engine: engine, logger: logger}
}

// WithMetrics attaches lifecycle counters.
func (s *Service) WithMetrics(m *metrics.CRMMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) Engine() *Engine { return s.engine }

func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (*Patient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name", "name is required")
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if req.Age < 0 || req.Age > 150 {
		return nil, invalid("age", "age must be between 0 and 150")
	}
	gender := req.Gender
	if gender == "" {
		gender = GenderUnknown
	}
	if !gender.Valid() {
		return nil, invalid("gender", "unknown gender")
	}
	ctype := req.ConsultationType
	if ctype == "" {
		ctype = ConsultationPhone
	}
	if !ctype.Valid() {
		return nil, invalid("consultationType", "unknown consultation type")
	}
	if req.EstimatedAmount < 0 {
		return nil, invalid("estimatedAmount", "amount cannot be negative")
	}
	teeth, err := NormalizeTeeth(req.Teeth)
	if err != nil {
		return nil, err
	}
	if req.TeethUnknown && len(teeth) > 0 {
		return nil, invalid("teeth", "teeth must be empty when marked unknown")
	}
	callIn := s.engine.Today()
	if req.CallInDate != nil && !req.CallInDate.IsZero() {
		callIn = *req.CallInDate
	}

	now := s.engine.Now()
	p := &Patient{
		ID:               uuid.New().String(),
		Name:             name,
		Phone:            phone,
		Age:              req.Age,
		Gender:           gender,
		Region:           strings.TrimSpace(req.Region),
		ConsultationType: ctype,
		SourceChannel:    strings.TrimSpace(req.SourceChannel),
		CallInDate:       callIn,
		Phase:            PhasePhoneConsultation,
		CurrentStatus:    StatusNew,
		Consultation: Consultation{
			InterestedServices: normalizeServices(req.InterestedServices),
			Teeth:              teeth,
			TeethUnknown:       req.TeethUnknown,
			Notes:              strings.TrimSpace(req.Notes),
			EstimatedAmount:    req.EstimatedAmount,
		},
		PreVisitCallbacks:  []CallbackRecord{},
		PostVisitCallbacks: []CallbackRecord{},
		StatusHistory: []HistoryEntry{{
			At:       now,
			Action:   ActionCreate,
			ToPhase:  PhasePhoneConsultation,
			ToStatus: StatusNew,
			Actor:    actor,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.metrics.ObserveAction(string(ActionCreate), "ok")
	s.logger.Info("patient created", "patient_id", p.ID, "source", p.SourceChannel, "actor", actor)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) All(ctx context.Context) ([]*Patient, error) {
	return s.repo.All(ctx)
}

func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor string) (*Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, invalid("name", "name is required")
		}
		p.Name = name
	}
	if req.Phone != nil {
		phone, err := normalizePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		p.Phone = phone
	}
	if req.Age != nil {
		if *req.Age < 0 || *req.Age > 150 {
			return nil, invalid("age", "age must be between 0 and 150")
		}
		p.Age = *req.Age
	}
	if req.Gender != nil {
		if !req.Gender.Valid() {
			return nil, invalid("gender", "unknown gender")
		}
		p.Gender = *req.Gender
	}
	if req.Region != nil {
		p.Region = strings.TrimSpace(*req.Region)
	}
	if req.ConsultationType != nil {
		if !req.ConsultationType.Valid() {
			return nil, invalid("consultationType", "unknown consultation type")
		}
		p.ConsultationType = *req.ConsultationType
	}
	if req.SourceChannel != nil {
		p.SourceChannel = strings.TrimSpace(*req.SourceChannel)
	}
	if req.CallInDate != nil && !req.CallInDate.IsZero() {
		p.CallInDate = *req.CallInDate
	}
	p.UpdatedAt = s.engine.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("patient updated", "patient_id", p.ID, "actor", actor)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("patient deleted", "patient_id", id, "actor", actor)
	return nil
}

// Apply runs one lifecycle command and persists the result only when it succeeds.
func (s *Service) Apply(ctx context.Context, id string, cmd Command) (*Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Apply(p, cmd); err != nil {
		s.metrics.ObserveAction(string(cmd.Action), outcomeOf(err))
		s.logger.Warn("patient action rejected",
			"patient_id", id,
			"action", string(cmd.Action),
			"phase", string(p.Phase),
			"error", err,
		)
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Error("failed to persist patient action", "patient_id", id, "action", string(cmd.Action), "error", err)
		return nil, err
	}
	s.metrics.ObserveAction(string(cmd.Action), "ok")
	s.logger.Info("patient action applied",
		"patient_id", id,
		"action", string(cmd.Action),
		"phase", string(p.Phase),
		"status", string(p.CurrentStatus),
		"actor", cmd.Actor,
	)
	return p, nil
}

// DueCallbacks lists follow-ups scheduled on or before day; nil day means today.
func (s *Service) DueCallbacks(ctx context.Context, day *Date) ([]DueCallback, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	d := s.engine.Today()
	if day != nil && !day.IsZero() {
		d = *day
	}
	return DueOn(all, d), nil
}

func outcomeOf(err error) string {
	switch {
	case IsValidation(err):
		return "invalid"
	case IsTransition(err):
		return "rejected"
	case errors.Is(err, ErrPatientNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func normalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	if phone == "" {
		return "", invalid("phone", "phone is required")
	}
	n := len(digitsOnly(phone))
	if n < 9 || n > 11 {
		return "", invalid("phone", "phone must have 9 to 11 digits")
	}
	for _, r := range phone {
		if !(r >= '0' && r <= '9') && r != '-' && r != ' ' && r != '+' {
			return "", invalid("phone", "phone may contain digits, spaces and dashes only")
		}
	}
	return phone, nil
}
