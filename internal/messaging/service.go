package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/dentalcrm/internal/observability/metrics"
	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

var messagingTracer = otel.Tracer("dentalcrm.internal.messaging")

// Config tunes the send path.
type Config struct {
	From        string
	DedupWindow time.Duration
}

// Service renders, sends and logs patient messages.
type Service struct {
	templates *templates.Service
	patients  templates.VariableSource
	gateway   Gateway
	logs      LogStore
	dedup     Deduper
	cfg       Config
	metrics   *metrics.CRMMetrics
	logger    *logging.Logger
	now       func() time.Time
}

func NewService(tmpl *templates.Service, gateway Gateway, logs LogStore, dedup Deduper, cfg Config, logger *logging.Logger) *Service {
	if tmpl == nil || gateway == nil || logs == nil {
		panic("messaging: templates, gateway and log store are required")
	}
	if dedup == nil {
		dedup = NewMemoryDeduper()
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		templates: tmpl,
		gateway:   gateway,
		logs:      logs,
		dedup:     dedup,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithPatients lets sends address a patient by id instead of a phone number.
func (s *Service) WithPatients(src templates.VariableSource) *Service {
	s.patients = src
	return s
}

func (s *Service) WithMetrics(m *metrics.CRMMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Send delivers one message and appends its outcome to the send log. A gateway failure
// is logged as failed and returned wrapped in ErrSendFailed together with the result.
func (s *Service) Send(ctx context.Context, req SendRequest, actor string) (*SendResult, error) {
	ctx, span := messagingTracer.Start(ctx, "messaging.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.template_id", req.TemplateID),
		attribute.String("patient.id", req.PatientID),
	)

	entry, err := s.compose(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	entry.Actor = actor
	span.SetAttributes(attribute.String("message.type", string(entry.MessageType)))

	key := DedupKey(entry.PatientID, entry.Phone, entry.Content, string(entry.MessageType))
	fresh, err := s.dedup.Claim(ctx, key, s.cfg.DedupWindow)
	if err != nil {
		s.logger.Warn("dedup check unavailable; sending anyway", "error", err)
		fresh = true
	}
	if !fresh {
		s.metrics.ObserveDuplicate()
		s.logger.Info("duplicate message suppressed", "patient_id", entry.PatientID, "type", entry.MessageType)
		span.SetAttributes(attribute.Bool("message.duplicate", true))
		return &SendResult{Duplicate: true}, nil
	}

	providerID, sendErr := s.gateway.Send(ctx, Outbound{
		From:        s.cfg.From,
		To:          entry.Phone,
		Content:     entry.Content,
		MessageType: entry.MessageType,
		ImageRefs:   entry.ImageRefs,
	})
	entry.Status = StatusSuccess
	entry.ProviderID = providerID
	if sendErr != nil {
		s.release(ctx, key)
		entry.Status = StatusFailed
		entry.ErrorMessage = sendErr.Error()
		span.RecordError(sendErr)
		span.SetStatus(codes.Error, "send failed")
	}
	entry.SentAt = s.now().UTC()
	s.metrics.ObserveSend(string(entry.MessageType), string(entry.Status))

	if err := s.logs.Append(ctx, entry); err != nil {
		if sendErr == nil {
			s.release(ctx, key)
		}
		span.RecordError(err)
		s.logger.Error("failed to write message log", "error", err, "patient_id", entry.PatientID)
		return nil, err
	}
	result := &SendResult{Log: entry}
	if sendErr != nil {
		s.logger.Warn("message send failed", "error", sendErr, "patient_id", entry.PatientID, "log_id", entry.ID)
		return result, fmt.Errorf("%w: %v", ErrSendFailed, sendErr)
	}
	s.logger.Info("message sent", "patient_id", entry.PatientID, "log_id", entry.ID, "type", entry.MessageType)
	return result, nil
}

// release frees the dedup claim of a send that did not complete, so the
// operator's retry is not mistaken for a duplicate.
func (s *Service) release(ctx context.Context, key string) {
	if err := s.dedup.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("dedup release failed", "error", err)
	}
}

func (s *Service) compose(ctx context.Context, req SendRequest) (*Log, error) {
	entry := &Log{
		ID:        uuid.New().String(),
		PatientID: strings.TrimSpace(req.PatientID),
		ImageRefs: cleanRefs(req.ImageRefs),
	}

	var vars map[string]any
	if entry.PatientID != "" && s.patients != nil {
		v, err := s.patients.Variables(ctx, entry.PatientID)
		if err != nil {
			return nil, err
		}
		vars = v
	}

	if id := strings.TrimSpace(req.TemplateID); id != "" {
		tmpl, err := s.templates.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		merged := templates.Vars{}
		for k, v := range vars {
			merged[k] = v
		}
		for k, v := range req.Variables {
			merged[k] = v
		}
		p, err := s.templates.Render(ctx, tmpl, templates.PreviewRequest{Variables: merged})
		if err != nil {
			return nil, err
		}
		entry.TemplateID = tmpl.ID
		entry.CategoryID = tmpl.CategoryID
		entry.MessageType = tmpl.MessageType
		entry.Content = p.Content
		if len(entry.ImageRefs) == 0 && tmpl.ImageRef != "" {
			entry.ImageRefs = []string{tmpl.ImageRef}
		}
	} else {
		entry.Content = req.Content
		entry.MessageType = templates.MessageType(strings.ToUpper(string(req.MessageType)))
		entry.CategoryID = strings.TrimSpace(req.CategoryID)
		if entry.MessageType == "" {
			entry.MessageType = templates.TypeSMS
		}
	}

	if !entry.MessageType.Valid() {
		return nil, invalid("messageType", "must be one of SMS, LMS, MMS, RCS")
	}
	if strings.TrimSpace(entry.Content) == "" {
		return nil, invalid("content", "content is required")
	}
	if n, limit := templates.ByteLength(entry.Content), entry.MessageType.ByteLimit(); n > limit {
		return nil, invalid("content", fmt.Sprintf("%d bytes exceeds the %s limit of %d", n, entry.MessageType, limit))
	}
	if entry.MessageType.RequiresImage() && len(entry.ImageRefs) == 0 {
		return nil, invalid("imageRefs", string(entry.MessageType)+" messages require an image")
	}

	phone := req.Phone
	if strings.TrimSpace(phone) == "" && vars != nil {
		phone, _ = vars["Phone"].(string)
	}
	entry.Phone = NormalizePhone(phone)
	if entry.Phone == "" {
		return nil, invalid("phone", "a valid recipient phone number is required")
	}
	return entry, nil
}

// Logs lists the send log.
func (s *Service) Logs(ctx context.Context, f LogFilter) ([]*Log, int, error) {
	return s.logs.List(ctx, f)
}

func cleanRefs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
