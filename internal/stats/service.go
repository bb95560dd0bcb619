package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/dentalcrm/internal/archive"
	"github.com/wolfman30/dentalcrm/internal/observability/metrics"
	"github.com/wolfman30/dentalcrm/internal/patients"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

// PatientSource supplies the collection the reports are computed from.
type PatientSource interface {
	All(ctx context.Context) ([]*patients.Patient, error)
}

// FunnelReport is a funnel over patients who called in within [From, To].
type FunnelReport struct {
	From   patients.Date `json:"from"`
	To     patients.Date `json:"to"`
	Funnel Funnel        `json:"funnel"`
}

// Export is a generated workbook and, when archival is enabled, its object key.
type Export struct {
	Name       string
	Body       []byte
	ArchiveKey string
}

// Service computes reports on demand from the current patient collection.
type Service struct {
	source  PatientSource
	loc     *time.Location
	now     func() time.Time
	months  int
	store   *archive.Store
	metrics *metrics.CRMMetrics
	logger  *logging.Logger
}

func NewService(source PatientSource, loc *time.Location, logger *logging.Logger) *Service {
	if source == nil {
		panic("stats: patient source required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{source: source, loc: loc, now: time.Now, months: DefaultTrendMonths, logger: logger}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithDefaultMonths sets the trend window used when a request does not pick one.
func (s *Service) WithDefaultMonths(n int) *Service {
	s.months = clampMonths(n)
	return s
}

// WithArchive stores exported workbooks in S3.
func (s *Service) WithArchive(store *archive.Store) *Service {
	s.store = store
	return s
}

func (s *Service) WithMetrics(m *metrics.CRMMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) clock() time.Time { return s.now().In(s.loc) }

// Funnel defaults to the current month when both bounds are nil.
func (s *Service) Funnel(ctx context.Context, from, to *patients.Date) (FunnelReport, error) {
	defer s.observe("funnel", time.Now())

	now := s.clock()
	if from == nil && to == nil {
		start := patients.Date{Year: now.Year(), Month: now.Month(), Day: 1}
		end := start.AddDays(32)
		end = patients.Date{Year: end.Year, Month: end.Month, Day: 1}.AddDays(-1)
		from, to = &start, &end
	}
	if from != nil && to != nil && from.After(*to) {
		return FunnelReport{}, fmt.Errorf("stats: from %s is after to %s: %w", from, to, ErrInvalidRange)
	}
	all, err := s.source.All(ctx)
	if err != nil {
		return FunnelReport{}, fmt.Errorf("stats: load patients: %w", err)
	}
	report := FunnelReport{Funnel: ComputeFunnel(CalledInBetween(all, from, to))}
	if from != nil {
		report.From = *from
	}
	if to != nil {
		report.To = *to
	}
	return report, nil
}

// Trend uses the configured window when months is zero.
func (s *Service) Trend(ctx context.Context, months int) (Trend, error) {
	defer s.observe("trend", time.Now())

	if months <= 0 {
		months = s.months
	}
	all, err := s.source.All(ctx)
	if err != nil {
		return Trend{}, fmt.Errorf("stats: load patients: %w", err)
	}
	return MonthlyTrend(all, s.clock(), months), nil
}

func (s *Service) Cumulative(ctx context.Context) (Cumulative, error) {
	defer s.observe("cumulative", time.Now())

	all, err := s.source.All(ctx)
	if err != nil {
		return Cumulative{}, fmt.Errorf("stats: load patients: %w", err)
	}
	return CumulativeStats(all, s.clock()), nil
}

// ExportTrend renders the trend workbook and archives it when a store is configured.
// An archive failure is logged; the workbook is still returned.
func (s *Service) ExportTrend(ctx context.Context, months int, actor string) (Export, error) {
	trend, err := s.Trend(ctx, months)
	if err != nil {
		return Export{}, err
	}
	body, err := TrendWorkbook(trend)
	if err != nil {
		return Export{}, err
	}
	exp := Export{
		Name: fmt.Sprintf("trend-%s.xlsx", trend.GeneratedAt.Format("20060102-150405")),
		Body: body,
	}
	if s.store.Enabled() {
		key, err := s.store.Save(ctx, archive.Report{
			Kind:        "trend",
			Name:        exp.Name,
			ContentType: XLSXContentType,
			Body:        body,
			GeneratedAt: trend.GeneratedAt,
			Actor:       actor,
		})
		if err != nil {
			s.logger.Error("failed to archive trend export", "error", err)
		} else {
			exp.ArchiveKey = key
		}
	}
	s.logger.Info("trend exported", "months", len(trend.Months), "bytes", len(body), "archive_key", exp.ArchiveKey, "actor", actor)
	return exp, nil
}

func (s *Service) observe(report string, started time.Time) {
	s.metrics.ObserveStats(report, time.Since(started).Seconds())
}
