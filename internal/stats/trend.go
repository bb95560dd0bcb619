package stats

import (
	"strconv"
	"time"

	"github.com/wolfman30/dentalcrm/internal/patients"
)

const (
	DefaultTrendMonths = 6
	MaxTrendMonths     = 24
)

// Delta is a month-over-month change. New marks a month whose previous month had no inquiries.
type Delta struct {
	Value float64
	New   bool
}

func (d Delta) MarshalJSON() ([]byte, error) {
	if d.New {
		return []byte(`"new"`), nil
	}
	return []byte(strconv.FormatFloat(d.Value, 'f', -1, 64)), nil
}

func (d Delta) String() string {
	if d.New {
		return "new"
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}

// MonthDeltas compares a month to the one before it. Rates are in percentage points.
type MonthDeltas struct {
	Inquiries       Delta `json:"inquiries"`
	ReservationRate Delta `json:"reservationRate"`
	VisitRate       Delta `json:"visitRate"`
	TreatmentRate   Delta `json:"treatmentRate"`
	Revenue         Delta `json:"revenue"`
}

// MonthStats is one row of the trend table.
type MonthStats struct {
	Month   string      `json:"month"`
	Year    int         `json:"year"`
	Number  time.Month  `json:"number"`
	Funnel  Funnel      `json:"funnel"`
	Revenue int64       `json:"revenue"`
	Deltas  MonthDeltas `json:"deltas"`
}

// Trend lists the trailing months oldest first, the current month last.
type Trend struct {
	Months      []MonthStats `json:"months"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// Cumulative is the funnel over the whole collection plus total revenue.
type Cumulative struct {
	Funnel      Funnel    `json:"funnel"`
	Revenue     int64     `json:"revenue"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// MonthlyTrend attributes each patient to the month of its callInDate and revenue to the
// month treatment started. now must already be in the clinic's time zone.
func MonthlyTrend(list []*patients.Patient, now time.Time, months int) Trend {
	months = clampMonths(months)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -months, 0)

	// one extra leading month provides the baseline for the first deltas
	rows := make([]MonthStats, 0, months+1)
	for i := 0; i <= months; i++ {
		m := first.AddDate(0, i, 0)
		y, mo := m.Year(), m.Month()
		subset := make([]*patients.Patient, 0)
		for _, p := range list {
			if p.CallInDate.SameMonth(y, mo) {
				subset = append(subset, p)
			}
		}
		rows = append(rows, MonthStats{
			Month:   m.Format("2006-01"),
			Year:    y,
			Number:  mo,
			Funnel:  ComputeFunnel(subset),
			Revenue: Revenue(list, y, mo),
		})
	}
	for i := 1; i < len(rows); i++ {
		rows[i].Deltas = deltas(rows[i-1], rows[i])
	}
	return Trend{Months: rows[1:], GeneratedAt: now}
}

// CumulativeStats computes the funnel with no date filter.
func CumulativeStats(list []*patients.Patient, now time.Time) Cumulative {
	return Cumulative{
		Funnel:      ComputeFunnel(list),
		Revenue:     TotalRevenue(list),
		GeneratedAt: now,
	}
}

func deltas(prev, cur MonthStats) MonthDeltas {
	if prev.Funnel.Total == 0 {
		n := Delta{New: true}
		return MonthDeltas{Inquiries: n, ReservationRate: n, VisitRate: n, TreatmentRate: n, Revenue: n}
	}
	diff := func(a, b float64) Delta { return Delta{Value: round1(b - a)} }
	return MonthDeltas{
		Inquiries:       diff(float64(prev.Funnel.Total), float64(cur.Funnel.Total)),
		ReservationRate: diff(prev.Funnel.ReservationConfirmed.Percent, cur.Funnel.ReservationConfirmed.Percent),
		VisitRate:       diff(prev.Funnel.VisitConfirmed.Percent, cur.Funnel.VisitConfirmed.Percent),
		TreatmentRate:   diff(prev.Funnel.TreatmentStarted.Percent, cur.Funnel.TreatmentStarted.Percent),
		Revenue:         Delta{Value: float64(cur.Revenue - prev.Revenue)},
	}
}

func clampMonths(n int) int {
	if n <= 0 {
		return DefaultTrendMonths
	}
	if n > MaxTrendMonths {
		return MaxTrendMonths
	}
	return n
}
