// Package stats derives conversion funnels, monthly trends and cumulative totals from patients.
// Everything here is computed on demand and never mutates its input.
package stats

import (
	"math"
	"time"

	"github.com/wolfman30/dentalcrm/internal/patients"
)

// StageCount is one funnel stage; Percent is relative to the subset size, one decimal.
type StageCount struct {
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Funnel is the ordered conversion breakdown for a patient subset.
type Funnel struct {
	Total                int        `json:"total"`
	NewInquiry           StageCount `json:"newInquiry"`
	ReservationConfirmed StageCount `json:"reservationConfirmed"`
	VisitConfirmed       StageCount `json:"visitConfirmed"`
	TreatmentStarted     StageCount `json:"treatmentStarted"`
}

// ComputeFunnel counts each stage from the monotonic lifecycle markers, so a later
// cancellation or closure never removes a patient from a stage already reached.
func ComputeFunnel(list []*patients.Patient) Funnel {
	var reserved, visited, treated int
	for _, p := range list {
		if p.ReachedReservation() {
			reserved++
		}
		if p.VisitConfirmed {
			visited++
		}
		if p.TreatmentStarted() {
			treated++
		}
	}
	total := len(list)
	return Funnel{
		Total:                total,
		NewInquiry:           stage(total, total),
		ReservationConfirmed: stage(reserved, total),
		VisitConfirmed:       stage(visited, total),
		TreatmentStarted:     stage(treated, total),
	}
}

func stage(count, total int) StageCount {
	return StageCount{Count: count, Percent: percent(count, total)}
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(count) * 100 / float64(total))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CalledInBetween keeps patients whose callInDate is within [from, to]; nil bounds are open.
func CalledInBetween(list []*patients.Patient, from, to *patients.Date) []*patients.Patient {
	out := make([]*patients.Patient, 0, len(list))
	for _, p := range list {
		if from != nil && p.CallInDate.Before(*from) {
			continue
		}
		if to != nil && p.CallInDate.After(*to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Revenue sums treatment revenue for patients whose treatment started in the given month.
func Revenue(list []*patients.Patient, year int, month time.Month) int64 {
	var sum int64
	for _, p := range list {
		if p.TreatmentStartedAt != nil && p.TreatmentStartedAt.SameMonth(year, month) {
			sum += p.TreatmentRevenue()
		}
	}
	return sum
}

// TotalRevenue sums treatment revenue over every patient whose treatment started.
func TotalRevenue(list []*patients.Patient) int64 {
	var sum int64
	for _, p := range list {
		if p.TreatmentStarted() {
			sum += p.TreatmentRevenue()
		}
	}
	return sum
}
