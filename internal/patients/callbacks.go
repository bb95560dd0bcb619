package patients

import (
	"sort"
	"strconv"
	"strings"
)

// AddCallback appends a contact attempt to the list selected by typ and returns the stored record.
func (e *Engine) AddCallback(p *Patient, typ CallbackType, rec CallbackRecord, actor string) (CallbackRecord, error) {
	if !typ.Valid() {
		return CallbackRecord{}, invalid("callbackType", "must be preVisit or postVisit")
	}
	if typ == CallbackPostVisit && !p.VisitConfirmed {
		return CallbackRecord{}, illegal(ActionAddCallback, p, "post-visit callbacks require a confirmed visit")
	}
	if rec.Date.IsZero() {
		return CallbackRecord{}, invalid("callback.date", "date is required")
	}
	if rec.Time == "" {
		rec.Time = e.Now().Format("15:04")
	} else if !validClock(rec.Time) {
		return CallbackRecord{}, invalid("callback.time", "time must be HH:MM")
	}
	if !rec.Result.Valid() {
		return CallbackRecord{}, invalid("callback.result", "unknown callback result")
	}

	rec.Notes = strings.TrimSpace(rec.Notes)
	rec.Counselor = strings.TrimSpace(rec.Counselor)
	if rec.Counselor == "" {
		rec.Counselor = actor
	}
	rec.CreatedAt = e.Now()

	if typ == CallbackPreVisit {
		rec.Attempt = nextAttempt(p.PreVisitCallbacks)
		p.PreVisitCallbacks = append(p.PreVisitCallbacks, rec)
	} else {
		rec.Attempt = nextAttempt(p.PostVisitCallbacks)
		p.PostVisitCallbacks = append(p.PostVisitCallbacks, rec)
	}
	e.record(p, ActionAddCallback, p.Phase, p.CurrentStatus, string(typ)+" #"+strconv.Itoa(rec.Attempt)+" "+string(rec.Result), actor)
	return rec, nil
}

// ConfirmTeeth replaces the tooth selection once the chart has been reviewed.
func (e *Engine) ConfirmTeeth(p *Patient, teeth []int, actor string) error {
	normalized, err := NormalizeTeeth(teeth)
	if err != nil {
		return err
	}
	if len(normalized) == 0 {
		return invalid("teeth", "at least one tooth is required")
	}
	p.Consultation.Teeth = normalized
	p.Consultation.TeethUnknown = false
	e.record(p, ActionConfirmTeeth, p.Phase, p.CurrentStatus, "", actor)
	return nil
}

// NormalizeTeeth validates FDI tooth numbers and returns them de-duplicated in ascending order.
// Quadrants 1-4 are permanent teeth 1-8, quadrants 5-8 are primary teeth 1-5.
func NormalizeTeeth(teeth []int) ([]int, error) {
	seen := make(map[int]struct{}, len(teeth))
	out := make([]int, 0, len(teeth))
	for _, t := range teeth {
		if !validTooth(t) {
			return nil, invalid("teeth", "invalid tooth number "+strconv.Itoa(t))
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Ints(out)
	return out, nil
}

func validTooth(n int) bool {
	q, t := n/10, n%10
	switch {
	case q >= 1 && q <= 4:
		return t >= 1 && t <= 8
	case q >= 5 && q <= 8:
		return t >= 1 && t <= 5
	}
	return false
}

func nextAttempt(list []CallbackRecord) int {
	if len(list) == 0 {
		return 1
	}
	return list[len(list)-1].Attempt + 1
}

// DueCallback is a patient whose scheduled post-visit follow-up falls on or before a given day.
type DueCallback struct {
	PatientID        string          `json:"patientId"`
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	Status           PostVisitStatus `json:"status"`
	NextCallbackDate Date            `json:"nextCallbackDate"`
	Overdue          bool            `json:"overdue"`
	LastAttempt      int             `json:"lastAttempt"`
}

// DueOn lists patients with a follow-up scheduled on or before day, oldest first.
func DueOn(list []*Patient, day Date) []DueCallback {
	out := make([]DueCallback, 0)
	for _, p := range list {
		if !p.HasPostVisitStatus() || p.Phase == PhaseClosed {
			continue
		}
		info := p.PostVisitStatusInfo
		if info.NextCallbackDate == nil || info.NextCallbackDate.After(day) {
			continue
		}
		out = append(out, DueCallback{
			PatientID:        p.ID,
			Name:             p.Name,
			Phone:            p.Phone,
			Status:           info.Status,
			NextCallbackDate: *info.NextCallbackDate,
			Overdue:          info.NextCallbackDate.Before(day),
			LastAttempt:      nextAttempt(p.PostVisitCallbacks) - 1,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NextCallbackDate.Before(out[j].NextCallbackDate)
	})
	return out
}
