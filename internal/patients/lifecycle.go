package patients

import (
	"strings"
	"time"
)

// Action names a lifecycle operation. Every accepted action is recorded in statusHistory.
type Action string

const (
	ActionCreate                      Action = "create"
	ActionConfirmReservation          Action = "confirm-reservation"
	ActionConfirmVisit                Action = "confirm-visit"
	ActionCancelReservation           Action = "cancel-reservation"
	ActionNoShow                      Action = "no-show"
	ActionAgree                       Action = "agree"
	ActionDisagree                    Action = "disagree"
	ActionHold                        Action = "hold"
	ActionAddCallback                 Action = "add-callback"
	ActionUpdatePostVisitStatus       Action = "update-post-visit-status"
	ActionConfirmTeeth                Action = "confirm-teeth"
	ActionUpdateConsultation          Action = "update-consultation"
	ActionUpdatePostVisitConsultation Action = "update-post-visit-consultation"
)

// IsStatusAction reports whether the action is accepted by the status endpoint.
func (a Action) IsStatusAction() bool {
	switch a {
	case ActionConfirmReservation, ActionConfirmVisit, ActionCancelReservation, ActionNoShow,
		ActionAgree, ActionDisagree, ActionHold:
		return true
	}
	return false
}

// Command is one requested mutation of a single patient.
type Command struct {
	Action                Action                 `json:"action"`
	Reservation           *Reservation           `json:"reservation,omitempty"`
	VisitDate             *Date                  `json:"visitDate,omitempty"`
	CallbackType          CallbackType           `json:"callbackType,omitempty"`
	Callback              *CallbackRecord        `json:"callback,omitempty"`
	PostVisitStatus       *PostVisitStatusInfo   `json:"postVisitStatus,omitempty"`
	Teeth                 []int                  `json:"teeth,omitempty"`
	Consultation          *ConsultationUpdate    `json:"consultation,omitempty"`
	PostVisitConsultation *PostVisitConsultation `json:"postVisitConsultation,omitempty"`
	Note                  string                 `json:"note,omitempty"`
	Actor                 string                 `json:"-"`
}

// ConsultationUpdate patches intake consultation fields; nil fields are left alone.
type ConsultationUpdate struct {
	InterestedServices []string `json:"interestedServices,omitempty"`
	TeethUnknown       *bool    `json:"teethUnknown,omitempty"`
	Notes              *string  `json:"notes,omitempty"`
	EstimatedAmount    *int64   `json:"estimatedAmount,omitempty"`
}

// Engine enforces the patient lifecycle. It holds no state besides the clock.
type Engine struct {
	now func() time.Time
	loc *time.Location
}

// NewEngine builds an engine whose "today" is evaluated in loc.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{now: time.Now, loc: loc}
}

// WithClock overrides the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

func (e *Engine) Now() time.Time { return e.now().In(e.loc) }

func (e *Engine) Today() Date { return DateOf(e.Now()) }

func (e *Engine) Location() *time.Location { return e.loc }

// Apply dispatches cmd. On error p is left untouched.
func (e *Engine) Apply(p *Patient, cmd Command) error {
	switch cmd.Action {
	case ActionConfirmReservation:
		if cmd.Reservation == nil {
			return invalid("reservation", "reservation details are required")
		}
		return e.ConfirmReservation(p, *cmd.Reservation, cmd.Note, cmd.Actor)
	case ActionConfirmVisit:
		return e.ConfirmVisit(p, cmd.VisitDate, cmd.Note, cmd.Actor)
	case ActionCancelReservation:
		return e.CancelReservation(p, cmd.Note, cmd.Actor)
	case ActionNoShow:
		return e.NoShow(p, cmd.Note, cmd.Actor)
	case ActionAgree:
		return e.decide(p, ActionAgree, ResultAgreed, cmd.Note, cmd.Actor)
	case ActionDisagree:
		return e.decide(p, ActionDisagree, ResultDisagreed, cmd.Note, cmd.Actor)
	case ActionHold:
		return e.decide(p, ActionHold, ResultOnHold, cmd.Note, cmd.Actor)
	case ActionAddCallback:
		if cmd.Callback == nil {
			return invalid("callback", "callback record is required")
		}
		_, err := e.AddCallback(p, cmd.CallbackType, *cmd.Callback, cmd.Actor)
		return err
	case ActionUpdatePostVisitStatus:
		if cmd.PostVisitStatus == nil {
			return invalid("postVisitStatus", "post-visit status is required")
		}
		return e.UpdatePostVisitStatus(p, *cmd.PostVisitStatus, cmd.Note, cmd.Actor)
	case ActionConfirmTeeth:
		return e.ConfirmTeeth(p, cmd.Teeth, cmd.Actor)
	case ActionUpdateConsultation:
		if cmd.Consultation == nil {
			return invalid("consultation", "consultation update is required")
		}
		return e.UpdateConsultation(p, *cmd.Consultation, cmd.Actor)
	case ActionUpdatePostVisitConsultation:
		if cmd.PostVisitConsultation == nil {
			return invalid("postVisitConsultation", "post-visit consultation is required")
		}
		return e.UpdatePostVisitConsultation(p, *cmd.PostVisitConsultation, cmd.Actor)
	case ActionCreate:
		return invalid("action", "create is not a lifecycle action")
	default:
		return invalid("action", "unknown action "+string(cmd.Action))
	}
}

// ConfirmReservation moves a phone consultation to a booked reservation.
func (e *Engine) ConfirmReservation(p *Patient, r Reservation, note, actor string) error {
	if p.Phase != PhasePhoneConsultation {
		return illegal(ActionConfirmReservation, p, "reservations are confirmed from phone consultation only")
	}
	if r.Date.IsZero() {
		return invalid("reservation.date", "date is required")
	}
	if !validClock(r.Time) {
		return invalid("reservation.time", "time must be HH:MM")
	}
	if r.VisitType == "" {
		r.VisitType = VisitFirst
	}
	if !r.VisitType.Valid() {
		return invalid("reservation.visitType", "unknown visit type")
	}

	fromPhase, fromStatus := p.Phase, p.CurrentStatus
	p.Phase = PhaseReservationConfirmed
	p.CurrentStatus = StatusReservationConfirmed
	p.Reservation = &r
	if p.ReservedAt == nil {
		now := e.Now()
		p.ReservedAt = &now
	}
	e.record(p, ActionConfirmReservation, fromPhase, fromStatus, note, actor)
	return nil
}

// ConfirmVisit marks the reserved visit as attended. visitConfirmed never reverts.
func (e *Engine) ConfirmVisit(p *Patient, visitDate *Date, note, actor string) error {
	if p.Phase != PhaseReservationConfirmed {
		return illegal(ActionConfirmVisit, p, "a reservation must be confirmed first")
	}
	day := e.Today()
	if visitDate != nil && !visitDate.IsZero() {
		if visitDate.After(day) {
			return invalid("visitDate", "visit date cannot be in the future")
		}
		day = *visitDate
	}

	fromPhase, fromStatus := p.Phase, p.CurrentStatus
	p.VisitConfirmed = true
	if p.FirstVisitDate == nil {
		p.FirstVisitDate = &day
	}
	p.Phase = PhaseVisitCompleted
	p.CurrentStatus = StatusVisitConfirmed
	e.record(p, ActionConfirmVisit, fromPhase, fromStatus, note, actor)
	return nil
}

// CancelReservation returns the patient to phone consultation and drops the booking.
func (e *Engine) CancelReservation(p *Patient, note, actor string) error {
	if p.Phase != PhaseReservationConfirmed {
		return illegal(ActionCancelReservation, p, "there is no confirmed reservation")
	}
	fromPhase, fromStatus := p.Phase, p.CurrentStatus
	p.Phase = PhasePhoneConsultation
	p.CurrentStatus = StatusReservationCancelled
	p.Reservation = nil
	e.record(p, ActionCancelReservation, fromPhase, fromStatus, note, actor)
	return nil
}

// NoShow returns the patient to phone consultation, keeping the missed booking for reference.
func (e *Engine) NoShow(p *Patient, note, actor string) error {
	if p.Phase != PhaseReservationConfirmed {
		return illegal(ActionNoShow, p, "there is no confirmed reservation")
	}
	fromPhase, fromStatus := p.Phase, p.CurrentStatus
	p.Phase = PhasePhoneConsultation
	p.CurrentStatus = StatusNoShow
	e.record(p, ActionNoShow, fromPhase, fromStatus, note, actor)
	return nil
}

func (e *Engine) decide(p *Patient, action Action, result Result, note, actor string) error {
	if p.Phase != PhaseVisitCompleted {
		return illegal(action, p, "a decision is recorded after the visit only")
	}
	if p.Result != "" {
		return illegal(action, p, "result already recorded as "+string(p.Result))
	}
	fromPhase, fromStatus := p.Phase, p.CurrentStatus
	p.Result = result
	e.record(p, action, fromPhase, fromStatus, note, actor)
	return nil
}

// UpdatePostVisitStatus sets the treatment-commitment state after a confirmed visit.
func (e *Engine) UpdatePostVisitStatus(p *Patient, info PostVisitStatusInfo, note, actor string) error {
	if !p.VisitConfirmed {
		return illegal(ActionUpdatePostVisitStatus, p, "visit has not been confirmed")
	}
	today := e.Today()
	if err := ValidatePostVisitStatus(info, today); err != nil {
		return err
	}

	next := PostVisitStatusInfo{Status: info.Status, UpdatedAt: e.Now()}
	switch info.Status {
	case PostVisitTreatmentInProgress:
		start := today
		if info.TreatmentStartDate != nil && !info.TreatmentStartDate.IsZero() {
			start = *info.TreatmentStartDate
		}
		next.TreatmentStartDate = &start
		next.DepositPaid = info.DepositPaid
	case PostVisitTreatmentScheduled:
		next.ScheduledDate = cloneDate(info.ScheduledDate)
		next.DepositPaid = info.DepositPaid
	case PostVisitDecisionPending:
		next.Reason = strings.TrimSpace(info.Reason)
		next.NextCallbackDate = cloneDate(info.NextCallbackDate)
	case PostVisitLongTermHold:
		next.Reason = strings.TrimSpace(info.Reason)
		next.NextCallbackDate = cloneDate(info.NextCallbackDate)
	case PostVisitClosed:
		next.Reason = strings.TrimSpace(info.Reason)
	}

	fromPhase, fromStatus := p.Phase, p.CurrentStatus
	p.PostVisitStatusInfo = &next
	p.CurrentStatus = Status(next.Status)
	if next.Status == PostVisitClosed {
		p.Phase = PhaseClosed
	} else if p.Phase == PhaseClosed {
		p.Phase = PhaseVisitCompleted
	}
	if next.Status == PostVisitTreatmentInProgress && p.TreatmentStartedAt == nil {
		p.TreatmentStartedAt = cloneDate(next.TreatmentStartDate)
	}
	e.record(p, ActionUpdatePostVisitStatus, fromPhase, fromStatus, note, actor)
	return nil
}

// ValidatePostVisitStatus checks the per-status required fields against today.
func ValidatePostVisitStatus(info PostVisitStatusInfo, today Date) error {
	if !info.Status.Valid() {
		return invalid("status", "unknown post-visit status")
	}
	reason := strings.TrimSpace(info.Reason)
	switch info.Status {
	case PostVisitTreatmentInProgress:
		if info.TreatmentStartDate != nil && info.TreatmentStartDate.After(today) {
			return invalid("treatmentStartDate", "treatment start date cannot be in the future")
		}
	case PostVisitTreatmentScheduled:
		if info.ScheduledDate == nil || info.ScheduledDate.IsZero() {
			return invalid("scheduledDate", "scheduled date is required")
		}
	case PostVisitDecisionPending:
		if reason == "" {
			return invalid("reason", "reason is required")
		}
		if info.NextCallbackDate == nil || info.NextCallbackDate.IsZero() {
			return invalid("nextCallbackDate", "next callback date is required")
		}
		if !info.NextCallbackDate.After(today) {
			return invalid("nextCallbackDate", "next callback date must be after today")
		}
	case PostVisitLongTermHold, PostVisitClosed:
		if reason == "" {
			return invalid("reason", "reason is required")
		}
	}
	return nil
}

// UpdateConsultation patches intake consultation details.
func (e *Engine) UpdateConsultation(p *Patient, upd ConsultationUpdate, actor string) error {
	if upd.EstimatedAmount != nil && *upd.EstimatedAmount < 0 {
		return invalid("estimatedAmount", "amount cannot be negative")
	}
	if upd.InterestedServices != nil {
		p.Consultation.InterestedServices = normalizeServices(upd.InterestedServices)
	}
	if upd.Notes != nil {
		p.Consultation.Notes = strings.TrimSpace(*upd.Notes)
	}
	if upd.EstimatedAmount != nil {
		p.Consultation.EstimatedAmount = *upd.EstimatedAmount
	}
	if upd.TeethUnknown != nil && *upd.TeethUnknown {
		p.Consultation.TeethUnknown = true
		p.Consultation.Teeth = []int{}
	}
	e.record(p, ActionUpdateConsultation, p.Phase, p.CurrentStatus, "", actor)
	return nil
}

// UpdatePostVisitConsultation stores the doctor's diagnosis and estimate.
func (e *Engine) UpdatePostVisitConsultation(p *Patient, pvc PostVisitConsultation, actor string) error {
	if !p.VisitConfirmed {
		return illegal(ActionUpdatePostVisitConsultation, p, "visit has not been confirmed")
	}
	est := pvc.EstimateInfo
	if est.RegularPrice < 0 {
		return invalid("estimateInfo.regularPrice", "amount cannot be negative")
	}
	if est.DiscountPrice != nil {
		if *est.DiscountPrice < 0 {
			return invalid("estimateInfo.discountPrice", "amount cannot be negative")
		}
		if est.RegularPrice > 0 && *est.DiscountPrice > est.RegularPrice {
			return invalid("estimateInfo.discountPrice", "discount price exceeds regular price")
		}
	}
	pvc.DiagnosisNotes = strings.TrimSpace(pvc.DiagnosisNotes)
	pvc.TreatmentRecommendation = strings.TrimSpace(pvc.TreatmentRecommendation)
	pvc.DoctorName = strings.TrimSpace(pvc.DoctorName)
	if pvc.EstimateInfo.DiscountPrice != nil {
		v := *pvc.EstimateInfo.DiscountPrice
		pvc.EstimateInfo.DiscountPrice = &v
	}
	p.PostVisitConsultation = &pvc
	e.record(p, ActionUpdatePostVisitConsultation, p.Phase, p.CurrentStatus, "", actor)
	return nil
}

func (e *Engine) record(p *Patient, action Action, fromPhase Phase, fromStatus Status, note, actor string) {
	now := e.Now()
	p.StatusHistory = append(p.StatusHistory, HistoryEntry{
		At:         now,
		Action:     action,
		FromPhase:  fromPhase,
		ToPhase:    p.Phase,
		FromStatus: fromStatus,
		ToStatus:   p.CurrentStatus,
		Note:       strings.TrimSpace(note),
		Actor:      actor,
	})
	p.UpdatedAt = now
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func normalizeServices(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
