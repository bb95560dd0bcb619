package patients

import (
	"time"
)

// Phase is the top-level lifecycle stage of a patient.
type Phase string

const (
	PhasePhoneConsultation    Phase = "phone-consultation"
	PhaseReservationConfirmed Phase = "reservation-confirmed"
	PhaseVisitCompleted       Phase = "visit-completed"
	PhaseClosed               Phase = "closed"
)

func (p Phase) Valid() bool {
	switch p {
	case PhasePhoneConsultation, PhaseReservationConfirmed, PhaseVisitCompleted, PhaseClosed:
		return true
	}
	return false
}

// Status is the finer-grained position inside a phase.
type Status string

const (
	StatusNew                  Status = "new"
	StatusReservationConfirmed Status = "reservation-confirmed"
	StatusReservationCancelled Status = "reservation-cancelled"
	StatusNoShow               Status = "no-show"
	StatusVisitConfirmed       Status = "visit-confirmed"
	StatusTreatmentInProgress  Status = "treatment-in-progress"
	StatusTreatmentScheduled   Status = "treatment-scheduled"
	StatusDecisionPending      Status = "decision-pending"
	StatusLongTermHold         Status = "long-term-hold"
	StatusClosed               Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusReservationConfirmed, StatusReservationCancelled, StatusNoShow,
		StatusVisitConfirmed, StatusTreatmentInProgress, StatusTreatmentScheduled,
		StatusDecisionPending, StatusLongTermHold, StatusClosed:
		return true
	}
	return false
}

// Result records the patient's answer after the first visit.
type Result string

const (
	ResultAgreed    Result = "agreed"
	ResultDisagreed Result = "disagreed"
	ResultOnHold    Result = "on-hold"
)

// PostVisitStatus is the treatment-commitment state once a visit is confirmed.
type PostVisitStatus string

const (
	PostVisitTreatmentInProgress PostVisitStatus = "treatment-in-progress"
	PostVisitTreatmentScheduled  PostVisitStatus = "treatment-scheduled"
	PostVisitDecisionPending     PostVisitStatus = "decision-pending"
	PostVisitLongTermHold        PostVisitStatus = "long-term-hold"
	PostVisitClosed              PostVisitStatus = "closed"
)

func (s PostVisitStatus) Valid() bool {
	switch s {
	case PostVisitTreatmentInProgress, PostVisitTreatmentScheduled, PostVisitDecisionPending,
		PostVisitLongTermHold, PostVisitClosed:
		return true
	}
	return false
}

// CallbackType selects which callback list a record belongs to.
type CallbackType string

const (
	CallbackPreVisit  CallbackType = "preVisit"
	CallbackPostVisit CallbackType = "postVisit"
)

func (t CallbackType) Valid() bool {
	return t == CallbackPreVisit || t == CallbackPostVisit
}

// CallbackResult is the outcome of a single contact attempt.
type CallbackResult string

const (
	CallbackReached           CallbackResult = "reached"
	CallbackNoAnswer          CallbackResult = "no-answer"
	CallbackBusy              CallbackResult = "busy"
	CallbackCallbackRequested CallbackResult = "callback-requested"
	CallbackDeclined          CallbackResult = "declined"
	CallbackWrongNumber       CallbackResult = "wrong-number"
)

func (r CallbackResult) Valid() bool {
	switch r {
	case CallbackReached, CallbackNoAnswer, CallbackBusy, CallbackCallbackRequested,
		CallbackDeclined, CallbackWrongNumber:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

type ConsultationType string

const (
	ConsultationPhone  ConsultationType = "phone"
	ConsultationVisit  ConsultationType = "visit"
	ConsultationOnline ConsultationType = "online"
	ConsultationKakao  ConsultationType = "kakao"
)

func (c ConsultationType) Valid() bool {
	switch c {
	case ConsultationPhone, ConsultationVisit, ConsultationOnline, ConsultationKakao:
		return true
	}
	return false
}

type VisitType string

const (
	VisitFirst   VisitType = "first-visit"
	VisitRevisit VisitType = "revisit"
)

func (v VisitType) Valid() bool {
	return v == VisitFirst || v == VisitRevisit
}

// Patient is a clinic inquiry followed from the first call through treatment.
type Patient struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Age    int    `json:"age,omitempty"`
	Gender Gender `json:"gender"`
	Region string `json:"region,omitempty"`

	ConsultationType ConsultationType `json:"consultationType"`
	SourceChannel    string           `json:"sourceChannel,omitempty"`
	CallInDate       Date             `json:"callInDate"`

	Phase              Phase      `json:"phase"`
	CurrentStatus      Status     `json:"currentStatus"`
	Result             Result     `json:"result,omitempty"`
	VisitConfirmed     bool       `json:"visitConfirmed"`
	FirstVisitDate     *Date      `json:"firstVisitDate,omitempty"`
	ReservedAt         *time.Time `json:"reservedAt,omitempty"`
	TreatmentStartedAt *Date      `json:"treatmentStartedAt,omitempty"`

	Consultation          Consultation           `json:"consultation"`
	Reservation           *Reservation           `json:"reservation,omitempty"`
	PreVisitCallbacks     []CallbackRecord       `json:"preVisitCallbacks"`
	PostVisitCallbacks    []CallbackRecord       `json:"postVisitCallbacks"`
	PostVisitConsultation *PostVisitConsultation `json:"postVisitConsultation,omitempty"`
	PostVisitStatusInfo   *PostVisitStatusInfo   `json:"postVisitStatusInfo,omitempty"`
	StatusHistory         []HistoryEntry         `json:"statusHistory"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Consultation captures what the patient asked about during intake.
type Consultation struct {
	InterestedServices []string `json:"interestedServices"`
	Teeth              []int    `json:"teeth"`
	TeethUnknown       bool     `json:"teethUnknown"`
	Notes              string   `json:"notes,omitempty"`
	EstimatedAmount    int64    `json:"estimatedAmount"`
}

type Reservation struct {
	Date      Date      `json:"date"`
	Time      string    `json:"time"`
	VisitType VisitType `json:"visitType"`
}

// CallbackRecord is one logged contact attempt.
type CallbackRecord struct {
	Attempt   int            `json:"attempt"`
	Date      Date           `json:"date"`
	Time      string         `json:"time"`
	Result    CallbackResult `json:"result"`
	Notes     string         `json:"notes,omitempty"`
	Counselor string         `json:"counselor,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type PostVisitConsultation struct {
	DiagnosisNotes          string       `json:"diagnosisNotes,omitempty"`
	TreatmentRecommendation string       `json:"treatmentRecommendation,omitempty"`
	DoctorName              string       `json:"doctorName,omitempty"`
	EstimateInfo            EstimateInfo `json:"estimateInfo"`
}

// EstimateInfo holds whole-currency amounts; DiscountPrice is nil when no discount was offered.
type EstimateInfo struct {
	RegularPrice   int64  `json:"regularPrice"`
	DiscountPrice  *int64 `json:"discountPrice,omitempty"`
	DiscountReason string `json:"discountReason,omitempty"`
}

type PostVisitStatusInfo struct {
	Status             PostVisitStatus `json:"status"`
	TreatmentStartDate *Date           `json:"treatmentStartDate,omitempty"`
	ScheduledDate      *Date           `json:"scheduledDate,omitempty"`
	DepositPaid        bool            `json:"depositPaid"`
	Reason             string          `json:"reason,omitempty"`
	NextCallbackDate   *Date           `json:"nextCallbackDate,omitempty"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// HistoryEntry is one line of the append-only audit log.
type HistoryEntry struct {
	At         time.Time `json:"at"`
	Action     Action    `json:"action"`
	FromPhase  Phase     `json:"fromPhase"`
	ToPhase    Phase     `json:"toPhase"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	Note       string    `json:"note,omitempty"`
	Actor      string    `json:"actor,omitempty"`
}

// HasPostVisitStatus reports whether a post-visit status has been recorded.
func (p *Patient) HasPostVisitStatus() bool {
	return p.PostVisitStatusInfo != nil && p.PostVisitStatusInfo.Status != ""
}

// ReachedReservation reports whether the patient ever confirmed a reservation.
func (p *Patient) ReachedReservation() bool {
	return p.ReservedAt != nil || p.VisitConfirmed
}

// TreatmentStarted reports whether treatment ever began.
func (p *Patient) TreatmentStarted() bool {
	return p.TreatmentStartedAt != nil
}

// TreatmentRevenue is the discounted estimate when one exists, else the intake estimate.
func (p *Patient) TreatmentRevenue() int64 {
	if pvc := p.PostVisitConsultation; pvc != nil && pvc.EstimateInfo.DiscountPrice != nil {
		return *pvc.EstimateInfo.DiscountPrice
	}
	return p.Consultation.EstimatedAmount
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p *Patient) Clone() *Patient {
	if p == nil {
		return nil
	}
	c := *p
	c.FirstVisitDate = cloneDate(p.FirstVisitDate)
	c.TreatmentStartedAt = cloneDate(p.TreatmentStartedAt)
	if p.ReservedAt != nil {
		t := *p.ReservedAt
		c.ReservedAt = &t
	}
	c.Consultation.InterestedServices = cloneSlice(p.Consultation.InterestedServices)
	c.Consultation.Teeth = cloneSlice(p.Consultation.Teeth)
	if p.Reservation != nil {
		r := *p.Reservation
		c.Reservation = &r
	}
	c.PreVisitCallbacks = cloneSlice(p.PreVisitCallbacks)
	c.PostVisitCallbacks = cloneSlice(p.PostVisitCallbacks)
	if p.PostVisitConsultation != nil {
		pvc := *p.PostVisitConsultation
		if pvc.EstimateInfo.DiscountPrice != nil {
			v := *pvc.EstimateInfo.DiscountPrice
			pvc.EstimateInfo.DiscountPrice = &v
		}
		c.PostVisitConsultation = &pvc
	}
	if p.PostVisitStatusInfo != nil {
		info := *p.PostVisitStatusInfo
		info.TreatmentStartDate = cloneDate(info.TreatmentStartDate)
		info.ScheduledDate = cloneDate(info.ScheduledDate)
		info.NextCallbackDate = cloneDate(info.NextCallbackDate)
		c.PostVisitStatusInfo = &info
	}
	c.StatusHistory = cloneSlice(p.StatusHistory)
	return &c
}

func cloneDate(d *Date) *Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
