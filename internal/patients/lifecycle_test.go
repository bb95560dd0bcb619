package patients

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seoul = mustLoad("Asia/Seoul")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func fixedEngine() *Engine {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, seoul)
	return NewEngine(seoul).WithClock(func() time.Time { return now })
}

func newPatient() *Patient {
	return &Patient{
		ID:                 "p-1",
		Name:               "Kim Minji",
		Phone:              "010-1234-5678",
		CallInDate:         MustDate("2025-03-01"),
		Phase:              PhasePhoneConsultation,
		CurrentStatus:      StatusNew,
		PreVisitCallbacks:  []CallbackRecord{},
		PostVisitCallbacks: []CallbackRecord{},
		StatusHistory:      []HistoryEntry{},
	}
}

func reservation() *Reservation {
	return &Reservation{Date: MustDate("2025-03-12"), Time: "14:30"}
}

func visited(t *testing.T, e *Engine) *Patient {
	t.Helper()
	p := newPatient()
	require.NoError(t, e.Apply(p, Command{Action: ActionConfirmReservation, Reservation: reservation()}))
	require.NoError(t, e.Apply(p, Command{Action: ActionConfirmVisit}))
	return p
}

func TestConfirmReservation(t *testing.T) {
	e := fixedEngine()
	p := newPatient()

	require.NoError(t, e.Apply(p, Command{Action: ActionConfirmReservation, Reservation: reservation(), Actor: "kim"}))

	assert.Equal(t, PhaseReservationConfirmed, p.Phase)
	assert.Equal(t, StatusReservationConfirmed, p.CurrentStatus)
	require.NotNil(t, p.Reservation)
	assert.Equal(t, VisitFirst, p.Reservation.VisitType)
	require.NotNil(t, p.ReservedAt)
	require.Len(t, p.StatusHistory, 1)
	h := p.StatusHistory[0]
	assert.Equal(t, ActionConfirmReservation, h.Action)
	assert.Equal(t, PhasePhoneConsultation, h.FromPhase)
	assert.Equal(t, PhaseReservationConfirmed, h.ToPhase)
	assert.Equal(t, "kim", h.Actor)
}

func TestConfirmReservationRejectsBadInput(t *testing.T) {
	e := fixedEngine()

	cases := map[string]Command{
		"missing reservation": {Action: ActionConfirmReservation},
		"missing date":        {Action: ActionConfirmReservation, Reservation: &Reservation{Time: "10:00"}},
		"bad time":            {Action: ActionConfirmReservation, Reservation: &Reservation{Date: MustDate("2025-03-12"), Time: "25:00"}},
		"bad visit type":      {Action: ActionConfirmReservation, Reservation: &Reservation{Date: MustDate("2025-03-12"), Time: "10:00", VisitType: "walk-in"}},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			p := newPatient()
			before := p.Clone()
			err := e.Apply(p, cmd)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, before, p)
		})
	}
}

func TestIllegalTransitionsLeavePatientUnchanged(t *testing.T) {
	e := fixedEngine()

	fresh := newPatient()
	for _, a := range []Action{ActionConfirmVisit, ActionCancelReservation, ActionNoShow, ActionAgree, ActionDisagree, ActionHold} {
		p := fresh.Clone()
		err := e.Apply(p, Command{Action: a})
		require.Error(t, err, a)
		assert.True(t, IsTransition(err), a)
		assert.Equal(t, fresh, p, a)
	}

	reserved := newPatient()
	require.NoError(t, e.Apply(reserved, Command{Action: ActionConfirmReservation, Reservation: reservation()}))
	before := reserved.Clone()
	err := e.Apply(reserved, Command{Action: ActionConfirmReservation, Reservation: reservation()})
	assert.True(t, IsTransition(err))
	assert.Equal(t, before, reserved)
}

func TestConfirmVisitSetsMonotonicMarkers(t *testing.T) {
	e := fixedEngine()
	p := visited(t, e)

	assert.True(t, p.VisitConfirmed)
	assert.Equal(t, PhaseVisitCompleted, p.Phase)
	assert.Equal(t, StatusVisitConfirmed, p.CurrentStatus)
	require.NotNil(t, p.FirstVisitDate)
	assert.Equal(t, "2025-03-10", p.FirstVisitDate.String())
}

func TestConfirmVisitRejectsFutureDate(t *testing.T) {
	e := fixedEngine()
	p := newPatient()
	require.NoError(t, e.Apply(p, Command{Action: ActionConfirmReservation, Reservation: reservation()}))

	future := MustDate("2025-03-11")
	err := e.Apply(p, Command{Action: ActionConfirmVisit, VisitDate: &future})
	assert.True(t, IsValidation(err))
	assert.False(t, p.VisitConfirmed)
}

func TestCancelAndNoShow(t *testing.T) {
	e := fixedEngine()

	p := newPatient()
	require.NoError(t, e.Apply(p, Command{Action: ActionConfirmReservation, Reservation: reservation()}))
	require.NoError(t, e.Apply(p, Command{Action: ActionCancelReservation, Note: "schedule conflict"}))
	assert.Equal(t, PhasePhoneConsultation, p.Phase)
	assert.Equal(t, StatusReservationCancelled, p.CurrentStatus)
	assert.Nil(t, p.Reservation)
	assert.NotNil(t, p.ReservedAt)

	q := newPatient()
	require.NoError(t, e.Apply(q, Command{Action: ActionConfirmReservation, Reservation: reservation()}))
	require.NoError(t, e.Apply(q, Command{Action: ActionNoShow}))
	assert.Equal(t, PhasePhoneConsultation, q.Phase)
	assert.Equal(t, StatusNoShow, q.CurrentStatus)
	assert.NotNil(t, q.Reservation)

	require.NoError(t, e.Apply(q, Command{Action: ActionConfirmReservation, Reservation: &Reservation{Date: MustDate("2025-03-20"), Time: "11:00", VisitType: VisitRevisit}}))
	assert.Equal(t, "2025-03-20", q.Reservation.Date.String())
}

func TestDecisionRecordedOnce(t *testing.T) {
	e := fixedEngine()
	p := visited(t, e)

	require.NoError(t, e.Apply(p, Command{Action: ActionAgree}))
	assert.Equal(t, ResultAgreed, p.Result)

	err := e.Apply(p, Command{Action: ActionHold})
	assert.True(t, IsTransition(err))
	assert.Equal(t, ResultAgreed, p.Result)
}

func TestVisitConfirmedNeverReverts(t *testing.T) {
	e := fixedEngine()
	p := visited(t, e)

	actions := []Command{
		{Action: ActionCancelReservation},
		{Action: ActionNoShow},
		{Action: ActionConfirmReservation, Reservation: reservation()},
		{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitClosed, Reason: "moved away"}},
		{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitLongTermHold, Reason: "budget"}},
	}
	for _, cmd := range actions {
		_ = e.Apply(p, cmd)
		assert.True(t, p.VisitConfirmed)
		assert.Equal(t, "2025-03-10", p.FirstVisitDate.String())
	}
}

func TestPostVisitStatusRequiresVisit(t *testing.T) {
	e := fixedEngine()
	p := newPatient()

	err := e.Apply(p, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitTreatmentInProgress}})
	assert.True(t, IsTransition(err))
	assert.Nil(t, p.PostVisitStatusInfo)
}

func TestValidatePostVisitStatus(t *testing.T) {
	today := MustDate("2025-03-10")
	tomorrow := today.AddDays(1)
	yesterday := today.AddDays(-1)

	cases := []struct {
		name  string
		info  PostVisitStatusInfo
		field string
	}{
		{"unknown status", PostVisitStatusInfo{Status: "paused"}, "status"},
		{"pending without reason", PostVisitStatusInfo{Status: PostVisitDecisionPending, NextCallbackDate: &tomorrow}, "reason"},
		{"pending without date", PostVisitStatusInfo{Status: PostVisitDecisionPending, Reason: "cost"}, "nextCallbackDate"},
		{"pending callback today", PostVisitStatusInfo{Status: PostVisitDecisionPending, Reason: "cost", NextCallbackDate: &today}, "nextCallbackDate"},
		{"pending callback past", PostVisitStatusInfo{Status: PostVisitDecisionPending, Reason: "cost", NextCallbackDate: &yesterday}, "nextCallbackDate"},
		{"hold without reason", PostVisitStatusInfo{Status: PostVisitLongTermHold, Reason: "  "}, "reason"},
		{"closed without reason", PostVisitStatusInfo{Status: PostVisitClosed}, "reason"},
		{"scheduled without date", PostVisitStatusInfo{Status: PostVisitTreatmentScheduled}, "scheduledDate"},
		{"start in future", PostVisitStatusInfo{Status: PostVisitTreatmentInProgress, TreatmentStartDate: &tomorrow}, "treatmentStartDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePostVisitStatus(tc.info, today)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	assert.NoError(t, ValidatePostVisitStatus(PostVisitStatusInfo{Status: PostVisitDecisionPending, Reason: "cost", NextCallbackDate: &tomorrow}, today))
	assert.NoError(t, ValidatePostVisitStatus(PostVisitStatusInfo{Status: PostVisitTreatmentInProgress}, today))
}

func TestTreatmentStartedAtSetOnce(t *testing.T) {
	e := fixedEngine()
	p := visited(t, e)

	start := MustDate("2025-03-08")
	require.NoError(t, e.Apply(p, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitTreatmentInProgress, TreatmentStartDate: &start, DepositPaid: true}}))
	require.NotNil(t, p.TreatmentStartedAt)
	assert.Equal(t, "2025-03-08", p.TreatmentStartedAt.String())
	assert.Equal(t, StatusTreatmentInProgress, p.CurrentStatus)
	assert.True(t, p.PostVisitStatusInfo.DepositPaid)

	require.NoError(t, e.Apply(p, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitLongTermHold, Reason: "pregnancy"}}))
	require.NoError(t, e.Apply(p, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitTreatmentInProgress}}))
	assert.Equal(t, "2025-03-08", p.TreatmentStartedAt.String())
	assert.Equal(t, "2025-03-10", p.PostVisitStatusInfo.TreatmentStartDate.String())
}

func TestClosedStatusClosesPhaseAndCanReopen(t *testing.T) {
	e := fixedEngine()
	p := visited(t, e)

	require.NoError(t, e.Apply(p, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitClosed, Reason: "chose another clinic", NextCallbackDate: ptrDate("2025-04-01")}}))
	assert.Equal(t, PhaseClosed, p.Phase)
	assert.Equal(t, StatusClosed, p.CurrentStatus)
	assert.Nil(t, p.PostVisitStatusInfo.NextCallbackDate)

	require.NoError(t, e.Apply(p, Command{Action: ActionUpdatePostVisitStatus, PostVisitStatus: &PostVisitStatusInfo{Status: PostVisitTreatmentScheduled, ScheduledDate: ptrDate("2025-04-02")}}))
	assert.Equal(t, PhaseVisitCompleted, p.Phase)
	assert.Equal(t, StatusTreatmentScheduled, p.CurrentStatus)
}

func TestEverySuccessfulActionAppendsHistory(t *testing.T) {
	e := fixedEngine()
	p := newPatient()

	steps := []Command{
		{Action: ActionConfirmReservation, Reservation: reservation()},
		{Action: ActionAddCallback, CallbackType: CallbackPreVisit, Callback: &CallbackRecord{Date: MustDate("2025-03-11"), Result: CallbackReached}},
		{Action: ActionConfirmVisit},
		{Action: ActionHold},
		{Action: ActionConfirmTeeth, Teeth: []int{36}},
		{Action: ActionUpdatePostVisitConsultation, PostVisitConsultation: &PostVisitConsultation{EstimateInfo: EstimateInfo{RegularPrice: 1000}}},
	}
	for i, cmd := range steps {
		require.NoError(t, e.Apply(p, cmd))
		assert.Len(t, p.StatusHistory, i+1)
	}
	_ = e.Apply(p, Command{Action: ActionAgree})
	assert.Len(t, p.StatusHistory, len(steps))
}

func TestUnknownAction(t *testing.T) {
	e := fixedEngine()
	err := e.Apply(newPatient(), Command{Action: "teleport"})
	assert.True(t, IsValidation(err))

	err = e.Apply(newPatient(), Command{Action: ActionCreate})
	assert.True(t, IsValidation(err))
}

func TestUpdatePostVisitConsultation(t *testing.T) {
	e := fixedEngine()

	err := e.Apply(newPatient(), Command{Action: ActionUpdatePostVisitConsultation, PostVisitConsultation: &PostVisitConsultation{}})
	assert.True(t, IsTransition(err))

	p := visited(t, e)
	over := int64(2000)
	err = e.Apply(p, Command{Action: ActionUpdatePostVisitConsultation, PostVisitConsultation: &PostVisitConsultation{EstimateInfo: EstimateInfo{RegularPrice: 1000, DiscountPrice: &over}}})
	assert.True(t, IsValidation(err))

	discount := int64(800)
	require.NoError(t, e.Apply(p, Command{Action: ActionUpdatePostVisitConsultation, PostVisitConsultation: &PostVisitConsultation{
		DoctorName:   " Dr. Lee ",
		EstimateInfo: EstimateInfo{RegularPrice: 1000, DiscountPrice: &discount},
	}}))
	assert.Equal(t, "Dr. Lee", p.PostVisitConsultation.DoctorName)
	assert.Equal(t, int64(800), p.TreatmentRevenue())
}

func TestUpdateConsultation(t *testing.T) {
	e := fixedEngine()
	p := newPatient()
	p.Consultation.Teeth = []int{11}

	negative := int64(-1)
	err := e.Apply(p, Command{Action: ActionUpdateConsultation, Consultation: &ConsultationUpdate{EstimatedAmount: &negative}})
	assert.True(t, IsValidation(err))

	amount := int64(3500000)
	unknown := true
	require.NoError(t, e.Apply(p, Command{Action: ActionUpdateConsultation, Consultation: &ConsultationUpdate{
		InterestedServices: []string{"implant", " implant", "", "whitening"},
		EstimatedAmount:    &amount,
		TeethUnknown:       &unknown,
	}}))
	assert.Equal(t, []string{"implant", "whitening"}, p.Consultation.InterestedServices)
	assert.Equal(t, amount, p.Consultation.EstimatedAmount)
	assert.True(t, p.Consultation.TeethUnknown)
	assert.Empty(t, p.Consultation.Teeth)
}

func ptrDate(s string) *Date {
	d := MustDate(s)
	return &d
}
