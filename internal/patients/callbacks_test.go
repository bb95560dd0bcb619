package patients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCallbackAttemptsIncrease(t *testing.T) {
	e := fixedEngine()
	p := newPatient()

	for i := 1; i <= 3; i++ {
		rec, err := e.AddCallback(p, CallbackPreVisit, CallbackRecord{Date: MustDate("2025-03-09"), Time: "10:15", Result: CallbackNoAnswer}, "park")
		require.NoError(t, err)
		assert.Equal(t, i, rec.Attempt)
		assert.Equal(t, "park", rec.Counselor)
	}
	require.Len(t, p.PreVisitCallbacks, 3)
	for i, rec := range p.PreVisitCallbacks {
		assert.Equal(t, i+1, rec.Attempt)
	}
	assert.Empty(t, p.PostVisitCallbacks)
}

func TestAddCallbackContinuesFromLastAttempt(t *testing.T) {
	e := fixedEngine()
	p := newPatient()
	p.PreVisitCallbacks = []CallbackRecord{{Attempt: 4, Date: MustDate("2025-03-01"), Result: CallbackBusy}}

	rec, err := e.AddCallback(p, CallbackPreVisit, CallbackRecord{Date: MustDate("2025-03-09"), Result: CallbackReached}, "")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Attempt)
	assert.Equal(t, "09:00", rec.Time)
}

func TestAddCallbackValidation(t *testing.T) {
	e := fixedEngine()

	cases := map[string]struct {
		typ CallbackType
		rec CallbackRecord
	}{
		"bad type":       {"duringVisit", CallbackRecord{Date: MustDate("2025-03-09"), Result: CallbackReached}},
		"missing date":   {CallbackPreVisit, CallbackRecord{Result: CallbackReached}},
		"bad time":       {CallbackPreVisit, CallbackRecord{Date: MustDate("2025-03-09"), Time: "9am", Result: CallbackReached}},
		"unknown result": {CallbackPreVisit, CallbackRecord{Date: MustDate("2025-03-09"), Result: "voicemail"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := newPatient()
			_, err := e.AddCallback(p, tc.typ, tc.rec, "")
			assert.True(t, IsValidation(err))
			assert.Empty(t, p.PreVisitCallbacks)
			assert.Empty(t, p.StatusHistory)
		})
	}
}

func TestPostVisitCallbackRequiresVisit(t *testing.T) {
	e := fixedEngine()
	p := newPatient()

	_, err := e.AddCallback(p, CallbackPostVisit, CallbackRecord{Date: MustDate("2025-03-09"), Result: CallbackReached}, "")
	assert.True(t, IsTransition(err))
	assert.Empty(t, p.PostVisitCallbacks)

	v := visited(t, e)
	rec, err := e.AddCallback(v, CallbackPostVisit, CallbackRecord{Date: MustDate("2025-03-10"), Result: CallbackCallbackRequested}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempt)
}

func TestNormalizeTeeth(t *testing.T) {
	got, err := NormalizeTeeth([]int{36, 11, 36, 55, 48})
	require.NoError(t, err)
	assert.Equal(t, []int{11, 36, 48, 55}, got)

	for _, bad := range []int{0, 10, 19, 49, 56, 86, 91, 100} {
		_, err := NormalizeTeeth([]int{bad})
		assert.True(t, IsValidation(err), bad)
	}
}

func TestConfirmTeeth(t *testing.T) {
	e := fixedEngine()
	p := newPatient()
	p.Consultation.TeethUnknown = true

	err := e.ConfirmTeeth(p, nil, "")
	assert.True(t, IsValidation(err))
	assert.True(t, p.Consultation.TeethUnknown)

	require.NoError(t, e.ConfirmTeeth(p, []int{21, 11, 21}, ""))
	assert.Equal(t, []int{11, 21}, p.Consultation.Teeth)
	assert.False(t, p.Consultation.TeethUnknown)
}

func TestDueOn(t *testing.T) {
	day := MustDate("2025-03-10")
	mk := func(id string, status PostVisitStatus, next string, phase Phase) *Patient {
		p := newPatient()
		p.ID = id
		p.Phase = phase
		p.VisitConfirmed = true
		p.PostVisitStatusInfo = &PostVisitStatusInfo{Status: status, Reason: "x"}
		if next != "" {
			p.PostVisitStatusInfo.NextCallbackDate = ptrDate(next)
		}
		return p
	}
	list := []*Patient{
		mk("today", PostVisitDecisionPending, "2025-03-10", PhaseVisitCompleted),
		mk("late", PostVisitLongTermHold, "2025-03-01", PhaseVisitCompleted),
		mk("future", PostVisitDecisionPending, "2025-03-11", PhaseVisitCompleted),
		mk("none", PostVisitTreatmentInProgress, "", PhaseVisitCompleted),
		mk("closed", PostVisitClosed, "2025-03-01", PhaseClosed),
		newPatient(),
	}

	due := DueOn(list, day)
	require.Len(t, due, 2)
	assert.Equal(t, "late", due[0].PatientID)
	assert.True(t, due[0].Overdue)
	assert.Equal(t, "today", due[1].PatientID)
	assert.False(t, due[1].Overdue)
}
