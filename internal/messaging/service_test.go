package messaging

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dentalcrm/internal/observability/metrics"
	"github.com/wolfman30/dentalcrm/internal/templates"
	"github.com/wolfman30/dentalcrm/pkg/logging"
)

type stubPatients map[string]map[string]any

func (s stubPatients) Variables(_ context.Context, id string) (map[string]any, error) {
	v, ok := s[id]
	if !ok {
		return nil, templates.ErrUnknownPatient
	}
	return v, nil
}

type failingGateway struct{ err error }

func (g failingGateway) Send(context.Context, Outbound) (string, error) { return "", g.err }

// flakyGateway fails its first failures calls, then delivers.
type flakyGateway struct {
	failures int
	calls    int
}

func (g *flakyGateway) Send(context.Context, Outbound) (string, error) {
	g.calls++
	if g.calls <= g.failures {
		return "", errors.New("carrier timeout")
	}
	return "carrier-" + strconv.Itoa(g.calls), nil
}

type failingLogStore struct{ MemoryLogStore }

func (*failingLogStore) Append(context.Context, *Log) error { return errors.New("db down") }

type fixture struct {
	svc     *Service
	tmpl    *templates.Service
	gateway *DryRunGateway
	logs    *MemoryLogStore
	reg     *prometheus.Registry
	now     *time.Time
}

func (f *fixture) sends(t *testing.T, msgType, status string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "dentalcrm_messaging_sends_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, map[string]string{"type": msgType, "status": status}) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
			return false
		}
	}
	return true
}

func newFixture(t *testing.T, gw Gateway) *fixture {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	f := &fixture{now: &now, logs: NewMemoryLogStore(), reg: prometheus.NewRegistry()}
	patients := stubPatients{
		"p1": {"Name": "Kim Minji", "Phone": "010-1234-5678", "ReservationDate": "2025-03-12", "ReservationTime": "14:30"},
	}
	f.tmpl = templates.NewService(templates.NewMemoryStore(), logging.Default()).WithVariables(patients)
	_, err := f.tmpl.EnsureDefaultCategory(context.Background())
	require.NoError(t, err)

	if gw == nil {
		f.gateway = NewDryRunGateway(logging.Default())
		gw = f.gateway
	}
	dedup := NewMemoryDeduper()
	dedup.now = func() time.Time { return *f.now }
	f.svc = NewService(f.tmpl, gw, f.logs, dedup, Config{From: "0212345678"}, logging.Default()).
		WithPatients(patients).
		WithMetrics(metrics.NewCRMMetrics(f.reg)).
		WithClock(func() time.Time { return *f.now })
	return f
}

func TestSendTemplateToPatient(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl, err := f.tmpl.CreateTemplate(ctx, templates.TemplateInput{
		Title: "Reminder", Content: "{{.Name}}, {{.ReservationDate}} {{.ReservationTime}}", MessageType: templates.TypeSMS,
	})
	require.NoError(t, err)

	res, err := f.svc.Send(ctx, SendRequest{PatientID: "p1", TemplateID: tmpl.ID}, "counselor-kim")
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	assert.Equal(t, StatusSuccess, res.Log.Status)
	assert.Equal(t, "Kim Minji, 2025-03-12 14:30", res.Log.Content)
	assert.Equal(t, "01012345678", res.Log.Phone)
	assert.Equal(t, tmpl.CategoryID, res.Log.CategoryID)
	assert.Equal(t, "counselor-kim", res.Log.Actor)
	assert.True(t, strings.HasPrefix(res.Log.ProviderID, "dry-"))

	sent := f.gateway.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "0212345678", sent[0].From)
	assert.Equal(t, 1.0, f.sends(t, "SMS", "success"))
}

func TestSendDuplicateWithinWindowIsDropped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	req := SendRequest{PatientID: "p1", Content: "See you tomorrow", MessageType: templates.TypeSMS}

	_, err := f.svc.Send(ctx, req, "kim")
	require.NoError(t, err)
	res, err := f.svc.Send(ctx, req, "kim")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Nil(t, res.Log)

	*f.now = f.now.Add(DefaultDedupWindow)
	res, err = f.svc.Send(ctx, req, "kim")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	_, total, err := f.logs.List(ctx, LogFilter{PatientID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, f.gateway.Sent(), 2)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	long := ""
	for i := 0; i < 46; i++ {
		long += "가"
	}

	cases := []struct {
		name  string
		req   SendRequest
		field string
	}{
		{name: "empty content", req: SendRequest{Phone: "01012345678", MessageType: templates.TypeSMS}, field: "content"},
		{name: "over budget", req: SendRequest{Phone: "01012345678", Content: long, MessageType: templates.TypeSMS}, field: "content"},
		{name: "mms without image", req: SendRequest{Phone: "01012345678", Content: "photo", MessageType: templates.TypeMMS}, field: "imageRefs"},
		{name: "no phone", req: SendRequest{Content: "hi", MessageType: templates.TypeSMS}, field: "phone"},
		{name: "bad type", req: SendRequest{Phone: "01012345678", Content: "hi", MessageType: "FAX"}, field: "messageType"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, tc.req, "kim")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
	assert.Empty(t, f.gateway.Sent())
	_, total, _ := f.logs.List(ctx, LogFilter{})
	assert.Zero(t, total)
}

func TestSendGatewayFailureIsLogged(t *testing.T) {
	f := newFixture(t, failingGateway{err: errors.New("carrier timeout")})
	ctx := context.Background()

	res, err := f.svc.Send(ctx, SendRequest{Phone: "010-9999-0000", Content: "hello", MessageType: templates.TypeSMS}, "kim")
	require.ErrorIs(t, err, ErrSendFailed)
	require.NotNil(t, res)
	assert.Equal(t, StatusFailed, res.Log.Status)
	assert.Equal(t, "carrier timeout", res.Log.ErrorMessage)

	logs, _, err := f.logs.List(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, StatusFailed, logs[0].Status)
	assert.Equal(t, 1.0, f.sends(t, "SMS", "failed"))
}

func TestSendRetryAfterGatewayFailureIsDelivered(t *testing.T) {
	gw := &flakyGateway{failures: 1}
	f := newFixture(t, gw)
	ctx := context.Background()
	req := SendRequest{Phone: "010-9999-0000", Content: "hello", MessageType: templates.TypeSMS}

	_, err := f.svc.Send(ctx, req, "kim")
	require.ErrorIs(t, err, ErrSendFailed)

	res, err := f.svc.Send(ctx, req, "kim")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, StatusSuccess, res.Log.Status)
	assert.Equal(t, "carrier-2", res.Log.ProviderID)
	assert.Equal(t, 2, gw.calls)

	res, err = f.svc.Send(ctx, req, "kim")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 2, gw.calls)

	logs, _, err := f.logs.List(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestSendLogFailureReleasesClaim(t *testing.T) {
	f := newFixture(t, nil)
	dedup := NewMemoryDeduper()
	svc := NewService(f.tmpl, f.gateway, &failingLogStore{}, dedup, Config{}, logging.Default())
	ctx := context.Background()
	req := SendRequest{Phone: "010-9999-0000", Content: "hello", MessageType: templates.TypeSMS}

	_, err := svc.Send(ctx, req, "kim")
	require.EqualError(t, err, "db down")

	key := DedupKey("", "01099990000", "hello", "SMS")
	ok, err := dedup.Claim(ctx, key, DefaultDedupWindow)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendUnknownPatient(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Send(context.Background(), SendRequest{PatientID: "ghost", Content: "hi"}, "kim")
	assert.ErrorIs(t, err, templates.ErrUnknownPatient)
}
