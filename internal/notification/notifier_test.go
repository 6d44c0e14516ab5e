package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type sent struct {
	title, body string
}

type recordingSender struct {
	mu   sync.Mutex
	err  error
	msgs []sent
	ch   chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{ch: make(chan struct{}, 16)}
}

func (r *recordingSender) Name() string { return "test" }

func (r *recordingSender) Send(_ context.Context, title, body string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, sent{title, body})
	err := r.err
	r.mu.Unlock()
	r.ch <- struct{}{}
	return err
}

func (r *recordingSender) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert")
	}
}

func event(label detection.Label, confidence float64) detection.Event {
	return detection.Event{
		ID:         42,
		Email:      "surveyor@example.com",
		Label:      label,
		Confidence: confidence,
		Timestamp:  time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		ImageName:  "img_42",
	}
}

func settings() *conf.NotificationSettings {
	return &conf.NotificationSettings{
		Enabled:       true,
		Labels:        []string{"Severe Damage"},
		MinConfidence: 70,
		Timeout:       time.Second,
	}
}

func TestFilterMatch(t *testing.T) {
	t.Parallel()

	f := NewFilter([]string{"Severe Damage", "Moderate Damage", "bogus"}, 60)

	tests := []struct {
		name   string
		ev     detection.Event
		ok     bool
		reason string
	}{
		{"severe above threshold", event(detection.SevereDamage, 90), true, ""},
		{"moderate at threshold", event(detection.ModerateDamage, 60), true, ""},
		{"light never", event(detection.LightDamage, 99), false, ReasonLabel},
		{"severe below threshold", event(detection.SevereDamage, 59.9), false, ReasonConfidence},
	}
	for _, tt := range tests {
		ok, reason := f.Match(tt.ev)
		assert.Equal(t, tt.ok, ok, tt.name)
		assert.Equal(t, tt.reason, reason, tt.name)
	}

	def := NewFilter(nil, 0)
	ok, _ := def.Match(event(detection.SevereDamage, 1))
	assert.True(t, ok)
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	title, body := FormatAlert(event(detection.SevereDamage, 91.234), language.English)
	assert.Equal(t, "BrixFix: Severe Damage", title)
	assert.Contains(t, body, "91.23%")
	assert.Contains(t, body, "s***@example.com")
	assert.NotContains(t, body, "surveyor@")
	assert.Contains(t, body, "img_42")

	title, _ = FormatAlert(event(detection.SevereDamage, 91), language.Indonesian)
	assert.Equal(t, "BrixFix: Rusak Berat", title)
}

func TestNotifierDeliversMatchingEvents(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewNotificationMetrics(registry)
	require.NoError(t, err)

	sender := newRecordingSender()
	n := NewNotifier(settings(), sender, WithMetrics(m))
	n.Start(context.Background())

	n.Handle(context.Background(), event(detection.LightDamage, 95))
	n.Handle(context.Background(), event(detection.SevereDamage, 50))
	n.Handle(context.Background(), event(detection.SevereDamage, 88))
	sender.wait(t)
	n.Stop()

	sender.mu.Lock()
	require.Len(t, sender.msgs, 1)
	assert.Contains(t, sender.msgs[0].title, "Severe Damage")
	sender.mu.Unlock()

	count, err := testutil.GatherAndCount(registry, "brixfix_notification_filter_rejections_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = testutil.GatherAndCount(registry, "brixfix_notification_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotifierRateLimit(t *testing.T) {
	sender := newRecordingSender()
	n := NewNotifier(settings(), sender, WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	n.Start(context.Background())

	n.Handle(context.Background(), event(detection.SevereDamage, 99))
	sender.wait(t)
	n.Handle(context.Background(), event(detection.SevereDamage, 99))
	n.Handle(context.Background(), event(detection.SevereDamage, 99))

	require.Eventually(t, func() bool { return len(n.queue) == 0 }, 2*time.Second, 5*time.Millisecond)
	n.Stop()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.msgs, 1)
}

func TestNotifierSendFailureDoesNotStopWorker(t *testing.T) {
	sender := newRecordingSender()
	sender.err = assert.AnError
	n := NewNotifier(settings(), sender)
	n.Start(context.Background())

	n.Handle(context.Background(), event(detection.SevereDamage, 99))
	sender.wait(t)
	n.Handle(context.Background(), event(detection.SevereDamage, 99))
	sender.wait(t)
	n.Stop()
}

func TestNotifierHandleAfterStop(t *testing.T) {
	n := NewNotifier(settings(), newRecordingSender())
	n.Start(context.Background())
	n.Stop()
	n.Stop()
	assert.NotPanics(t, func() { n.Handle(context.Background(), event(detection.SevereDamage, 99)) })
}

func TestNewShoutrrrSenderValidation(t *testing.T) {
	t.Parallel()

	_, err := NewShoutrrrSender(nil, time.Second)
	require.Error(t, err)

	_, err = NewShoutrrrSender([]string{"notaservice://token@host"}, time.Second)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "token@")
}

func TestShoutrrrSenderHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	s, err := NewShoutrrrSender([]string{"logger://"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "shoutrrr", s.Name())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, "t", "b"), context.Canceled)
	require.NoError(t, s.Send(context.Background(), "t", "b"))
}
