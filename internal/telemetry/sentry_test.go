package telemetry

import (
	"fmt"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brixfix/brixfix-go/internal/buildinfo"
	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/errors"
)

// tests in this file replace the global sentry hub and reporter and must not run in parallel

func initMock(t *testing.T) *captureTransport {
	t.Helper()
	transport := &captureTransport{}
	opts := clientOptions(&conf.SentrySettings{
		Enabled:     true,
		DSN:         "https://public@sentry.example.com/1",
		Environment: "test",
	}, buildinfo.NewContext("1.0.0", "", ""))
	opts.Transport = transport
	require.NoError(t, initWithOptions(opts))
	t.Cleanup(func() {
		errors.SetTelemetryReporter(nil)
		initialized.Store(false)
		sentry.CurrentHub().BindClient(nil)
	})
	return transport
}

func TestInitSentryDisabled(t *testing.T) {
	require.NoError(t, InitSentry(&conf.SentrySettings{Enabled: false}, buildinfo.Current()))
	assert.False(t, initialized.Load())
}

func TestInitSentryRequiresDSN(t *testing.T) {
	err := InitSentry(&conf.SentrySettings{Enabled: true}, buildinfo.Current())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEnhancedErrorsReachSentryScrubbed(t *testing.T) {
	transport := initMock(t)

	errors.New(fmt.Errorf("insert for owner@example.com failed")).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("email", "owner@example.com").
		Build()

	require.True(t, transport.waitFor(1, 2*time.Second))
	ev := transport.last()
	assert.NotContains(t, ev.Message, "owner@example.com")
	assert.Contains(t, ev.Message, "[EMAIL]")
	assert.Equal(t, "datastore", ev.Tags["component"])
	assert.Equal(t, "brixfix@1.0.0", ev.Release)
}

func TestCaptureErrorSkipsReported(t *testing.T) {
	transport := initMock(t)

	ee := errors.New(fmt.Errorf("model missing")).
		Component("classifier").
		Category(errors.CategoryModelInit).
		Build()
	require.True(t, transport.waitFor(1, 2*time.Second))

	CaptureError(ee, "classifier")
	CaptureError(nil, "classifier")
	CaptureError(fmt.Errorf("plain failure at https://x.example.com/?k=v"), "api")
	require.True(t, transport.waitFor(2, 2*time.Second))

	msgs := transport.messages()
	require.Len(t, msgs, 2)
	assert.NotContains(t, msgs[1], "k=v")
}

func TestApplyPrivacyFilters(t *testing.T) {
	ev := &sentry.Event{
		Message:    "user a@b.co failed",
		ServerName: "host-1",
		User:       sentry.User{Email: "a@b.co"},
		Request:    &sentry.Request{URL: "http://x/history?email=a@b.co"},
		Exception:  []sentry.Exception{{Value: "token=abc"}},
		Extra:      map[string]any{"component": "api", "email": "a@b.co"},
		Tags:       map[string]string{"hostname": "host-1", "component": "api"},
		Contexts:   map[string]sentry.Context{"os": {}, "application": {}},
	}

	out := applyPrivacyFilters(ev)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.Nil(t, out.Request)
	assert.Equal(t, "user [EMAIL] failed", out.Message)
	assert.Equal(t, "token=[REDACTED]", out.Exception[0].Value)
	assert.NotContains(t, out.Extra, "email")
	assert.Contains(t, out.Extra, "component")
	assert.NotContains(t, out.Tags, "hostname")
	assert.NotContains(t, out.Contexts, "os")
	assert.Contains(t, out.Contexts, "application")
	assert.Nil(t, applyPrivacyFilters(nil))
}

func TestClientErrorsNotReported(t *testing.T) {
	transport := initMock(t)

	errors.New(fmt.Errorf("bad email")).
		Component("auth").
		Category(errors.CategoryValidation).
		Build()
	errors.New(fmt.Errorf("storage down")).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()

	require.True(t, transport.waitFor(1, 2*time.Second))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, transport.count())
	assert.Contains(t, transport.last().Message, "storage down")
}
