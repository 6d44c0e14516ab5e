// Package notification sends alerts for stored detections that match the
// configured labels and confidence threshold.
package notification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/brixfix/brixfix-go/internal/conf"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

const (
	// DefaultQueueSize bounds alerts waiting to be sent.
	DefaultQueueSize = 50
	// DefaultRatePerMinute and DefaultBurst bound outgoing alerts.
	DefaultRatePerMinute = 60
	DefaultBurst         = 10
	// DefaultTimeout bounds one delivery when none is configured.
	DefaultTimeout = 10 * time.Second
)

// Notifier filters detection events and delivers matching ones from a
// background worker.
type Notifier struct {
	sender  Sender
	filter  Filter
	limiter *rate.Limiter
	locale  language.Tag
	timeout time.Duration
	metrics *metrics.NotificationMetrics
	queue   chan detection.Event

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithMetrics records deliveries and filter decisions.
func WithMetrics(m *metrics.NotificationMetrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithLimiter replaces the default delivery rate limit.
func WithLimiter(l *rate.Limiter) Option {
	return func(n *Notifier) { n.limiter = l }
}

// WithLocale sets the language used for label names in alerts.
func WithLocale(tag language.Tag) Option {
	return func(n *Notifier) { n.locale = tag }
}

// NewNotifier returns a Notifier delivering through sender.
func NewNotifier(settings *conf.NotificationSettings, sender Sender, opts ...Option) *Notifier {
	n := &Notifier{
		sender:  sender,
		filter:  NewFilter(settings.Labels, settings.MinConfidence),
		limiter: rate.NewLimiter(rate.Every(time.Minute/DefaultRatePerMinute), DefaultBurst),
		locale:  language.English,
		timeout: settings.Timeout,
		queue:   make(chan detection.Event, DefaultQueueSize),
		done:    make(chan struct{}),
	}
	if n.timeout <= 0 {
		n.timeout = DefaultTimeout
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start launches the delivery worker.
func (n *Notifier) Start(ctx context.Context) {
	n.startOnce.Do(func() {
		n.wg.Add(1)
		go n.run(ctx)
	})
}

// Stop halts the worker. Queued alerts that were not sent are dropped.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		close(n.done)
		n.wg.Wait()
	})
}

// Handle filters ev and queues it for delivery without blocking. It
// matches the datastore detection hook signature.
func (n *Notifier) Handle(_ context.Context, ev detection.Event) {
	select {
	case <-n.done:
		return
	default:
	}

	if ok, reason := n.filter.Match(ev); !ok {
		n.metrics.RecordFilterRejection(reason)
		return
	}
	n.metrics.RecordFilterMatch(ev.Label.String())

	select {
	case n.queue <- ev:
	default:
		n.metrics.RecordFilterRejection(ReasonQueueFull)
		GetLogger().Warn("notification queue full, dropping alert",
			logger.Uint64("detection_id", uint64(ev.ID)))
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case <-ctx.Done():
			return
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev detection.Event) {
	log := GetLogger().With(logger.Uint64("detection_id", uint64(ev.ID)))

	if !n.limiter.Allow() {
		n.metrics.RecordFilterRejection(ReasonRateLimited)
		log.Warn("alert rate limit exceeded, dropping alert")
		return
	}

	done := n.metrics.TrackDispatch()
	defer done()

	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	title, body := FormatAlert(ev, n.locale)
	start := time.Now()
	err := n.sender.Send(sendCtx, title, body)
	n.metrics.RecordDelivery(n.sender.Name(), time.Since(start), err)
	if err != nil {
		log.Warn("failed to send alert", logger.String("service", n.sender.Name()), logger.Error(err))
		return
	}
	log.Info("alert sent",
		logger.String("label", ev.Label.String()),
		logger.Float64("confidence", ev.Confidence))
}
