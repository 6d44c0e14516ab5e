package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/logger"
	"github.com/brixfix/brixfix-go/internal/observability/metrics"
)

// DefaultQueueSize bounds events waiting to be published.
const DefaultQueueSize = 100

// Publisher forwards detection events to the broker from a single worker
// goroutine so that request handlers never wait on the network.
type Publisher struct {
	client  Client
	topic   string
	metrics *metrics.MQTTMetrics
	queue   chan detection.Event

	connectTimeout time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewPublisher returns a Publisher writing to topic through client.
func NewPublisher(client Client, topic string, m *metrics.MQTTMetrics, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		client:         client,
		topic:          topic,
		metrics:        m,
		queue:          make(chan detection.Event, queueSize),
		connectTimeout: DefaultConfig().ConnectTimeout,
		done:           make(chan struct{}),
	}
}

// Start launches the worker. The first connection is attempted by the
// worker, so a broker that is down at startup does not block the caller.
func (p *Publisher) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.run(ctx)
	})
}

// Handle enqueues ev for publishing. It matches the datastore detection
// hook signature and never blocks; events are dropped when the queue is full.
func (p *Publisher) Handle(_ context.Context, ev detection.Event) {
	select {
	case <-p.done:
		return
	default:
	}

	select {
	case p.queue <- ev:
	default:
		p.metrics.IncrementErrors()
		GetLogger().Warn("mqtt queue full, dropping detection event",
			logger.Uint64("detection_id", uint64(ev.ID)))
	}
}

// Stop halts the worker, publishes nothing further and disconnects.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.client.Disconnect()
	})
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()

	p.ensureConnected(ctx)

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.publish(ctx, ev)
		}
	}
}

func (p *Publisher) ensureConnected(ctx context.Context) bool {
	if p.client.IsConnected() {
		return true
	}
	connectCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	if err := p.client.Connect(connectCtx); err != nil {
		GetLogger().Warn("mqtt connect failed", logger.Error(err))
		return false
	}
	return true
}

func (p *Publisher) publish(ctx context.Context, ev detection.Event) {
	log := GetLogger().With(logger.Uint64("detection_id", uint64(ev.ID)))

	payload, err := NewDetectionMessage(ev).Marshal()
	if err != nil {
		p.metrics.IncrementErrors()
		log.Error("failed to encode detection message", logger.Error(err))
		return
	}

	if !p.ensureConnected(ctx) {
		p.metrics.IncrementErrors()
		log.Warn("dropping detection event, broker unavailable")
		return
	}

	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		p.metrics.IncrementErrors()
		log.Warn("failed to publish detection", logger.String("topic", p.topic), logger.Error(err))
		return
	}
	log.Debug("detection published", logger.String("topic", p.topic), logger.Int("bytes", len(payload)))
}
