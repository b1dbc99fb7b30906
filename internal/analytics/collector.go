package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/linesearch/pkg/metrics"
)

// publishTimeout bounds one delivery to one publisher.
const publishTimeout = 5 * time.Second

// Publisher delivers one event. *kafka.Producer and *Aggregator implement it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// CollectorStats counts events since the collector was created.
type CollectorStats struct {
	Tracked   int64 `json:"tracked"`
	Dropped   int64 `json:"dropped"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Collector takes search events off the request path. Track only buffers;
// one goroutine hands each event to every publisher in turn.
type Collector struct {
	sinks   []Publisher
	queue   chan SearchEvent
	done    chan struct{}
	stop    sync.Once
	mu      sync.RWMutex // guards closed and sends on queue
	closed  bool
	metrics *metrics.Metrics
	log     *slog.Logger

	tracked, dropped, delivered, failed atomic.Int64
}

// NewCollector buffers up to size events (default 10000).
func NewCollector(size int, sinks ...Publisher) *Collector {
	if size <= 0 {
		size = 10000
	}
	return &Collector{
		sinks: sinks,
		queue: make(chan SearchEvent, size),
		done:  make(chan struct{}),
		log:   slog.Default().With("component", "analytics"),
	}
}

// Instrument counts dropped and failed events in m. Call before Start.
func (c *Collector) Instrument(m *metrics.Metrics) *Collector {
	c.metrics = m
	return c
}

// Start runs delivery until Close, or until ctx ends and whatever is already
// buffered has been delivered.
func (c *Collector) Start(ctx context.Context) {
	c.log.Info("analytics collector started", "buffer", cap(c.queue), "publishers", len(c.sinks))
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case ev, open := <-c.queue:
			if !open {
				return
			}
			c.deliver(ctx, ev)
		case <-ctx.Done():
			c.flush(context.WithoutCancel(ctx))
			return
		}
	}
}

func (c *Collector) flush(ctx context.Context) {
	for {
		select {
		case ev, open := <-c.queue:
			if !open {
				return
			}
			c.deliver(ctx, ev)
		default:
			return
		}
	}
}

// Track queues ev, or drops it when the buffer is full or the collector has
// been closed.
func (c *Collector) Track(ev SearchEvent) {
	c.tracked.Add(1)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.drop(ev, "analytics collector closed, event dropped")
		return
	}
	select {
	case c.queue <- ev:
	default:
		c.drop(ev, "analytics buffer full, event dropped")
	}
}

func (c *Collector) drop(ev SearchEvent, msg string) {
	c.dropped.Add(1)
	c.observe("dropped")
	c.log.Warn(msg, "query", ev.Query)
}

// Close stops intake and blocks until buffered events are delivered. Events
// tracked afterwards are counted as dropped.
func (c *Collector) Close() {
	c.stop.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.queue)
		c.mu.Unlock()
	})
	<-c.done
	s := c.Stats()
	c.log.Info("analytics collector stopped", "delivered", s.Delivered, "dropped", s.Dropped, "failed", s.Failed)
}

func (c *Collector) Stats() CollectorStats {
	return CollectorStats{
		Tracked:   c.tracked.Load(),
		Dropped:   c.dropped.Load(),
		Delivered: c.delivered.Load(),
		Failed:    c.failed.Load(),
	}
}

func (c *Collector) deliver(ctx context.Context, ev SearchEvent) {
	msg := kafka.Event{Key: string(ev.Type), Value: ev}
	for _, sink := range c.sinks {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := sink.Publish(pctx, msg)
		cancel()
		if err != nil {
			c.failed.Add(1)
			c.observe("failed")
			c.log.Error("publishing analytics event", "type", ev.Type, "error", err)
			continue
		}
		c.delivered.Add(1)
	}
}

func (c *Collector) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsLost.WithLabelValues(outcome).Inc()
	}
}
