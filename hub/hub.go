package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tailored-agentic-units/orchestrator/observability"
)

type subscription struct {
	handler EventHandler
	channel *MessageChannel[observability.Event]
}

// Hub is an in-process event broadcaster. It implements
// observability.Observer so it can be wired as the single observer
// passed to the Driver, Executor, and Workspace Manager — every event
// any of them emits is fanned out here to every subscriber.
type Hub struct {
	name string

	subs map[string]*subscription
	mu   sync.RWMutex

	bufferSize int
	logger     *slog.Logger
	metrics    *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Hub. The returned Hub's internal subscriber delivery
// goroutines are tied to ctx; Shutdown cancels them.
func New(ctx context.Context, cfg *Config) *Hub {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	hubCtx, cancel := context.WithCancel(ctx)

	return &Hub{
		name:       cfg.Name,
		subs:       make(map[string]*subscription),
		bufferSize: cfg.ChannelBufferSize,
		logger:     slog.Default(),
		metrics:    NewMetrics(),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Subscribe registers handler under id. A dedicated goroutine drains id's
// channel and invokes handler for each delivered event until Unsubscribe
// or Shutdown.
func (h *Hub) Subscribe(id string, handler EventHandler) error {
	h.mu.Lock()
	if _, exists := h.subs[id]; exists {
		h.mu.Unlock()
		return fmt.Errorf("subscriber already registered: %s", id)
	}

	sub := &subscription{
		handler: handler,
		channel: NewMessageChannel[observability.Event](h.ctx, h.bufferSize),
	}
	h.subs[id] = sub
	h.mu.Unlock()

	h.metrics.RecordSubscriber(1)
	h.wg.Add(1)
	go h.consume(id, sub)

	h.logger.DebugContext(h.ctx, "subscriber registered",
		slog.String("hub_name", h.name), slog.String("subscriber_id", id))

	return nil
}

// Unsubscribe removes id and closes its channel, stopping its consume
// goroutine.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	sub, exists := h.subs[id]
	if exists {
		delete(h.subs, id)
		sub.channel.Close()
	}
	h.mu.Unlock()

	if !exists {
		return fmt.Errorf("subscriber not found: %s", id)
	}
	h.metrics.RecordSubscriber(-1)
	return nil
}

// OnEvent implements observability.Observer: it fans event out to every
// current subscriber's channel. A subscriber whose channel is full (or
// whose context has been cancelled) is skipped rather than blocking
// delivery to the rest.
func (h *Hub) OnEvent(ctx context.Context, event observability.Event) {
	h.mu.RLock()
	subs := make([]*subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.channel.channel <- event:
			h.metrics.RecordPublished(1)
		default:
			h.metrics.RecordDeliveryFailure(1)
			h.logger.WarnContext(ctx, "subscriber channel full, dropping event",
				slog.String("hub_name", h.name), slog.String("event_type", string(event.Type)))
		}
	}
}

func (h *Hub) consume(id string, sub *subscription) {
	defer h.wg.Done()
	for {
		event, err := sub.channel.Receive(h.ctx)
		if err != nil {
			return
		}
		if sub.channel.IsClosed() {
			return
		}
		if sub.handler == nil {
			continue
		}
		if err := sub.handler(h.ctx, event); err != nil {
			h.logger.ErrorContext(h.ctx, "subscriber handler failed",
				slog.String("hub_name", h.name), slog.String("subscriber_id", id), slog.String("error", err.Error()))
			continue
		}
		h.metrics.RecordDelivered(1)
	}
}

// Metrics returns a snapshot of the Hub's delivery counters.
func (h *Hub) Metrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// Shutdown cancels delivery to every subscriber and waits for their
// consume goroutines to exit, up to timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.DebugContext(h.ctx, "shutting down hub", slog.String("hub_name", h.name))
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("hub shutdown timeout after %v", timeout)
	}
}
