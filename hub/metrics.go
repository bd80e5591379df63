package hub

import "sync/atomic"

// MetricsSnapshot is a point-in-time read of a Hub's counters.
type MetricsSnapshot struct {
	Subscribers      int64
	EventsPublished  int64
	EventsDelivered  int64
	DeliveryFailures int64
}

// Metrics holds a Hub's lock-free running counters.
type Metrics struct {
	subscribers      atomic.Int64
	eventsPublished  atomic.Int64
	eventsDelivered  atomic.Int64
	deliveryFailures atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordSubscriber(delta int) {
	m.subscribers.Add(int64(delta))
}

func (m *Metrics) RecordPublished(delta int) {
	m.eventsPublished.Add(int64(delta))
}

func (m *Metrics) RecordDelivered(delta int) {
	m.eventsDelivered.Add(int64(delta))
}

func (m *Metrics) RecordDeliveryFailure(delta int) {
	m.deliveryFailures.Add(int64(delta))
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Subscribers:      m.subscribers.Load(),
		EventsPublished:  m.eventsPublished.Load(),
		EventsDelivered:  m.eventsDelivered.Load(),
		DeliveryFailures: m.deliveryFailures.Load(),
	}
}
