package bus

import (
	"log/slog"
	"sync"

	"fleettrack/internal/observability"
)

// Topics carried by the in-process bus.
const (
	TopicGPSUpdated    = "gps.updated"
	TopicGPSDiscovered = "gps.discovered"
)

// Handler consumes one published payload.
type Handler func(payload any)

// Bus is an in-process publish/subscribe channel decoupling the fetch cycle
// from its consumers. Delivery is at-least-once and does not survive a
// restart; durability lives in the ingest queue, not here.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *slog.Logger
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers the payload to every subscriber of the topic. Each handler
// runs isolated: a panic in one is recovered and logged and never prevents
// the remaining handlers from receiving the event.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	hs := b.handlers[topic]
	b.mu.RUnlock()

	observability.EventsPublished.WithLabelValues(topic).Inc()

	for _, h := range hs {
		b.invoke(topic, h, payload)
	}
}

func (b *Bus) invoke(topic string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "topic", topic, "panic", r)
		}
	}()
	h(payload)
}
