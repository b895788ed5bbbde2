// Package bus provides a lightweight publish/subscribe event dispatcher.
//
// The caches in this kit publish population and eviction events through
// a Bus; observers subscribe to persist state, collect metrics, or
// forward events to external systems (see Forwarder for the Kafka
// bridge). Delivery is synchronous and fire-and-forget: Publish never
// reports handler failures back to the publisher.
package bus

import (
	"sync"

	"github.com/dailyyoga/datakit/logger"
	"go.uber.org/zap"
)

// TopicAll subscribes a handler to every topic.
const TopicAll = "*"

// Fields carries the attributes of a published event.
type Fields map[string]any

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not block for long.
type Handler func(topic string, fields Fields)

// Subscription identifies a registered handler.
type Subscription struct {
	topic string
	id    uint64
	bus   *memoryBus
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s)
}

// Bus is the publish/subscribe contract consumed by the caches.
type Bus interface {
	// Publish delivers an event to all handlers subscribed to topic
	// (and to TopicAll). It is a no-op after Close.
	Publish(topic string, fields Fields)

	// Subscribe registers a handler for topic. Use TopicAll to receive
	// every event.
	Subscribe(topic string, h Handler) *Subscription

	// Close stops delivery. One-way.
	Close()
}

type memoryBus struct {
	log logger.Logger

	mu     sync.RWMutex
	subs   map[string]map[uint64]Handler
	seq    uint64
	closed bool
}

// New creates an in-memory Bus.
func New(log logger.Logger) Bus {
	return &memoryBus{
		log:  log,
		subs: make(map[string]map[uint64]Handler),
	}
}

func (b *memoryBus) Publish(topic string, fields Fields) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subs[topic])+len(b.subs[TopicAll]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subs[TopicAll] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(topic, fields, h)
	}
}

// dispatch runs one handler, isolating the publisher from panics.
func (b *memoryBus) dispatch(topic string, fields Fields, h Handler) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error("event handler panicked",
				zap.String("topic", topic),
				zap.Any("panic", rec),
			)
		}
	}()
	h(topic, fields)
}

func (b *memoryBus) Subscribe(topic string, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return &Subscription{}
	}

	b.seq++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]Handler)
	}
	b.subs[topic][b.seq] = h

	return &Subscription{topic: topic, id: b.seq, bus: b}
}

func (b *memoryBus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[s.topic]; ok {
		delete(handlers, s.id)
		if len(handlers) == 0 {
			delete(b.subs, s.topic)
		}
	}
}

func (b *memoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.subs = make(map[string]map[uint64]Handler)
}
