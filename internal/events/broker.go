// Path: internal/events/broker.go
package events

import "sync"

// subscriberBuffer is how many events a slow subscriber may lag before drops.
const subscriberBuffer = 16

// Event represents a message passed through the broker.
type Event struct {
	Topic string
	Data  any
}

// Broker implements a simple in-memory pub/sub system.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[string][]chan Event
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string][]chan Event),
	}
}

// Subscribe creates a new subscription to each of the given topics.
// All topics share the returned channel; release it with Unsubscribe.
func (b *Broker) Subscribe(topics ...string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer) // Buffered channel to prevent blocking publishers
	for _, topic := range topics {
		b.subscribers[topic] = append(b.subscribers[topic], ch)
	}
	return ch
}

// Unsubscribe removes ch from every topic and closes it.
func (b *Broker) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var found chan Event
	for topic, subs := range b.subscribers {
		kept := subs[:0]
		for _, sub := range subs {
			if (<-chan Event)(sub) == ch {
				found = sub
				continue
			}
			kept = append(kept, sub)
		}
		if len(kept) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = kept
		}
	}
	if found != nil {
		close(found)
	}
}

// Publish sends an event to all subscribers of a topic.
func (b *Broker) Publish(topic string, data any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Topic: topic, Data: data}
	if subscribers, found := b.subscribers[topic]; found {
		for _, ch := range subscribers {
			// Non-blocking send
			select {
			case ch <- event:
			default:
				// Subscriber is not ready, drop the event to avoid blocking.
			}
		}
	}
}
