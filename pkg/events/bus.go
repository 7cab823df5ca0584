// Package events is the in-process notification bus. Handlers publish action
// updates to per-thread topics; websocket sessions subscribe with a client id
// and drain their own bounded queue.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// queueCapacity bounds each subscriber queue. When a slow consumer falls this
// far behind, the oldest pending event is dropped to make room.
const queueCapacity = 1024

// Queue is a bounded per-subscriber event queue.
type Queue struct {
	topic    string
	clientID string

	mu     sync.Mutex
	ch     chan any
	closed bool
}

// Pop waits up to timeout for the next event. The second return is false when
// the queue is empty past the timeout or has been closed.
func (q *Queue) Pop(timeout time.Duration) (any, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case event, ok := <-q.ch:
		if !ok {
			return nil, false
		}
		return event, true
	case <-timer.C:
		return nil, false
	}
}

// push enqueues an event, dropping the oldest pending one when full.
func (q *Queue) push(event any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- event:
			return
		default:
		}
		select {
		case <-q.ch:
			slog.Warn("Subscriber queue full, dropping oldest event",
				"topic", q.topic, "client_id", q.clientID)
		default:
		}
	}
}

func (q *Queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Bus fans events out to subscriber queues grouped by topic.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Queue
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{topics: make(map[string]map[string]*Queue)}
}

// Subscribe registers clientID on a topic and returns its queue. Subscribing
// twice with the same client id returns the existing queue untouched.
func (b *Bus) Subscribe(topic, clientID string) *Queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[string]*Queue)
		b.topics[topic] = subs
	}
	if q, ok := subs[clientID]; ok {
		return q
	}
	q := &Queue{
		topic:    topic,
		clientID: clientID,
		ch:       make(chan any, queueCapacity),
	}
	subs[clientID] = q
	return q
}

// Unsubscribe removes clientID from a topic and closes its queue. Unknown
// topic or client ids are ignored.
func (b *Bus) Unsubscribe(topic, clientID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	q, ok := subs[clientID]
	if !ok {
		return
	}
	q.close()
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers an event to every subscriber of a topic. Publishing to a
// topic with no subscribers is a logged no-op.
func (b *Bus) Publish(topic string, event any) {
	b.mu.RLock()
	subs, ok := b.topics[topic]
	queues := make([]*Queue, 0, len(subs))
	for _, q := range subs {
		queues = append(queues, q)
	}
	b.mu.RUnlock()

	if !ok {
		slog.Debug("No subscribers for topic", "topic", topic)
		return
	}
	for _, q := range queues {
		q.push(event)
	}
}

// PublishAll delivers an event to every listed topic.
func (b *Bus) PublishAll(topics []string, event any) {
	for _, topic := range topics {
		b.Publish(topic, event)
	}
}

// SubscriberCount returns the number of subscribers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}
