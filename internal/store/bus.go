// internal/store/bus.go
//
// Change bus for the session store. Coordinators publish after a settled
// mutation; views subscribe per topic and refresh. Events carry uuid IDs so
// a redelivered event is never applied twice. Channels are bounded; when a
// slow subscriber falls behind, the oldest pending event is dropped, which
// is safe because every event only means "reload this project".

package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic names the kind of change an event describes.
type Topic string

const (
	TopicAssignmentsChanged Topic = "assignments_changed"
	TopicProjectsChanged    Topic = "projects_changed"
)

const busChannelSize = 16

// Event is one change notification.
type Event struct {
	ID        string
	Topic     Topic
	ProjectID string
	Time      time.Time
}

// Logger matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Bus is a topic-keyed publish/subscribe hub with bounded per-subscriber
// buffering.
type Bus struct {
	mu          sync.Mutex
	subscribers map[Topic]map[*busSubscriber]struct{}
	seen        map[string]struct{}
	seenOrder   []string
	logger      Logger
	closed      bool
}

// BusSubscription is one active subscription.
type BusSubscription struct {
	Events <-chan Event
	cancel func()
}

// Close terminates the subscription.
func (s BusSubscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// NewBus constructs an empty bus.
func NewBus(logger Logger) *Bus {
	return &Bus{
		subscribers: map[Topic]map[*busSubscriber]struct{}{},
		seen:        map[string]struct{}{},
		logger:      logger,
	}
}

// Subscribe registers for events on a topic.
func (b *Bus) Subscribe(topic Topic) BusSubscription {
	topic = normalizeTopic(topic)
	sub := &busSubscriber{ch: make(chan Event, busChannelSize)}
	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = map[*busSubscriber]struct{}{}
	}
	b.subscribers[topic][sub] = struct{}{}
	b.mu.Unlock()
	return BusSubscription{
		Events: sub.ch,
		cancel: func() { b.remove(topic, sub) },
	}
}

// Publish delivers a change notification to every subscriber of its topic.
// A zero event ID is filled in with a fresh uuid.
func (b *Bus) Publish(topic Topic, projectID string) {
	event := Event{
		ID:        uuid.NewString(),
		Topic:     normalizeTopic(topic),
		ProjectID: projectID,
		Time:      time.Now(),
	}
	b.mu.Lock()
	if b.closed || b.isDuplicate(event.ID) {
		b.mu.Unlock()
		return
	}
	subs := make([]*busSubscriber, 0, len(b.subscribers[event.Topic]))
	for sub := range b.subscribers[event.Topic] {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	for _, sub := range subs {
		sub.deliver(event, b.logger)
	}
}

// Teardown closes the bus and every subscriber channel. Called once on
// session end.
func (b *Bus) Teardown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for sub := range subs {
			sub.close()
		}
	}
	b.subscribers = map[Topic]map[*busSubscriber]struct{}{}
}

func (b *Bus) remove(topic Topic, sub *busSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs := b.subscribers[topic]; subs != nil {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, topic)
		}
	}
	sub.close()
}

const busDedupeWindow = 256

func (b *Bus) isDuplicate(id string) bool {
	if _, ok := b.seen[id]; ok {
		return true
	}
	b.seen[id] = struct{}{}
	b.seenOrder = append(b.seenOrder, id)
	if len(b.seenOrder) > busDedupeWindow {
		oldest := b.seenOrder[0]
		b.seenOrder = b.seenOrder[1:]
		delete(b.seen, oldest)
	}
	return false
}

func normalizeTopic(topic Topic) Topic {
	return Topic(strings.TrimSpace(strings.ToLower(string(topic))))
}

type busSubscriber struct {
	ch      chan Event
	closeMu sync.Mutex
	closed  bool
}

func (s *busSubscriber) deliver(event Event, logger Logger) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- event:
	default:
		dropped := <-s.ch
		s.ch <- event
		if logger != nil {
			logger.Printf("store: bus dropped %s for project %s (subscriber behind)", dropped.Topic, dropped.ProjectID)
		}
	}
}

func (s *busSubscriber) close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
