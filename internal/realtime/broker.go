// Package realtime fans out row change events to subscribers by topic.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const eventBufferSize = 16

// Kind is the type of row change an Event describes.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event is a change to one row of a table.
type Event struct {
	Kind  Kind      `json:"kind"`
	Table string    `json:"table"`
	Topic string    `json:"topic"`
	Row   any       `json:"row"`
	At    time.Time `json:"at"`
}

// NotificationsTopic carries mailbox_notifications changes for one user.
func NotificationsTopic(userID string) string {
	return "notifications:" + userID
}

// ParticipantsTopic carries group_participants changes for one group.
func ParticipantsTopic(groupID int64) string {
	return fmt.Sprintf("group_participants:%d", groupID)
}

// Broker maintains subscriptions per topic and publishes events to them.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	named  map[string]*Subscription
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		topics: make(map[string]map[*Subscription]struct{}),
		named:  make(map[string]*Subscription),
		logger: logger,
	}
}

// Subscribe opens a stream of events for the given topics. A non-empty name
// replaces any live subscription with the same name. The subscription is
// cancelled when ctx is done.
func (b *Broker) Subscribe(ctx context.Context, name string, topics ...string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Name:   name,
		topics: topics,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		broker: b,
	}

	b.mu.Lock()
	if name != "" {
		if prev, ok := b.named[name]; ok {
			b.removeLocked(prev)
		}
		b.named[name] = sub
	}
	for _, t := range topics {
		set, ok := b.topics[t]
		if !ok {
			set = make(map[*Subscription]struct{})
			b.topics[t] = set
		}
		set[sub] = struct{}{}
	}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	return sub
}

// Publish delivers ev to every subscriber of topic. Subscribers whose buffer
// is full miss the event.
func (b *Broker) Publish(topic string, kind Kind, table string, row any) {
	ev := Event{Kind: kind, Table: table, Topic: topic, Row: row, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.topics[topic] {
		select {
		case sub.events <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"topic", topic, "subscription", sub.ID)
		}
	}
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	b.removeLocked(sub)
	b.mu.Unlock()
}

func (b *Broker) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	for _, t := range sub.topics {
		if set, ok := b.topics[t]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.topics, t)
			}
		}
	}
	if sub.Name != "" && b.named[sub.Name] == sub {
		delete(b.named, sub.Name)
	}
	close(sub.events)
	close(sub.done)
}

// Subscription is a cancelable stream of events.
type Subscription struct {
	ID   string
	Name string

	topics []string
	events chan Event
	done   chan struct{}
	broker *Broker
	closed bool // guarded by broker.mu
}

// Events yields events until the subscription is cancelled, then closes.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Topics returns the topics this subscription listens on.
func (s *Subscription) Topics() []string {
	return s.topics
}

// Cancel stops the stream. It is safe to call more than once.
func (s *Subscription) Cancel() {
	s.broker.remove(s)
}
