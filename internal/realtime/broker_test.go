package realtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestSubscribePublish(t *testing.T) {
	b := NewBroker(slog.Default())
	ctx := context.Background()

	s1 := b.Subscribe(ctx, "", NotificationsTopic("u1"))
	s2 := b.Subscribe(ctx, "", NotificationsTopic("u1"), ParticipantsTopic(7))
	other := b.Subscribe(ctx, "", NotificationsTopic("u2"))

	b.Publish(NotificationsTopic("u1"), KindInsert, "mailbox_notifications", map[string]any{"id": 1})

	for _, s := range []*Subscription{s1, s2} {
		ev := recv(t, s)
		if ev.Kind != KindInsert || ev.Table != "mailbox_notifications" || ev.Topic != "notifications:u1" {
			t.Errorf("event = %+v", ev)
		}
	}
	select {
	case ev := <-other.Events():
		t.Errorf("u2 received %+v", ev)
	default:
	}

	b.Publish(ParticipantsTopic(7), KindUpdate, "group_participants", nil)
	if ev := recv(t, s2); ev.Topic != "group_participants:7" {
		t.Errorf("topic = %q", ev.Topic)
	}
}

func TestCancelClosesStream(t *testing.T) {
	b := NewBroker(slog.Default())
	topic := NotificationsTopic("u1")
	sub := b.Subscribe(context.Background(), "", topic)

	sub.Cancel()
	// Should not panic
	sub.Cancel()

	if _, ok := <-sub.Events(); ok {
		t.Error("expected closed events channel")
	}
	if got := b.SubscriberCount(topic); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
	// Publishing with no subscribers is a no-op.
	b.Publish(topic, KindDelete, "mailbox_notifications", nil)
}

func TestSameNameReplacesSubscription(t *testing.T) {
	b := NewBroker(slog.Default())
	ctx := context.Background()
	topic := NotificationsTopic("u1")

	first := b.Subscribe(ctx, "notifications-u1", topic)
	second := b.Subscribe(ctx, "notifications-u1", topic)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first subscription was not cancelled")
	}
	if got := b.SubscriberCount(topic); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	b.Publish(topic, KindInsert, "mailbox_notifications", nil)
	recv(t, second)

	// Cancelling the replaced subscription must not remove the new one.
	first.Cancel()
	if got := b.SubscriberCount(topic); got != 1 {
		t.Errorf("subscriber count after stale cancel = %d, want 1", got)
	}
}

func TestContextCancelEndsSubscription(t *testing.T) {
	b := NewBroker(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, "", ParticipantsTopic(1))

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not cancelled with context")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := NewBroker(slog.Default())
	topic := ParticipantsTopic(3)
	sub := b.Subscribe(context.Background(), "", topic)

	for i := 0; i < eventBufferSize+5; i++ {
		b.Publish(topic, KindUpdate, "group_participants", i)
	}
	if got := len(sub.events); got != eventBufferSize {
		t.Errorf("buffered = %d, want %d", got, eventBufferSize)
	}
}

func TestConcurrentPublishAndCancel(t *testing.T) {
	b := NewBroker(slog.Default())
	topic := NotificationsTopic("u1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := b.Subscribe(context.Background(), "", topic)
		wg.Add(2)
		go func() {
			defer wg.Done()
			b.Publish(topic, KindInsert, "mailbox_notifications", nil)
		}()
		go func() {
			defer wg.Done()
			sub.Cancel()
		}()
	}
	wg.Wait()

	if got := b.SubscriberCount(topic); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}
}
