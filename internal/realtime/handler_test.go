package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

func TestHandleWebSocketStreamsEvents(t *testing.T) {
	b := NewBroker(slog.Default())
	topic := NotificationsTopic("u1")
	subscribe := func(ctx context.Context, r *http.Request) ([]*Subscription, error) {
		return []*Subscription{b.Subscribe(ctx, "", topic)}, nil
	}

	srv := httptest.NewServer(HandleWebSocket(subscribe, slog.Default()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	// Wait for the server side to subscribe.
	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.Publish(topic, KindInsert, "mailbox_notifications", map[string]any{"id": 5})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Kind != KindInsert || ev.Table != "mailbox_notifications" {
		t.Errorf("event = %+v", ev)
	}
}

func TestHandleWebSocketRejectsTopics(t *testing.T) {
	subscribe := func(ctx context.Context, r *http.Request) ([]*Subscription, error) {
		return nil, errors.New("group not visible")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?groups=9", nil)
	HandleWebSocket(subscribe, slog.Default())(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestHandleWebSocketMergesSubscriptions(t *testing.T) {
	b := NewBroker(slog.Default())
	mine := NotificationsTopic("u1")
	group := ParticipantsTopic(3)
	subscribe := func(ctx context.Context, r *http.Request) ([]*Subscription, error) {
		return []*Subscription{b.Subscribe(ctx, "", mine), b.Subscribe(ctx, "", group)}, nil
	}

	srv := httptest.NewServer(HandleWebSocket(subscribe, slog.Default()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")
	waitSubscribers(t, b, group, 1)

	b.Publish(group, KindUpdate, "group_participants", map[string]any{"id": 1})
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Topic != group || ev.Kind != KindUpdate {
		t.Errorf("event = %+v", ev)
	}
}

func TestHandleWebSocketClosesWhenNameReused(t *testing.T) {
	b := NewBroker(slog.Default())
	topic := NotificationsTopic("u1")
	subscribe := func(ctx context.Context, r *http.Request) ([]*Subscription, error) {
		return []*Subscription{b.Subscribe(ctx, "u1/"+r.URL.Query().Get("name"), topic)}, nil
	}

	srv := httptest.NewServer(HandleWebSocket(subscribe, slog.Default()))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?name=tab"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close(ws.StatusNormalClosure, "")
	waitSubscribers(t, b, topic, 1)

	second, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close(ws.StatusNormalClosure, "")

	if _, _, err := first.Read(ctx); ws.CloseStatus(err) != ws.StatusGoingAway {
		t.Fatalf("first connection read err = %v, want going away close", err)
	}

	waitSubscribers(t, b, topic, 1)
	b.Publish(topic, KindInsert, "mailbox_notifications", map[string]any{"id": 2})
	if _, _, err := second.Read(ctx); err != nil {
		t.Fatalf("second connection read: %v", err)
	}
}

func waitSubscribers(t *testing.T, b *Broker, topic string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.SubscriberCount(topic) != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers on %s = %d, want %d", topic, b.SubscriberCount(topic), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
