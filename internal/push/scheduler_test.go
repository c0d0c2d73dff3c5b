package push

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/giftpool/internal/database"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/store"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []store.NewNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, n store.NewNotification) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return &model.Notification{UserID: n.UserID, Type: n.Type}, nil
}

func setupScheduler(t *testing.T, groupDate time.Time) (*Scheduler, *recordingNotifier) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	profiles := store.NewProfileStore(db)
	for _, p := range [][2]string{{"owner", "c@x.com"}, {"alice", "a@x.com"}} {
		if _, err := profiles.Upsert(ctx, p[0], p[1], ""); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}

	owner := "owner"
	alice := "alice"
	groups := store.NewGroupStore(db)
	_, err = groups.Create(ctx, "owner", "tok-1", store.GroupFields{
		Title: "Espresso", Occasion: "Birthday", Price: 90, Currency: "USD", Date: &groupDate, Color: "#FFD1DC",
	}, []store.ParticipantSeed{
		{UserID: &owner, Email: "c@x.com", Status: model.StatusAgreed, Contribution: 30},
		{UserID: &alice, Email: "a@x.com", Status: model.StatusAgreed, Contribution: 30},
		{Email: "b@x.com", Status: model.StatusPending, Contribution: 30},
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	n := &recordingNotifier{}
	s := NewScheduler(groups, store.NewParticipantStore(db), store.NewReminderStore(db), n, 3, slog.Default())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return s, n
}

func TestSchedulerSendsOncePerParticipant(t *testing.T) {
	s, n := setupScheduler(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))

	s.tick(context.Background())
	if len(n.sent) != 2 {
		t.Fatalf("sent %d reminders, want 2 (agreed participants with accounts)", len(n.sent))
	}
	for _, sent := range n.sent {
		if sent.Type != model.NotifTypeGroupReminder {
			t.Errorf("type = %q", sent.Type)
		}
		if sent.Message != "Espresso is in 2 days. Your share is 30.00 USD." {
			t.Errorf("message = %q", sent.Message)
		}
	}

	s.tick(context.Background())
	if len(n.sent) != 2 {
		t.Errorf("second tick sent %d total, want 2", len(n.sent))
	}
}

func TestSchedulerRemindsOncePerRemainingDay(t *testing.T) {
	s, n := setupScheduler(t, time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC))

	s.tick(context.Background())
	s.now = func() time.Time { return time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC) }
	s.tick(context.Background())
	s.tick(context.Background())

	if len(n.sent) != 4 {
		t.Fatalf("sent %d reminders over two days, want 4", len(n.sent))
	}
	for _, sent := range n.sent[2:] {
		if sent.Message != "Espresso is tomorrow. Your share is 30.00 USD." {
			t.Errorf("message = %q", sent.Message)
		}
	}
}

func TestSchedulerIgnoresDistantGroups(t *testing.T) {
	s, n := setupScheduler(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	s.tick(context.Background())
	if len(n.sent) != 0 {
		t.Errorf("sent %d reminders for a distant group", len(n.sent))
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, _ := setupScheduler(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	s.interval = 10 * time.Millisecond
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
