package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/dukerupert/giftpool/internal/model"
)

func TestNotificationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	seedProfile(t, db, "user-1", "one@example.com")
	ns := NewNotificationStore(db)
	ctx := context.Background()

	meta, _ := json.Marshal(model.InviteMetadata{GroupID: 7, GroupTitle: "Espresso"})
	n, err := ns.Create(ctx, NewNotification{
		UserID:         "user-1",
		Title:          "Group invitation",
		Message:        "You were invited",
		Type:           model.NotifTypeGroupInvite,
		RequiresAction: true,
		Metadata:       meta,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.Status != model.NotificationActive || n.Priority != "normal" || !n.RequiresAction {
		t.Errorf("notification = %+v", n)
	}
	var got model.InviteMetadata
	if err := json.Unmarshal(n.Metadata, &got); err != nil || got.GroupID != 7 {
		t.Errorf("metadata = %s (%v)", n.Metadata, err)
	}

	count, err := ns.UnreadCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Errorf("unread = %d, want 1", count)
	}

	changed, err := ns.MarkRead(ctx, "user-2", n.ID)
	if err != nil {
		t.Fatalf("mark read other user: %v", err)
	}
	if changed {
		t.Error("other user must not mark read")
	}

	changed, err = ns.MarkRead(ctx, "user-1", n.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !changed {
		t.Error("expected mark read to change row")
	}

	changed, err = ns.Archive(ctx, "user-1", n.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !changed {
		t.Error("expected archive to change row")
	}

	// Archived notifications never return to read.
	changed, err = ns.MarkRead(ctx, "user-1", n.ID)
	if err != nil {
		t.Fatalf("mark read archived: %v", err)
	}
	if changed {
		t.Error("archived notification went back to read")
	}

	n, err = ns.GetByID(ctx, n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n.Status != model.NotificationArchived || n.ReadAt == nil || n.ArchivedAt == nil {
		t.Errorf("archived notification = %+v", n)
	}

	active, err := ns.ListActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active notifications, got %d", len(active))
	}
}

func TestNotificationMarkAllRead(t *testing.T) {
	db := setupTestDB(t)
	seedProfile(t, db, "user-1", "one@example.com")
	ns := NewNotificationStore(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := ns.Create(ctx, NewNotification{UserID: "user-1", Title: "t", Message: "m", Type: model.NotifTypeDirect}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	n, err := ns.MarkAllRead(ctx, "user-1")
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 3 {
		t.Errorf("marked = %d, want 3", n)
	}
	count, err := ns.UnreadCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Errorf("unread = %d, want 0", count)
	}
	list, err := ns.ListActive(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("read notifications should still be listed, got %d", len(list))
	}
}

func TestNotificationBroadcastAndLatest(t *testing.T) {
	db := setupTestDB(t)
	seedProfile(t, db, "user-1", "one@example.com")
	seedProfile(t, db, "user-2", "two@example.com")
	ns := NewNotificationStore(db)
	ctx := context.Background()

	sent, err := ns.Broadcast(ctx, NewNotification{Title: "Maintenance", Message: "Tonight", Type: model.NotifTypeBroadcast, Priority: "high"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(sent) != 2 {
		t.Fatalf("broadcast created %d, want 2", len(sent))
	}

	latest, err := ns.Latest(ctx, "user-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.UserID != "user-1" || latest.Priority != "high" {
		t.Errorf("latest = %+v", latest)
	}

	none, err := ns.Latest(ctx, "user-3")
	if err != nil {
		t.Fatalf("latest missing: %v", err)
	}
	if none != nil {
		t.Error("expected nil latest for user without notifications")
	}
}
