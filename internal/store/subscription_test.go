package store

import (
	"context"
	"testing"
)

func TestCheckLimitsFreeTier(t *testing.T) {
	db := setupTestDB(t)
	seedProfile(t, db, "owner", "c@x.com")
	ss := NewSubscriptionStore(db)
	gs := NewGroupStore(db)
	ctx := context.Background()

	limits, err := ss.CheckLimits(ctx, "owner")
	if err != nil {
		t.Fatalf("check limits: %v", err)
	}
	if limits.Tier != "free" || limits.MaxGroups != 5 || !limits.CanCreateGroup {
		t.Errorf("limits = %+v", limits)
	}

	for i := 0; i < 5; i++ {
		createTestGroup(t, gs, 10)
	}
	limits, err = ss.CheckLimits(ctx, "owner")
	if err != nil {
		t.Fatalf("check limits: %v", err)
	}
	if limits.GroupCount != 5 || limits.CanCreateGroup {
		t.Errorf("limits at cap = %+v", limits)
	}

	premium, err := ss.GetTierByName(ctx, "premium")
	if err != nil || premium == nil {
		t.Fatalf("get premium: %v", err)
	}
	if err := ss.SetTier(ctx, "owner", premium.ID); err != nil {
		t.Fatalf("set tier: %v", err)
	}
	limits, err = ss.CheckLimits(ctx, "owner")
	if err != nil {
		t.Fatalf("check limits: %v", err)
	}
	if limits.Tier != "premium" || !limits.CanCreateGroup {
		t.Errorf("premium limits = %+v", limits)
	}
}

func TestReferenceData(t *testing.T) {
	db := setupTestDB(t)
	rs := NewReferenceStore(db)
	ctx := context.Background()

	ok, err := rs.CurrencyExists(ctx, "usd")
	if err != nil {
		t.Fatalf("currency exists: %v", err)
	}
	if !ok {
		t.Error("USD should exist")
	}
	ok, err = rs.CurrencyExists(ctx, "XXX")
	if err != nil {
		t.Fatalf("currency exists: %v", err)
	}
	if ok {
		t.Error("XXX should not exist")
	}

	cats, err := rs.ListPredefinedCategories(ctx)
	if err != nil {
		t.Fatalf("list predefined: %v", err)
	}
	if len(cats) != 8 || cats[0].Title != "Birthday" {
		t.Errorf("predefined = %+v", cats)
	}

	countries, err := rs.ListCountries(ctx)
	if err != nil {
		t.Fatalf("list countries: %v", err)
	}
	if len(countries) == 0 {
		t.Error("expected seeded countries")
	}
}

func TestReminderDedup(t *testing.T) {
	db := setupTestDB(t)
	seedProfile(t, db, "owner", "c@x.com")
	g := createTestGroup(t, NewGroupStore(db), 10)
	rs := NewReminderStore(db)
	ctx := context.Background()

	sent, err := rs.WasSent(ctx, g.ID, "c@x.com", 3)
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if sent {
		t.Error("expected not sent")
	}
	if err := rs.RecordSent(ctx, g.ID, "C@x.com", 3); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := rs.RecordSent(ctx, g.ID, "c@x.com", 3); err != nil {
		t.Fatalf("record twice: %v", err)
	}
	sent, err = rs.WasSent(ctx, g.ID, "c@x.com", 3)
	if err != nil {
		t.Fatalf("was sent: %v", err)
	}
	if !sent {
		t.Error("expected sent")
	}
}

func TestPushSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	seedProfile(t, db, "user-1", "one@example.com")
	seedProfile(t, db, "user-2", "two@example.com")
	ps := NewPushStore(db)
	ctx := context.Background()

	sub, err := ps.CreateSubscription(ctx, "user-1", "https://push.example.com/abc", "p256", "auth", "Phone")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	again, err := ps.CreateSubscription(ctx, "user-2", "https://push.example.com/abc", "p256b", "authb", "Laptop")
	if err != nil {
		t.Fatalf("re-create: %v", err)
	}
	if again.ID != sub.ID || again.UserID != "user-2" || again.AuthKey != "authb" {
		t.Errorf("upserted = %+v", again)
	}

	list, err := ps.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("user-1 subscriptions = %d, want 0", len(list))
	}

	if err := ps.DeleteSubscription(ctx, "user-2", sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := ps.GetByID(ctx, "user-2", sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
