package service

import (
	"context"
	"testing"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/model"
)

func TestUpdateParticipantStatusAgreed(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 90, "a@x.com", "b@x.com")

	p, err := env.participants.UpdateParticipantStatus(ctx, alice, g.ID, StatusInput{Email: "A@x.com", Status: model.StatusAgreed})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if p.ParticipationStatus != model.StatusAgreed || p.AgreedAt == nil {
		t.Errorf("participant = %+v", p)
	}

	list, err := env.participants.GetGroupParticipants(ctx, owner, g.ID)
	if err != nil {
		t.Fatalf("get participants: %v", err)
	}
	var found bool
	for _, row := range list {
		if row.Email == "a@x.com" {
			found = true
			if row.ParticipationStatus != model.StatusAgreed {
				t.Errorf("status = %s, want agreed", row.ParticipationStatus)
			}
		}
	}
	if !found {
		t.Fatal("a@x.com missing from participants")
	}

	updates := notificationsOf(t, env, "owner", model.NotifTypeStatusChange)
	if len(updates) != 1 {
		t.Fatalf("expected exactly 1 owner notification, got %d", len(updates))
	}
	if updates[0].Message != "a@x.com agreed to chip in for Espresso machine" {
		t.Errorf("message = %q", updates[0].Message)
	}
}

func TestUpdateParticipantStatusDeclineRecalculates(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 90, "a@x.com", "b@x.com")

	p, err := env.participants.UpdateParticipantStatus(ctx, owner, g.ID, StatusInput{Email: "b@x.com", Status: model.StatusDeclined})
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if p.ContributionAmount != 0 {
		t.Errorf("declined contribution = %v, want 0", p.ContributionAmount)
	}

	rows := participantRows(t, env, g.ID)
	if rows["a@x.com"].ContributionAmount != 45 || rows["c@x.com"].ContributionAmount != 45 {
		t.Errorf("rows = %+v", rows)
	}

	if n := notificationsOf(t, env, "owner", model.NotifTypeStatusChange); len(n) != 1 {
		t.Errorf("owner notifications after decline = %d, want 1", len(n))
	}
}

func TestOwnerAnsweringForParticipantNotifiesOnce(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 90, "a@x.com", "b@x.com")

	if _, err := env.participants.UpdateParticipantStatus(ctx, owner, g.ID, StatusInput{Email: "b@x.com", Status: model.StatusAgreed}); err != nil {
		t.Fatalf("agree: %v", err)
	}

	updates := notificationsOf(t, env, "owner", model.NotifTypeStatusChange)
	if len(updates) != 1 {
		t.Fatalf("owner status_change notifications = %d, want 1", len(updates))
	}
	if updates[0].Message != "b@x.com agreed to chip in for Espresso machine" {
		t.Errorf("message = %q", updates[0].Message)
	}
}

func TestUpdateParticipantStatusRules(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 90, "a@x.com", "b@x.com")

	tests := []struct {
		name string
		in   StatusInput
		gid  int64
		want apperr.Code
	}{
		{"pending is not a target", StatusInput{Email: "a@x.com", Status: model.StatusPending}, g.ID, apperr.CodeValidation},
		{"someone else's row", StatusInput{Email: "b@x.com", Status: model.StatusAgreed}, g.ID, apperr.CodeAccessDenied},
		{"missing group", StatusInput{Email: "a@x.com", Status: model.StatusAgreed}, 4242, apperr.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.participants.UpdateParticipantStatus(ctx, alice, tt.gid, tt.in)
			assertCode(t, err, tt.want)
		})
	}

	_, err := env.participants.UpdateParticipantStatus(ctx, owner, g.ID, StatusInput{Email: "z@x.com", Status: model.StatusAgreed})
	assertCode(t, err, apperr.CodeNotFound)
}

func TestGetGroupParticipantsSynthesizesOwner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 90, "a@x.com", "b@x.com")

	if _, err := env.db.Exec(`DELETE FROM group_participants WHERE group_id = ? AND email = ?`, g.ID, "c@x.com"); err != nil {
		t.Fatalf("remove owner row: %v", err)
	}

	list, err := env.participants.GetGroupParticipants(ctx, owner, g.ID)
	if err != nil {
		t.Fatalf("get participants: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(list))
	}
	first := list[0]
	if !first.Synthetic || first.Email != "c@x.com" || first.ParticipationStatus != model.StatusAgreed {
		t.Errorf("synthetic row = %+v", first)
	}
	if first.ContributionAmount != 30 {
		t.Errorf("synthetic contribution = %v, want 30", first.ContributionAmount)
	}
}

func TestWithOwnerRowAlone(t *testing.T) {
	g := &model.Group{ID: 1, OwnerID: "owner", Price: 50}
	list := withOwnerRow(g, "c@x.com", nil)
	if len(list) != 1 || list[0].ContributionAmount != 50 {
		t.Errorf("list = %+v", list)
	}

	list = withOwnerRow(g, "c@x.com", []model.Participant{{Email: "C@x.com"}})
	if len(list) != 1 || list[0].Synthetic {
		t.Errorf("existing owner row should be kept: %+v", list)
	}
}

func TestGetGroupParticipantsVisibility(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 90, "b@x.com")

	_, err := env.participants.GetGroupParticipants(ctx, alice, g.ID)
	assertCode(t, err, apperr.CodeAccessDenied)

	list, err := env.participants.GetGroupParticipants(ctx, owner, 4242)
	if err != nil || len(list) != 0 {
		t.Errorf("missing group = %v, %v", list, err)
	}
}

func TestCalculateContributions(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	g := createGroup(t, env, 100, "a@x.com", "b@x.com")

	list, err := env.participants.CalculateContributions(ctx, alice, g.ID)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(list))
	}
	for _, p := range list {
		if p.ContributionAmount != 33.33 {
			t.Errorf("%s contribution = %v, want 33.33", p.Email, p.ContributionAmount)
		}
	}
}
