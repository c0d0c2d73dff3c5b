package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/realtime"
	"github.com/dukerupert/giftpool/internal/store"
)

const participantsTable = "group_participants"

// StatusInput is a participant's answer to an invitation.
type StatusInput struct {
	Email  string                    `json:"email" validate:"required,email"`
	Status model.ParticipationStatus `json:"status" validate:"required,oneof=agreed declined"`
}

type ParticipantService struct {
	Base
	groups       *GroupService
	participants *store.ParticipantStore
	notifier     *NotificationService
	broker       *realtime.Broker
	logger       *slog.Logger
}

func NewParticipantService(base Base, groups *GroupService, participants *store.ParticipantStore, notifier *NotificationService, broker *realtime.Broker, logger *slog.Logger) *ParticipantService {
	return &ParticipantService{
		Base:         base,
		groups:       groups,
		participants: participants,
		notifier:     notifier,
		broker:       broker,
		logger:       logger,
	}
}

// GetGroupParticipants lists a group's participant rows. When the owner has
// no row one is synthesized as agreed, carrying another participant's
// contribution or the full price when there is nobody else.
func (s *ParticipantService) GetGroupParticipants(ctx context.Context, sess auth.Session, groupID int64) ([]model.Participant, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	g, err := s.groups.get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return []model.Participant{}, nil
	}
	if err := s.visible(ctx, sess, g); err != nil {
		return nil, err
	}

	rows, err := call(ctx, s.Base, "list_participants", func(ctx context.Context) ([]model.Participant, error) {
		return s.participants.ListByGroup(ctx, groupID)
	})
	if err != nil {
		return nil, err
	}
	owner, err := s.groups.ownerEmail(ctx, g)
	if err != nil {
		return nil, err
	}
	return withOwnerRow(g, owner, rows), nil
}

func withOwnerRow(g *model.Group, ownerEmail string, rows []model.Participant) []model.Participant {
	if rows == nil {
		rows = []model.Participant{}
	}
	if ownerEmail == "" {
		return rows
	}
	for _, p := range rows {
		if strings.EqualFold(p.Email, ownerEmail) {
			return rows
		}
	}

	amount := g.Price
	if len(rows) > 0 {
		amount = rows[0].ContributionAmount
	}
	ownerID := g.OwnerID
	synthetic := model.Participant{
		GroupID:             g.ID,
		UserID:              &ownerID,
		Email:               ownerEmail,
		ContributionAmount:  amount,
		ParticipationStatus: model.StatusAgreed,
		CreatedAt:           g.CreatedAt,
		UpdatedAt:           g.UpdatedAt,
		Synthetic:           true,
	}
	return append([]model.Participant{synthetic}, rows...)
}

// UpdateParticipantStatus records a participant's answer, tells the owner
// once per call, including when the owner answers on someone's behalf,
// and recalculates contributions. Only the participant or the owner may
// answer. The three steps are not atomic: a failed owner notification is
// logged and the rest continues.
func (s *ParticipantService) UpdateParticipantStatus(ctx context.Context, sess auth.Session, groupID int64, in StatusInput) (*model.Participant, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateInput(in); err != nil {
		return nil, err
	}
	g, err := s.groups.get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if g.OwnerID != sess.UserID && !strings.EqualFold(in.Email, sess.Email) {
		return nil, apperr.AccessDenied("you can only answer for yourself")
	}

	updated, err := call(ctx, s.Base, "update_participant_status", func(ctx context.Context) (*model.Participant, error) {
		return s.participants.UpdateStatus(ctx, groupID, in.Email, in.Status)
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("participant not found")
	}

	s.notifyOwner(ctx, g, in)

	list, err := s.recalculate(ctx, groupID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Email == in.Email {
			return &list[i], nil
		}
	}
	return updated, nil
}

// CalculateContributions recalculates and returns the group's shares.
func (s *ParticipantService) CalculateContributions(ctx context.Context, sess auth.Session, groupID int64) ([]model.Participant, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	g, err := s.groups.get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if err := s.visible(ctx, sess, g); err != nil {
		return nil, err
	}
	return s.recalculate(ctx, groupID)
}

// SubscribeToParticipants opens a stream of participant row changes for a
// group the caller can see. A later subscription by the same caller with
// the same name and group replaces it.
func (s *ParticipantService) SubscribeToParticipants(ctx context.Context, sess auth.Session, groupID int64, name string) (*realtime.Subscription, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	g, err := s.groups.get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if err := s.visible(ctx, sess, g); err != nil {
		return nil, err
	}
	topic := realtime.ParticipantsTopic(groupID)
	return s.broker.Subscribe(ctx, subscriptionName(sess, name, topic), topic), nil
}

func (s *ParticipantService) recalculate(ctx context.Context, groupID int64) ([]model.Participant, error) {
	list, err := call(ctx, s.Base, "calculate_group_contributions", func(ctx context.Context) ([]model.Participant, error) {
		return s.participants.Recalculate(ctx, groupID)
	})
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		s.broker.Publish(realtime.ParticipantsTopic(groupID), realtime.KindUpdate, participantsTable, p)
	}
	if list == nil {
		list = []model.Participant{}
	}
	return list, nil
}

func (s *ParticipantService) notifyOwner(ctx context.Context, g *model.Group, in StatusInput) {
	verb := "agreed to chip in for"
	if in.Status == model.StatusDeclined {
		verb = "declined to join"
	}
	meta, _ := json.Marshal(model.StatusChangeMetadata{GroupID: g.ID, Email: in.Email, Status: in.Status})
	_, err := s.notifier.Notify(ctx, store.NewNotification{
		UserID:    g.OwnerID,
		Title:     "Group gift update",
		Message:   fmt.Sprintf("%s %s %s", in.Email, verb, g.Title),
		Type:      model.NotifTypeStatusChange,
		Category:  "groups",
		ActionURL: fmt.Sprintf("/groups/%d", g.ID),
		Metadata:  meta,
	})
	if err != nil {
		s.logger.Warn("notify owner of status change", "group_id", g.ID, "email", in.Email, "error", err)
	}
}

func (s *ParticipantService) visible(ctx context.Context, sess auth.Session, g *model.Group) error {
	ok, err := s.groups.CanView(ctx, sess, g)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.AccessDenied("you are not part of this group")
	}
	return nil
}
