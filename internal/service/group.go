package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/email"
	"github.com/dukerupert/giftpool/internal/metrics"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/realtime"
	"github.com/dukerupert/giftpool/internal/store"
)

// Mailer sends invitation emails to people without an account.
type Mailer interface {
	Configured() bool
	SendGroupInvitation(ctx context.Context, inv email.Invitation) error
}

// GroupInput is a group after the payload's field pairs are resolved.
type GroupInput struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Occasion        string   `json:"occasion" validate:"required,max=500"`
	Price           float64  `json:"price" validate:"gt=0"`
	Currency        string   `json:"currency" validate:"required,len=3"`
	ProductImageURL string   `json:"product_image_url" validate:"omitempty,max=2048"`
	Comments        string   `json:"comments" validate:"max=2000"`
	Participants    []string `json:"participants" validate:"dive,email"`
}

// merge applies the fields present in p over in. The date is returned
// separately: changed reports whether p carried one at all.
func (in GroupInput) merge(p model.GroupPayload) (out GroupInput, date *time.Time, changed bool, err error) {
	out = in
	if v := p.ResolvedTitle(); v != nil {
		out.Title = strings.TrimSpace(*v)
	}
	if v := p.ResolvedOccasion(); v != nil {
		out.Occasion = strings.TrimSpace(*v)
	}
	if v := p.ResolvedPrice(); v != nil {
		out.Price = *v
	}
	if p.Currency != nil {
		out.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if v := p.ResolvedImageURL(); v != nil {
		out.ProductImageURL = strings.TrimSpace(*v)
	}
	if p.Comments != nil {
		out.Comments = strings.TrimSpace(*p.Comments)
	}
	if p.Participants != nil {
		out.Participants = make([]string, 0, len(*p.Participants))
		for _, e := range *p.Participants {
			if e = strings.TrimSpace(e); e != "" {
				out.Participants = append(out.Participants, e)
			}
		}
	}
	date, err = p.ResolvedDate()
	if err != nil {
		return out, nil, false, apperr.Validation("date must be a calendar date")
	}
	return out, date, p.Date != nil, nil
}

func inputOf(g *model.Group) GroupInput {
	return GroupInput{
		Title:           g.Title,
		Occasion:        g.Occasion,
		Price:           g.Price,
		Currency:        g.Currency,
		ProductImageURL: g.ProductImageURL,
		Comments:        g.Comments,
	}
}

type GroupService struct {
	Base
	groups        *store.GroupStore
	participants  *store.ParticipantStore
	profiles      *store.ProfileStore
	subscriptions *store.SubscriptionStore
	reference     *store.ReferenceStore
	notifier      *NotificationService
	mailer        Mailer
	broker        *realtime.Broker
	logger        *slog.Logger
}

type GroupServiceConfig struct {
	Groups        *store.GroupStore
	Participants  *store.ParticipantStore
	Profiles      *store.ProfileStore
	Subscriptions *store.SubscriptionStore
	Reference     *store.ReferenceStore
	Notifier      *NotificationService
	Mailer        Mailer
	Broker        *realtime.Broker
	Logger        *slog.Logger
}

func NewGroupService(base Base, cfg GroupServiceConfig) *GroupService {
	return &GroupService{
		Base:          base,
		groups:        cfg.Groups,
		participants:  cfg.Participants,
		profiles:      cfg.Profiles,
		subscriptions: cfg.Subscriptions,
		reference:     cfg.Reference,
		notifier:      cfg.Notifier,
		mailer:        cfg.Mailer,
		broker:        cfg.Broker,
		logger:        cfg.Logger,
	}
}

// GetGroups returns the groups the caller owns followed by the groups they
// agreed to join, each with its participant emails.
func (s *GroupService) GetGroups(ctx context.Context, sess auth.Session) ([]model.Group, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	owned, err := call(ctx, s.Base, "list_owned_groups", func(ctx context.Context) ([]model.Group, error) {
		return s.groups.ListOwned(ctx, sess.UserID)
	})
	if err != nil {
		return nil, err
	}
	joined, err := call(ctx, s.Base, "list_participating_groups", func(ctx context.Context) ([]model.Group, error) {
		return s.groups.ListParticipating(ctx, sess.UserID, sess.Email)
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(owned)+len(joined))
	groups := make([]model.Group, 0, len(owned)+len(joined))
	for _, g := range append(owned, joined...) {
		if seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		if err := s.withParticipants(ctx, &g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// GetGroupByID is a public read for the share-link flow. A missing group is
// nil without an error.
func (s *GroupService) GetGroupByID(ctx context.Context, id int64) (*model.Group, error) {
	if s.db == nil {
		return nil, apperr.ErrDBNotInitialized
	}
	g, err := s.get(ctx, id)
	if err != nil || g == nil {
		return nil, err
	}
	if err := s.withParticipants(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GroupService) GetGroupByShareToken(ctx context.Context, token string) (*model.Group, error) {
	if s.db == nil {
		return nil, apperr.ErrDBNotInitialized
	}
	if token == "" {
		return nil, nil
	}
	g, err := call(ctx, s.Base, "get_group_by_share_token", func(ctx context.Context) (*model.Group, error) {
		return s.groups.GetByShareToken(ctx, token)
	})
	if err != nil || g == nil {
		return nil, err
	}
	if err := s.withParticipants(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GroupService) CreateGroup(ctx context.Context, sess auth.Session, p model.GroupPayload) (*model.Group, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	in, date, _, err := GroupInput{}.merge(p)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.checkCurrency(ctx, in.Currency); err != nil {
		return nil, err
	}
	invitees := normalizeEmails(in.Participants, sess.Email)
	if err := s.checkLimits(ctx, sess, true, len(invitees)+1); err != nil {
		return nil, err
	}

	f := store.GroupFields{
		Title:           in.Title,
		Occasion:        in.Occasion,
		Price:           in.Price,
		Currency:        in.Currency,
		ProductImageURL: in.ProductImageURL,
		Date:            date,
		Comments:        in.Comments,
		Color:           randomColor(),
	}
	g, err := s.create(ctx, sess, f, invitees)
	if err != nil {
		return nil, err
	}

	s.invite(ctx, sess, g, invitees)
	return g, nil
}

// UpdateGroup applies the fields present in p. When p carries a participant
// list the stored rows are synced to it in the same transaction and newly
// added people are invited afterwards.
func (s *GroupService) UpdateGroup(ctx context.Context, sess auth.Session, id int64, p model.GroupPayload) (*model.Group, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	current, err := s.ownedBy(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	in, date, dateSet, err := inputOf(current).merge(p)
	if err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.Currency != current.Currency {
		if err := s.checkCurrency(ctx, in.Currency); err != nil {
			return nil, err
		}
	}
	if !dateSet {
		date = current.Date
	}

	var seeds []store.ParticipantSeed
	if p.Participants != nil {
		invitees := normalizeEmails(in.Participants, sess.Email)
		if err := s.checkLimits(ctx, sess, false, len(invitees)+1); err != nil {
			return nil, err
		}
		seeds, err = s.seeds(ctx, sess, invitees, 0)
		if err != nil {
			return nil, err
		}
	}

	f := store.GroupFields{
		Title:           in.Title,
		Occasion:        in.Occasion,
		Price:           in.Price,
		Currency:        in.Currency,
		ProductImageURL: in.ProductImageURL,
		Date:            date,
		Comments:        in.Comments,
		Color:           current.Color,
	}
	type updated struct {
		group *model.Group
		diff  *store.ParticipantDiff
	}
	res, err := call(ctx, s.Base, "update_group", func(ctx context.Context) (updated, error) {
		g, diff, err := s.groups.Update(ctx, id, f, seeds)
		return updated{g, diff}, err
	})
	if err != nil {
		return nil, err
	}
	if res.group == nil {
		return nil, apperr.NotFound("group not found")
	}
	g := res.group

	if err := s.withParticipants(ctx, g); err != nil {
		return nil, err
	}
	s.publishRecalculated(ctx, g.ID, res.diff)
	if res.diff != nil {
		s.invite(ctx, sess, g, normalizeEmails(res.diff.Added, sess.Email))
	}
	return g, nil
}

// DeleteGroup removes a group the caller owns.
func (s *GroupService) DeleteGroup(ctx context.Context, sess auth.Session, id int64) error {
	if err := s.ready(sess); err != nil {
		return err
	}
	deleted, err := call(ctx, s.Base, "delete_group", func(ctx context.Context) (bool, error) {
		return s.groups.Delete(ctx, sess.UserID, id)
	})
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("group not found")
	}
	return nil
}

// AcceptGroupInvitation forks the group an invitation points at into a new
// group owned by the caller and marks the invitation read. The original
// group is left unchanged. An invitation can be accepted once; read or
// archived invitations are rejected with a conflict.
func (s *GroupService) AcceptGroupInvitation(ctx context.Context, sess auth.Session, notificationID int64) (*model.Group, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	n, err := call(ctx, s.Base, "get_notification", func(ctx context.Context) (*model.Notification, error) {
		return s.notifier.notifications.GetByID(ctx, notificationID)
	})
	if err != nil {
		return nil, err
	}
	if n == nil || n.UserID != sess.UserID {
		return nil, apperr.NotFound("invitation not found")
	}
	if n.Type != model.NotifTypeGroupInvite {
		return nil, apperr.Validation("notification is not a group invitation")
	}
	if n.Status != model.NotificationActive {
		return nil, apperr.New(apperr.CodeConflict, "this invitation has already been handled")
	}
	var meta model.InviteMetadata
	if err := json.Unmarshal(n.Metadata, &meta); err != nil || meta.GroupID == 0 {
		return nil, apperr.Validation("invitation does not name a group")
	}

	source, err := s.get(ctx, meta.GroupID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperr.NotFound("the group for this invitation no longer exists")
	}
	clone, err := s.fork(ctx, sess, source)
	if err != nil {
		return nil, err
	}

	if _, err := s.notifier.MarkAsRead(ctx, sess, n.ID); err != nil {
		s.logger.Warn("mark invitation read", "notification_id", n.ID, "error", err)
	}
	return clone, nil
}

// CopySharedGroup forks a shared group into a new group owned by the caller.
func (s *GroupService) CopySharedGroup(ctx context.Context, sess auth.Session, groupID int64) (*model.Group, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	source, err := s.get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, apperr.NotFound("group not found")
	}
	return s.fork(ctx, sess, source)
}

// CanView reports whether the caller owns the group or has a participant
// row in it.
func (s *GroupService) CanView(ctx context.Context, sess auth.Session, g *model.Group) (bool, error) {
	if g.OwnerID == sess.UserID {
		return true, nil
	}
	p, err := call(ctx, s.Base, "get_participant", func(ctx context.Context) (*model.Participant, error) {
		return s.participants.Get(ctx, g.ID, sess.Email)
	})
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// fork clones source for the caller: every original participant, creator
// included, becomes pending except the caller, who is the agreed owner.
func (s *GroupService) fork(ctx context.Context, sess auth.Session, source *model.Group) (*model.Group, error) {
	if err := s.withParticipants(ctx, source); err != nil {
		return nil, err
	}
	invitees := normalizeEmails(source.Participants, sess.Email)
	if err := s.checkLimits(ctx, sess, true, len(invitees)+1); err != nil {
		return nil, err
	}
	f := store.GroupFields{
		Title:           source.Title,
		Occasion:        source.Occasion,
		Price:           source.Price,
		Currency:        source.Currency,
		ProductImageURL: source.ProductImageURL,
		Date:            source.Date,
		Comments:        source.Comments,
		Color:           source.Color,
	}
	return s.create(ctx, sess, f, invitees)
}

// create stores a group owned by the caller with an equal split across the
// caller and invitees.
func (s *GroupService) create(ctx context.Context, sess auth.Session, f store.GroupFields, invitees []string) (*model.Group, error) {
	share := store.RoundCents(f.Price / float64(len(invitees)+1))
	seeds, err := s.seeds(ctx, sess, invitees, share)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	g, err := call(ctx, s.Base, "create_group", func(ctx context.Context) (*model.Group, error) {
		return s.groups.Create(ctx, sess.UserID, token, f, seeds)
	})
	if err != nil {
		return nil, err
	}
	g.Participants = append([]string{strings.ToLower(sess.Email)}, invitees...)
	return g, nil
}

// seeds builds participant rows: the caller agreed, then each invitee
// pending, linked to a profile when one exists for the email.
func (s *GroupService) seeds(ctx context.Context, sess auth.Session, invitees []string, share float64) ([]store.ParticipantSeed, error) {
	owner := sess.UserID
	seeds := make([]store.ParticipantSeed, 0, len(invitees)+1)
	seeds = append(seeds, store.ParticipantSeed{
		UserID:       &owner,
		Email:        strings.ToLower(sess.Email),
		Status:       model.StatusAgreed,
		Contribution: share,
	})
	for _, e := range invitees {
		profile, err := s.profileByEmail(ctx, e)
		if err != nil {
			return nil, err
		}
		seed := store.ParticipantSeed{Email: e, Status: model.StatusPending, Contribution: share}
		if profile != nil {
			id := profile.ID
			seed.UserID = &id
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

// invite tells each email about the group: a notification when the email
// belongs to a profile, otherwise an email. Failures are logged per
// recipient and do not stop the others.
func (s *GroupService) invite(ctx context.Context, sess auth.Session, g *model.Group, emails []string) {
	if len(emails) == 0 {
		return
	}
	shares := map[string]float64{}
	if list, err := s.participants.ListByGroup(ctx, g.ID); err == nil {
		for _, p := range list {
			shares[p.Email] = p.ContributionAmount
		}
	}
	inviter := sess.DisplayName
	if inviter == "" {
		inviter = sess.Email
	}

	for _, e := range emails {
		log := s.logger.With("group_id", g.ID, "email", e)
		profile, err := s.profileByEmail(ctx, e)
		if err != nil {
			log.Warn("look up invitee", "error", err)
			continue
		}
		if profile == nil {
			s.mailInvitation(ctx, log, inviter, g, e, shares[e])
			continue
		}

		meta, _ := json.Marshal(model.InviteMetadata{
			GroupID:      g.ID,
			InviterID:    sess.UserID,
			InviterEmail: sess.Email,
			GroupTitle:   g.Title,
		})
		_, err = s.notifier.Notify(ctx, store.NewNotification{
			UserID:         profile.ID,
			Title:          "Group gift invitation",
			Message:        fmt.Sprintf("%s invited you to chip in for %s (%.2f %s)", inviter, g.Title, shares[e], g.Currency),
			Type:           model.NotifTypeGroupInvite,
			Category:       "groups",
			RequiresAction: true,
			ActionURL:      "/shared/groups/" + g.ShareToken,
			ActionText:     "View group",
			Metadata:       meta,
		})
		if err != nil {
			log.Warn("send invitation notification", "error", err)
		}
	}
}

func (s *GroupService) mailInvitation(ctx context.Context, log *slog.Logger, inviter string, g *model.Group, to string, share float64) {
	if s.mailer == nil || !s.mailer.Configured() {
		log.Debug("invitee has no account and email is not configured")
		return
	}
	err := s.mailer.SendGroupInvitation(ctx, email.Invitation{
		To:           to,
		InviterName:  inviter,
		GroupTitle:   g.Title,
		Occasion:     g.Occasion,
		Contribution: share,
		Currency:     g.Currency,
		ShareToken:   g.ShareToken,
	})
	if err != nil {
		metrics.IncrementInvitationEmail("failed")
		log.Warn("send invitation email", "error", err)
		return
	}
	metrics.IncrementInvitationEmail("sent")
}

func (s *GroupService) get(ctx context.Context, id int64) (*model.Group, error) {
	return call(ctx, s.Base, "get_group", func(ctx context.Context) (*model.Group, error) {
		return s.groups.GetByID(ctx, id)
	})
}

func (s *GroupService) ownedBy(ctx context.Context, sess auth.Session, id int64) (*model.Group, error) {
	g, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("group not found")
	}
	if g.OwnerID != sess.UserID {
		return nil, apperr.AccessDenied("only the group owner can change this group")
	}
	return g, nil
}

func (s *GroupService) profileByEmail(ctx context.Context, e string) (*model.Profile, error) {
	return call(ctx, s.Base, "get_profile_by_email", func(ctx context.Context) (*model.Profile, error) {
		return s.profiles.GetByEmail(ctx, e)
	})
}

// ownerEmail resolves the email of g's owner, or "" when the profile is
// gone.
func (s *GroupService) ownerEmail(ctx context.Context, g *model.Group) (string, error) {
	p, err := call(ctx, s.Base, "get_profile", func(ctx context.Context) (*model.Profile, error) {
		return s.profiles.GetByID(ctx, g.OwnerID)
	})
	if err != nil || p == nil {
		return "", err
	}
	return strings.ToLower(p.Email), nil
}

// withParticipants fills g.Participants with the owner's email followed by
// every other participant row.
func (s *GroupService) withParticipants(ctx context.Context, g *model.Group) error {
	owner, err := s.ownerEmail(ctx, g)
	if err != nil {
		return err
	}
	rows, err := call(ctx, s.Base, "list_participants", func(ctx context.Context) ([]model.Participant, error) {
		return s.participants.ListByGroup(ctx, g.ID)
	})
	if err != nil {
		return err
	}
	emails := make([]string, 0, len(rows)+1)
	if owner != "" {
		emails = append(emails, owner)
	}
	for _, p := range rows {
		if strings.ToLower(p.Email) != owner {
			emails = append(emails, p.Email)
		}
	}
	g.Participants = emails
	return nil
}

func (s *GroupService) checkCurrency(ctx context.Context, code string) error {
	ok, err := call(ctx, s.Base, "check_currency", func(ctx context.Context) (bool, error) {
		return s.reference.CurrencyExists(ctx, code)
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation(fmt.Sprintf("currency %s is not supported", code))
	}
	return nil
}

// checkLimits enforces the caller's tier. newGroup checks the group count;
// participants, when positive, is checked against the participant cap.
func (s *GroupService) checkLimits(ctx context.Context, sess auth.Session, newGroup bool, participants int) error {
	limits, err := call(ctx, s.Base, "check_subscription_limits", func(ctx context.Context) (*model.SubscriptionLimits, error) {
		return s.subscriptions.CheckLimits(ctx, sess.UserID)
	})
	if err != nil {
		return err
	}
	if newGroup && !limits.CanCreateGroup {
		return apperr.New(apperr.CodeLimitExceeded,
			fmt.Sprintf("the %s plan allows %d groups; upgrade to create more", limits.Tier, limits.MaxGroups))
	}
	if participants > 0 && limits.MaxParticipants > 0 && participants > limits.MaxParticipants {
		return apperr.New(apperr.CodeLimitExceeded,
			fmt.Sprintf("the %s plan allows %d participants per group", limits.Tier, limits.MaxParticipants))
	}
	return nil
}

// publishRecalculated sends the group's participant rows after a change:
// inserts for added emails, deletes for removed ones and updates for the
// rest.
func (s *GroupService) publishRecalculated(ctx context.Context, groupID int64, diff *store.ParticipantDiff) {
	list, err := s.participants.ListByGroup(ctx, groupID)
	if err != nil {
		s.logger.Warn("reload participants for realtime", "group_id", groupID, "error", err)
		return
	}
	added := map[string]bool{}
	if diff != nil {
		for _, e := range diff.Added {
			added[e] = true
		}
		for _, e := range diff.Removed {
			s.broker.Publish(realtime.ParticipantsTopic(groupID), realtime.KindDelete, participantsTable,
				map[string]any{"group_id": groupID, "email": e})
		}
	}
	for _, p := range list {
		kind := realtime.KindUpdate
		if added[p.Email] {
			kind = realtime.KindInsert
		}
		s.broker.Publish(realtime.ParticipantsTopic(groupID), kind, participantsTable, p)
	}
}
