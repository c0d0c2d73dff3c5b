package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/store"
)

// Notifier creates a mailbox notification and fans it out.
type Notifier interface {
	Notify(ctx context.Context, n store.NewNotification) (*model.Notification, error)
}

// Scheduler periodically sends reminders for groups whose date is close.
type Scheduler struct {
	mu           sync.RWMutex
	groups       *store.GroupStore
	participants *store.ParticipantStore
	reminders    *store.ReminderStore
	notifier     Notifier
	days         int
	interval     time.Duration
	now          func() time.Time
	logger       *slog.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewScheduler creates a reminder scheduler that fires for groups dated
// within days of today.
func NewScheduler(groups *store.GroupStore, participants *store.ParticipantStore, reminders *store.ReminderStore, notifier Notifier, days int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		groups:       groups,
		participants: participants,
		reminders:    reminders,
		notifier:     notifier,
		days:         days,
		interval:     60 * time.Second,
		now:          time.Now,
		logger:       logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.days <= 0 {
		return
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	groups, err := s.groups.ListDatedBetween(ctx, today, today.AddDate(0, 0, s.days))
	if err != nil {
		s.logger.Error("list upcoming groups", "error", err)
		return
	}

	for _, g := range groups {
		daysLeft := int(g.Date.Sub(today).Hours() / 24)
		s.remindGroup(ctx, g, daysLeft)
	}
}

// remindGroup sends each agreed participant with an account one reminder
// per remaining day, so a group inside the window produces a daily
// countdown.
func (s *Scheduler) remindGroup(ctx context.Context, g model.Group, daysLeft int) {
	participants, err := s.participants.ListByGroup(ctx, g.ID)
	if err != nil {
		s.logger.Error("list participants for reminder", "group_id", g.ID, "error", err)
		return
	}

	for _, p := range participants {
		if p.ParticipationStatus != model.StatusAgreed || p.UserID == nil {
			continue
		}

		sent, err := s.reminders.WasSent(ctx, g.ID, p.Email, daysLeft)
		if err != nil {
			s.logger.Warn("check sent reminder", "group_id", g.ID, "email", p.Email, "error", err)
			continue
		}
		if sent {
			continue
		}

		meta, _ := json.Marshal(map[string]any{"group_id": g.ID, "days_left": daysLeft})
		_, err = s.notifier.Notify(ctx, store.NewNotification{
			UserID:     *p.UserID,
			Title:      "Group gift coming up",
			Message:    reminderMessage(g.Title, daysLeft, p.ContributionAmount, g.Currency),
			Type:       model.NotifTypeGroupReminder,
			Category:   "group",
			ActionURL:  fmt.Sprintf("/groups/%d", g.ID),
			ActionText: "View group",
			Metadata:   meta,
		})
		if err != nil {
			s.logger.Warn("send group reminder", "group_id", g.ID, "email", p.Email, "error", err)
			continue
		}

		if err := s.reminders.RecordSent(ctx, g.ID, p.Email, daysLeft); err != nil {
			s.logger.Warn("record sent reminder", "group_id", g.ID, "email", p.Email, "error", err)
		}
	}
}

func reminderMessage(title string, daysLeft int, amount float64, currency string) string {
	switch daysLeft {
	case 0:
		return fmt.Sprintf("%s is today. Your share is %.2f %s.", title, amount, currency)
	case 1:
		return fmt.Sprintf("%s is tomorrow. Your share is %.2f %s.", title, amount, currency)
	default:
		return fmt.Sprintf("%s is in %d days. Your share is %.2f %s.", title, daysLeft, amount, currency)
	}
}
