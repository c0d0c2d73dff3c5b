package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/giftpool/internal/model"
)

type ParticipantStore struct {
	db *sql.DB
}

func NewParticipantStore(db *sql.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// ParticipantSeed describes a participant row to insert.
type ParticipantSeed struct {
	UserID       *string
	Email        string
	Status       model.ParticipationStatus
	Contribution float64
}

func scanParticipant(s scanner) (*model.Participant, error) {
	var p model.Participant
	var userID sql.NullString
	var agreedAt sql.NullTime
	var status string

	err := s.Scan(
		&p.ID, &p.GroupID, &userID, &p.Email, &p.ContributionAmount,
		&status, &agreedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.UserID = stringPtr(userID)
	p.AgreedAt = timePtr(agreedAt)
	p.ParticipationStatus = model.ParticipationStatus(status)
	return &p, nil
}

const participantCols = `id, group_id, user_id, email, contribution_amount, participation_status, agreed_at, created_at, updated_at`

func insertParticipant(ctx context.Context, q querier, groupID int64, seed ParticipantSeed) error {
	var agreedAt sql.NullTime
	if seed.Status == model.StatusAgreed {
		agreedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO group_participants (group_id, user_id, email, contribution_amount, participation_status, agreed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		groupID, nullString(seed.UserID), strings.ToLower(seed.Email), seed.Contribution, string(seed.Status), agreedAt,
	)
	if err != nil {
		return fmt.Errorf("insert participant %s: %w", seed.Email, err)
	}
	return nil
}

func listParticipants(ctx context.Context, q querier, groupID int64) ([]model.Participant, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+participantCols+` FROM group_participants WHERE group_id = ? ORDER BY created_at ASC, id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func (s *ParticipantStore) ListByGroup(ctx context.Context, groupID int64) ([]model.Participant, error) {
	return listParticipants(ctx, s.db, groupID)
}

func (s *ParticipantStore) Get(ctx context.Context, groupID int64, email string) (*model.Participant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+participantCols+` FROM group_participants WHERE group_id = ? AND email = ?`,
		groupID, strings.ToLower(strings.TrimSpace(email)),
	)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// UpdateStatus sets a participant's status. Moving to agreed stamps
// agreed_at; moving away clears it. Returns nil when no row matches.
func (s *ParticipantStore) UpdateStatus(ctx context.Context, groupID int64, email string, status model.ParticipationStatus) (*model.Participant, error) {
	var agreedAt sql.NullTime
	if status == model.StatusAgreed {
		agreedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE group_participants
		 SET participation_status = ?,
		     agreed_at = CASE WHEN ? = 'agreed' THEN COALESCE(agreed_at, ?) ELSE NULL END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE group_id = ? AND email = ?`,
		string(status), string(status), agreedAt, groupID, strings.ToLower(strings.TrimSpace(email)),
	)
	if err != nil {
		return nil, fmt.Errorf("update participant status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.Get(ctx, groupID, email)
}

// Recalculate splits the group price equally among participants that have
// not declined, rounded to cents. Declined participants owe nothing.
func (s *ParticipantStore) Recalculate(ctx context.Context, groupID int64) ([]model.Participant, error) {
	var out []model.Participant
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := recalculate(ctx, tx, groupID); err != nil {
			return err
		}
		var err error
		out, err = listParticipants(ctx, tx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func recalculate(ctx context.Context, q querier, groupID int64) error {
	var price float64
	err := q.QueryRowContext(ctx, `SELECT price FROM gift_groups WHERE id = ?`, groupID).Scan(&price)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get group price: %w", err)
	}

	var active int
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_participants WHERE group_id = ? AND participation_status != 'declined'`,
		groupID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("count participants: %w", err)
	}

	var share float64
	if active > 0 {
		share = RoundCents(price / float64(active))
	}
	if _, err := q.ExecContext(ctx,
		`UPDATE group_participants
		 SET contribution_amount = CASE WHEN participation_status = 'declined' THEN 0 ELSE ? END,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE group_id = ?`,
		share, groupID,
	); err != nil {
		return fmt.Errorf("update contributions: %w", err)
	}
	return nil
}
