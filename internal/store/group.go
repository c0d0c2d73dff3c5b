package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/giftpool/internal/model"
)

type GroupStore struct {
	db *sql.DB
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db}
}

// GroupFields are the mutable attributes of a group.
type GroupFields struct {
	Title           string
	Occasion        string
	Price           float64
	Currency        string
	ProductImageURL string
	Date            *time.Time
	Comments        string
	Color           string
}

func scanGroup(s scanner) (*model.Group, error) {
	var g model.Group
	var date sql.NullString

	err := s.Scan(
		&g.ID, &g.OwnerID, &g.Title, &g.Occasion, &g.Price, &g.Currency,
		&g.ProductImageURL, &date, &g.Comments, &g.Color, &g.ShareToken,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if date.Valid && date.String != "" {
		d, err := model.ParseDate(date.String)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g.ID, err)
		}
		g.Date = &d
	}
	return &g, nil
}

const groupCols = `id, user_id, title, occasion, price, currency, product_image_url, date, comments, color, share_token, created_at, updated_at`

func groupDate(d *time.Time) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: model.FormatDate(*d), Valid: true}
}

func queryGroups(ctx context.Context, q querier, query string, args ...any) ([]model.Group, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// Create inserts the group and its participant rows in one transaction.
func (s *GroupStore) Create(ctx context.Context, ownerID, shareToken string, f GroupFields, seeds []ParticipantSeed) (*model.Group, error) {
	var id int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO gift_groups (user_id, title, occasion, price, currency, product_image_url, date, comments, color, share_token)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ownerID, f.Title, f.Occasion, f.Price, f.Currency, f.ProductImageURL,
			groupDate(f.Date), f.Comments, f.Color, shareToken,
		)
		if err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, seed := range seeds {
			if err := insertParticipant(ctx, tx, id, seed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *GroupStore) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM gift_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) GetByShareToken(ctx context.Context, token string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM gift_groups WHERE share_token = ?`, token)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group by share token: %w", err)
	}
	return g, nil
}

func (s *GroupStore) ListOwned(ctx context.Context, ownerID string) ([]model.Group, error) {
	return queryGroups(ctx, s.db,
		`SELECT `+groupCols+` FROM gift_groups WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
}

// ListParticipating returns groups owned by someone else in which the user
// has agreed to participate.
func (s *GroupStore) ListParticipating(ctx context.Context, userID, email string) ([]model.Group, error) {
	return queryGroups(ctx, s.db,
		`SELECT `+prefixCols("g", groupCols)+`
		 FROM gift_groups g
		 JOIN group_participants p ON p.group_id = g.id
		 WHERE g.user_id != ?
		   AND p.participation_status = 'agreed'
		   AND (p.user_id = ? OR p.email = ?)
		 GROUP BY g.id
		 ORDER BY g.created_at DESC, g.id DESC`,
		userID, userID, strings.ToLower(email),
	)
}

// ListDatedBetween returns groups whose date falls within [from, to].
func (s *GroupStore) ListDatedBetween(ctx context.Context, from, to time.Time) ([]model.Group, error) {
	return queryGroups(ctx, s.db,
		`SELECT `+groupCols+` FROM gift_groups
		 WHERE date IS NOT NULL AND date >= ? AND date <= ?
		 ORDER BY date ASC, id ASC`,
		model.FormatDate(from), model.FormatDate(to),
	)
}

func (s *GroupStore) CountOwned(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gift_groups WHERE user_id = ?`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

// Update writes all mutable fields. When seeds is non-nil the participant
// rows are synced to it. Contributions are recalculated in the same
// transaction. Returns a nil group when no row matches.
func (s *GroupStore) Update(ctx context.Context, id int64, f GroupFields, seeds []ParticipantSeed) (*model.Group, *ParticipantDiff, error) {
	diff := &ParticipantDiff{}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE gift_groups
			 SET title = ?, occasion = ?, price = ?, currency = ?, product_image_url = ?,
			     date = ?, comments = ?, color = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			f.Title, f.Occasion, f.Price, f.Currency, f.ProductImageURL,
			groupDate(f.Date), f.Comments, f.Color, id,
		)
		if err != nil {
			return fmt.Errorf("update group: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		if seeds != nil {
			if diff, err = syncParticipants(ctx, tx, id, seeds); err != nil {
				return err
			}
		}
		return recalculate(ctx, tx, id)
	})
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	g, err := s.GetByID(ctx, id)
	return g, diff, err
}

// Delete removes a group owned by ownerID. Participants cascade.
func (s *GroupStore) Delete(ctx context.Context, ownerID string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM gift_groups WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ParticipantDiff reports which emails an Update added or removed.
type ParticipantDiff struct {
	Added   []string
	Removed []string
}

// syncParticipants makes the group's participant rows match seeds. Rows are
// matched by email first, then by user id, so someone whose email changed
// keeps their row and status and only the email is rewritten. Unmatched
// seeds are inserted and unmatched rows are deleted.
func syncParticipants(ctx context.Context, tx *sql.Tx, groupID int64, seeds []ParticipantSeed) (*ParticipantDiff, error) {
	diff := &ParticipantDiff{}
	current, err := listParticipants(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]model.Participant, len(current))
	byUser := make(map[string]model.Participant, len(current))
	for _, p := range current {
		byEmail[strings.ToLower(p.Email)] = p
		if p.UserID != nil {
			byUser[*p.UserID] = p
		}
	}

	kept := make(map[int64]bool, len(current))
	var unmatched []ParticipantSeed
	for _, seed := range seeds {
		if p, ok := byEmail[strings.ToLower(seed.Email)]; ok {
			kept[p.ID] = true
			continue
		}
		unmatched = append(unmatched, seed)
	}

	for _, seed := range unmatched {
		email := strings.ToLower(seed.Email)
		if seed.UserID != nil {
			if p, ok := byUser[*seed.UserID]; ok && !kept[p.ID] {
				if _, err := tx.ExecContext(ctx,
					`UPDATE group_participants SET email = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, email, p.ID,
				); err != nil {
					return nil, fmt.Errorf("rename participant %s: %w", email, err)
				}
				kept[p.ID] = true
				continue
			}
		}
		if err := insertParticipant(ctx, tx, groupID, seed); err != nil {
			return nil, err
		}
		diff.Added = append(diff.Added, email)
	}

	for _, p := range current {
		if kept[p.ID] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_participants WHERE id = ?`, p.ID); err != nil {
			return nil, fmt.Errorf("delete participant %s: %w", p.Email, err)
		}
		diff.Removed = append(diff.Removed, strings.ToLower(p.Email))
	}
	return diff, nil
}

func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}
