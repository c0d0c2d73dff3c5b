package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Group is the single internal representation of a group gift. The JSON
// boundary below translates to and from the two field namespaces clients
// still send and expect (name/title, description/occasion, amount/price,
// image_url/product_image_url).
type Group struct {
	ID              int64      `json:"-"`
	OwnerID         string     `json:"-"`
	Title           string     `json:"-"`
	Occasion        string     `json:"-"`
	Price           float64    `json:"-"`
	Currency        string     `json:"-"`
	ProductImageURL string     `json:"-"`
	Date            *time.Time `json:"-"`
	Comments        string     `json:"-"`
	Color           string     `json:"-"`
	ShareToken      string     `json:"-"`
	Participants    []string   `json:"-"`
	CreatedAt       time.Time  `json:"-"`
	UpdatedAt       time.Time  `json:"-"`
}

type groupWire struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Name            string    `json:"name"`
	Occasion        string    `json:"occasion"`
	Description     string    `json:"description"`
	Price           float64   `json:"price"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	ProductImageURL string    `json:"product_image_url"`
	ImageURL        string    `json:"image_url"`
	Date            *string   `json:"date"`
	Comments        string    `json:"comments,omitempty"`
	Color           string    `json:"color"`
	ShareToken      string    `json:"share_token,omitempty"`
	Participants    []string  `json:"participants"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (g Group) MarshalJSON() ([]byte, error) {
	participants := g.Participants
	if participants == nil {
		participants = []string{}
	}
	w := groupWire{
		ID:              g.ID,
		UserID:          g.OwnerID,
		Title:           g.Title,
		Name:            g.Title,
		Occasion:        g.Occasion,
		Description:     g.Occasion,
		Price:           g.Price,
		Amount:          g.Price,
		Currency:        g.Currency,
		ProductImageURL: g.ProductImageURL,
		ImageURL:        g.ProductImageURL,
		Comments:        g.Comments,
		Color:           g.Color,
		ShareToken:      g.ShareToken,
		Participants:    participants,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
	if g.Date != nil {
		s := FormatDate(*g.Date)
		w.Date = &s
	}
	return json.Marshal(w)
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var p GroupPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var meta struct {
		ID         int64     `json:"id"`
		UserID     string    `json:"user_id"`
		Color      string    `json:"color"`
		ShareToken string    `json:"share_token"`
		CreatedAt  time.Time `json:"created_at"`
		UpdatedAt  time.Time `json:"updated_at"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return err
	}

	out := Group{
		ID:         meta.ID,
		OwnerID:    meta.UserID,
		Color:      meta.Color,
		ShareToken: meta.ShareToken,
		CreatedAt:  meta.CreatedAt,
		UpdatedAt:  meta.UpdatedAt,
	}
	if v := p.ResolvedTitle(); v != nil {
		out.Title = *v
	}
	if v := p.ResolvedOccasion(); v != nil {
		out.Occasion = *v
	}
	if v := p.ResolvedPrice(); v != nil {
		out.Price = *v
	}
	if p.Currency != nil {
		out.Currency = *p.Currency
	}
	if v := p.ResolvedImageURL(); v != nil {
		out.ProductImageURL = *v
	}
	if p.Comments != nil {
		out.Comments = *p.Comments
	}
	date, err := p.ResolvedDate()
	if err != nil {
		return err
	}
	out.Date = date
	if p.Participants != nil {
		out.Participants = *p.Participants
	}
	*g = out
	return nil
}

// GroupPayload is the inbound shape of a group. Every field is optional so
// partial updates can tell "absent" from "zero". When both names of a pair
// are present the new name wins.
type GroupPayload struct {
	Title           *string   `json:"title"`
	Name            *string   `json:"name"`
	Occasion        *string   `json:"occasion"`
	Description     *string   `json:"description"`
	Price           *float64  `json:"price"`
	Amount          *float64  `json:"amount"`
	Currency        *string   `json:"currency"`
	ProductImageURL *string   `json:"product_image_url"`
	ImageURL        *string   `json:"image_url"`
	Date            *string   `json:"date"`
	Comments        *string   `json:"comments"`
	Participants    *[]string `json:"participants"`
}

func (p GroupPayload) ResolvedTitle() *string    { return firstSet(p.Title, p.Name) }
func (p GroupPayload) ResolvedOccasion() *string { return firstSet(p.Occasion, p.Description) }
func (p GroupPayload) ResolvedImageURL() *string { return firstSet(p.ProductImageURL, p.ImageURL) }

func (p GroupPayload) ResolvedPrice() *float64 {
	if p.Price != nil {
		return p.Price
	}
	return p.Amount
}

// ResolvedDate parses the date field; an absent or empty date is nil.
func (p GroupPayload) ResolvedDate() (*time.Time, error) {
	if p.Date == nil || *p.Date == "" {
		return nil, nil
	}
	d, err := ParseDate(*p.Date)
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	return &d, nil
}

func firstSet(preferred, fallback *string) *string {
	if preferred != nil {
		return preferred
	}
	return fallback
}
