package model

import "time"

type Gift struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"-"`
	CategoryID  int64     `json:"category_id"`
	Recipient   string    `json:"recipient"`
	Name        string    `json:"name"`
	Price       *float64  `json:"price"`
	URL         *string   `json:"url"`
	ImageURL    *string   `json:"image_url"`
	IsPurchased bool      `json:"isPurchased"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
