package model

import "time"

type Category struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

type PredefinedCategory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}
