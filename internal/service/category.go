package service

import (
	"context"
	"strings"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/store"
)

type CategoryInput struct {
	Title string `json:"title" validate:"required,max=100"`
	Date  string `json:"date" validate:"required"`
}

type CategoryService struct {
	Base
	categories *store.CategoryStore
}

func NewCategoryService(base Base, categories *store.CategoryStore) *CategoryService {
	return &CategoryService{Base: base, categories: categories}
}

func (s *CategoryService) GetCategories(ctx context.Context, sess auth.Session) ([]model.Category, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	categories, err := call(ctx, s.Base, "list_categories", func(ctx context.Context) ([]model.Category, error) {
		return s.categories.ListByUser(ctx, sess.UserID)
	})
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return categories, nil
}

func (s *CategoryService) CreateCategory(ctx context.Context, sess auth.Session, in CategoryInput) (*model.Category, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	date, err := model.ParseDate(in.Date)
	if err != nil {
		return nil, apperr.Validation("date must be a calendar date")
	}

	color := randomColor()
	return call(ctx, s.Base, "create_category", func(ctx context.Context) (*model.Category, error) {
		return s.categories.Create(ctx, sess.UserID, in.Title, date, color)
	})
}

// DeleteCategory removes one of the caller's categories and its gifts.
// Deleting a category that no longer exists succeeds.
func (s *CategoryService) DeleteCategory(ctx context.Context, sess auth.Session, id int64) error {
	if err := s.ready(sess); err != nil {
		return err
	}
	c, err := call(ctx, s.Base, "get_category", func(ctx context.Context) (*model.Category, error) {
		return s.categories.GetByID(ctx, id)
	})
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if c.UserID != sess.UserID {
		return apperr.AccessDenied("you do not have access to this category")
	}
	return exec(ctx, s.Base, "delete_category", func(ctx context.Context) error {
		return s.categories.Delete(ctx, sess.UserID, id)
	})
}

// owned loads a category and checks it belongs to the caller.
func (s *CategoryService) owned(ctx context.Context, sess auth.Session, id int64) (*model.Category, error) {
	c, err := call(ctx, s.Base, "get_category", func(ctx context.Context) (*model.Category, error) {
		return s.categories.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("category not found")
	}
	if c.UserID != sess.UserID {
		return nil, apperr.AccessDenied("you do not have access to this category")
	}
	return c, nil
}
