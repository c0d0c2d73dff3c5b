package service

import (
	"context"
	"strings"

	"github.com/dukerupert/giftpool/internal/apperr"
	"github.com/dukerupert/giftpool/internal/auth"
	"github.com/dukerupert/giftpool/internal/model"
	"github.com/dukerupert/giftpool/internal/store"
	"github.com/dukerupert/giftpool/internal/thumbnail"
)

// GiftInput is the body of a gift create or update. URL is free text: a
// link that does not parse still saves, just without a thumbnail.
type GiftInput struct {
	Recipient string   `json:"recipient" validate:"max=100"`
	Name      string   `json:"name" validate:"required,max=200"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
	URL       *string  `json:"url" validate:"omitempty,max=2048"`
}

type GiftService struct {
	Base
	gifts      *store.GiftStore
	categories *CategoryService
	thumbs     *thumbnail.Resolver
}

func NewGiftService(base Base, gifts *store.GiftStore, categories *CategoryService, thumbs *thumbnail.Resolver) *GiftService {
	return &GiftService{Base: base, gifts: gifts, categories: categories, thumbs: thumbs}
}

func (s *GiftService) ListGifts(ctx context.Context, sess auth.Session, categoryID int64) ([]model.Gift, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	if _, err := s.categories.owned(ctx, sess, categoryID); err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return []model.Gift{}, nil
		}
		return nil, err
	}
	gifts, err := call(ctx, s.Base, "list_gifts", func(ctx context.Context) ([]model.Gift, error) {
		return s.gifts.ListByCategory(ctx, sess.UserID, categoryID)
	})
	if err != nil {
		return nil, err
	}
	if gifts == nil {
		gifts = []model.Gift{}
	}
	return gifts, nil
}

func (s *GiftService) CreateGift(ctx context.Context, sess auth.Session, categoryID int64, in GiftInput) (*model.Gift, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	f, err := s.fields(ctx, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.categories.owned(ctx, sess, categoryID); err != nil {
		return nil, err
	}
	return call(ctx, s.Base, "create_gift", func(ctx context.Context) (*model.Gift, error) {
		return s.gifts.Create(ctx, sess.UserID, categoryID, f)
	})
}

func (s *GiftService) UpdateGift(ctx context.Context, sess auth.Session, id int64, in GiftInput) (*model.Gift, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	f, err := s.fields(ctx, in)
	if err != nil {
		return nil, err
	}
	g, err := call(ctx, s.Base, "update_gift", func(ctx context.Context) (*model.Gift, error) {
		return s.gifts.Update(ctx, sess.UserID, id, f)
	})
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("gift not found")
	}
	return g, nil
}

func (s *GiftService) SetPurchased(ctx context.Context, sess auth.Session, id int64, purchased bool) (*model.Gift, error) {
	if err := s.ready(sess); err != nil {
		return nil, err
	}
	g, err := call(ctx, s.Base, "set_gift_purchased", func(ctx context.Context) (*model.Gift, error) {
		return s.gifts.SetPurchased(ctx, sess.UserID, id, purchased)
	})
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperr.NotFound("gift not found")
	}
	return g, nil
}

func (s *GiftService) DeleteGift(ctx context.Context, sess auth.Session, id int64) error {
	if err := s.ready(sess); err != nil {
		return err
	}
	return exec(ctx, s.Base, "delete_gift", func(ctx context.Context) error {
		return s.gifts.Delete(ctx, sess.UserID, id)
	})
}

// fields validates in and derives the thumbnail from its URL.
func (s *GiftService) fields(ctx context.Context, in GiftInput) (store.GiftFields, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Recipient = strings.TrimSpace(in.Recipient)
	if in.URL != nil {
		u := strings.TrimSpace(*in.URL)
		in.URL = &u
		if u == "" {
			in.URL = nil
		}
	}
	if err := validateInput(in); err != nil {
		return store.GiftFields{}, err
	}

	f := store.GiftFields{
		Recipient: in.Recipient,
		Name:      in.Name,
		Price:     in.Price,
		URL:       in.URL,
	}
	if in.URL != nil {
		if s.thumbs != nil {
			f.ImageURL = s.thumbs.Resolve(ctx, *in.URL)
		} else {
			f.ImageURL = thumbnail.Derive(*in.URL)
		}
	}
	return f, nil
}
