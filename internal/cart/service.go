package cart

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/safar/go-checkout/internal/cache"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/identity"
	"github.com/safar/go-checkout/internal/metrics"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/store"
	"golang.org/x/sync/singleflight"
)

const loadTimeout = 5 * time.Second

// Refresh lists the client views a cart mutation made stale.
var Refresh = []models.View{models.ViewCart, models.ViewCartCount}

type Mutation struct {
	Item    *models.CartItem `json:"item,omitempty"`
	Refresh []models.View    `json:"refresh"`
}

type Service struct {
	db      *sql.DB
	cache   cache.CartCache
	metrics *metrics.Metrics
	sfg     singleflight.Group
}

func NewService(db *sql.DB, c cache.CartCache, m *metrics.Metrics) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{db: db, cache: c, metrics: m}
}

// Cart returns the caller's cart with its live total.
func (s *Service) Cart(ctx context.Context) (*models.CartView, error) {
	id, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	key := strconv.FormatInt(id.UserID, 10)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		// shared by every waiter on key, so one caller going away must not
		// cancel the load for the rest
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		view, err := s.cache.Get(ctx, id.UserID)
		if err == nil {
			s.metrics.Cache("hit")
			return view, nil
		}
		if errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.Cache("miss")
		} else {
			s.metrics.Cache("error")
			log.Printf("cart cache get user %d: %v", id.UserID, err)
		}

		// read before the lines so an invalidation racing the load wins
		gen, genErr := s.cache.Generation(ctx, id.UserID)
		if genErr != nil {
			log.Printf("cart cache generation user %d: %v", id.UserID, genErr)
		}

		lines, err := store.ListCartLines(ctx, s.db, id.UserID)
		if err != nil {
			return nil, err
		}

		view = &models.CartView{
			UserID: id.UserID,
			Lines:  lines,
			Total:  models.CartTotal(lines),
			Count:  len(lines),
		}

		if genErr == nil {
			if err := s.cache.Set(ctx, id.UserID, gen, view); err != nil {
				log.Printf("cart cache set user %d: %v", id.UserID, err)
			}
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.CartView), nil
}

// Count is the number of lines, shown on the navigation badge.
func (s *Service) Count(ctx context.Context) (int, error) {
	view, err := s.Cart(ctx)
	if err != nil {
		return 0, err
	}
	return view.Count, nil
}

// AddItem puts a product in the cart. A product that is already there is
// rejected with database.ErrAlreadyInCart; the caller should change the
// quantity instead.
func (s *Service) AddItem(ctx context.Context, productID int64, quantity int) (*Mutation, error) {
	id, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	item, err := store.AddCartItem(ctx, s.db, id.UserID, productID, quantity)
	if err != nil {
		return nil, err
	}

	s.Invalidate(id.UserID)
	return &Mutation{Item: item, Refresh: Refresh}, nil
}

// BuyNow makes sure the product is in the cart with at least one unit and
// leaves an existing line untouched.
func (s *Service) BuyNow(ctx context.Context, productID int64) (*Mutation, error) {
	id, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	item, err := store.GetCartItemByProduct(ctx, s.db, id.UserID, productID)
	if err == nil {
		return &Mutation{Item: item, Refresh: Refresh}, nil
	}
	if !errors.Is(err, database.ErrCartItemNotFound) {
		return nil, err
	}

	mut, err := s.AddItem(ctx, productID, 1)
	if errors.Is(err, database.ErrAlreadyInCart) {
		// lost a race with a concurrent add
		item, err = store.GetCartItemByProduct(ctx, s.db, id.UserID, productID)
		if err != nil {
			return nil, err
		}
		return &Mutation{Item: item, Refresh: Refresh}, nil
	}
	return mut, err
}

func (s *Service) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (*Mutation, error) {
	id, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	item, err := store.UpdateCartItemQuantity(ctx, s.db, id.UserID, itemID, quantity)
	if err != nil {
		return nil, err
	}

	s.Invalidate(id.UserID)
	return &Mutation{Item: item, Refresh: Refresh}, nil
}

func (s *Service) RemoveItem(ctx context.Context, itemID int64) (*Mutation, error) {
	id, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	if err := store.RemoveCartItem(ctx, s.db, id.UserID, itemID); err != nil {
		return nil, err
	}

	s.Invalidate(id.UserID)
	return &Mutation{Refresh: Refresh}, nil
}

// Invalidate drops the cached view of userID. Failures are logged; the
// entry still expires on its TTL.
func (s *Service) Invalidate(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cart cache invalidate user %d: %v", userID, err)
	}
}
