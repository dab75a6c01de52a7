package cache

import (
	"context"
	"errors"

	"github.com/safar/go-checkout/internal/models"
)

// CartCache holds the rendered cart view per user. The cart size shown in
// navigation is read from the same entry.
//
// Every Delete bumps a per-user generation. A reader takes the generation
// before loading from Postgres and hands it to Set, which drops the write
// if an invalidation happened in between.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*models.CartView, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID, gen int64, view *models.CartView) error
	Delete(ctx context.Context, userID int64) error
}

var ErrCacheMiss = errors.New("cache miss")

// Noop never stores anything. Used when Redis is not configured.
type Noop struct{}

func (Noop) Get(context.Context, int64) (*models.CartView, error)      { return nil, ErrCacheMiss }
func (Noop) Generation(context.Context, int64) (int64, error)          { return 0, nil }
func (Noop) Set(context.Context, int64, int64, *models.CartView) error { return nil }
func (Noop) Delete(context.Context, int64) error                       { return nil }
