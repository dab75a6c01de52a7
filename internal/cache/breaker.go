package cache

import (
	"context"
	"errors"
	"time"

	"github.com/safar/go-checkout/internal/models"
	"github.com/sony/gobreaker/v2"
)

// Breaker short-circuits a failing cache so cart reads fall through to
// Postgres without waiting on Redis timeouts. Misses do not count as
// failures.
type Breaker struct {
	next CartCache
	cb   *gobreaker.CircuitBreaker[*models.CartView]
}

func NewBreaker(next CartCache, openFor time.Duration) *Breaker {
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker[*models.CartView](gobreaker.Settings{
			Name:    "cart-cache",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrCacheMiss)
			},
		}),
	}
}

func (b *Breaker) Get(ctx context.Context, userID int64) (*models.CartView, error) {
	return b.cb.Execute(func() (*models.CartView, error) {
		return b.next.Get(ctx, userID)
	})
}

func (b *Breaker) Generation(ctx context.Context, userID int64) (int64, error) {
	var gen int64
	_, err := b.cb.Execute(func() (*models.CartView, error) {
		var err error
		gen, err = b.next.Generation(ctx, userID)
		return nil, err
	})
	return gen, err
}

func (b *Breaker) Set(ctx context.Context, userID, gen int64, view *models.CartView) error {
	_, err := b.cb.Execute(func() (*models.CartView, error) {
		return nil, b.next.Set(ctx, userID, gen, view)
	})
	return err
}

// Delete always reaches the underlying cache: a skipped invalidation would
// leave a stale view behind once the breaker closes.
func (b *Breaker) Delete(ctx context.Context, userID int64) error {
	return b.next.Delete(ctx, userID)
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
