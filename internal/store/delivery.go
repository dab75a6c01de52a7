package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/tracker"
)

// AdvanceDeliveryStatus moves an order exactly one stage forward. It is
// driven by fulfillment; stale or skipping transitions fail with
// ErrInvalidTransition and the row is left as it was.
func AdvanceDeliveryStatus(ctx context.Context, db *sql.DB, orderID int64, to models.DeliveryStatus) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var current models.DeliveryStatus
		var version int
		err := tx.QueryRowContext(ctx,
			`SELECT delivery_status, version FROM orders WHERE id = $1 FOR UPDATE`,
			orderID).Scan(&current, &version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !tracker.CanAdvance(current, to) {
			return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, current, to)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE orders
			 SET delivery_status = $1, version = version + 1, updated_at = NOW()
			 WHERE id = $2 AND version = $3`,
			to, orderID, version)
		if err != nil {
			return fmt.Errorf("update delivery status: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return database.ErrOptimisticLockFailed
		}

		order, err = GetOrder(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}
