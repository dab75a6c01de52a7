package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/models"
	"github.com/shopspring/decimal"
)

// SettleFunc decides how much of total is charged now and the resulting
// payment status.
type SettleFunc func(total decimal.Decimal) (decimal.Decimal, models.PaymentStatus)

type CommitOrderRequest struct {
	UserID        int64
	RequestToken  uuid.UUID
	PaymentMethod models.PaymentMethod
	Settle        SettleFunc
}

type CommitOrderResult struct {
	Order *models.Order
	// Replayed is set when the request token had already produced an order.
	Replayed bool
}

const orderColumns = `id, user_id, order_number, total_amount, amount_paid, payment_method,
	payment_status, delivery_status, request_token, created_at, updated_at, version`

func scanOrder(row interface{ Scan(...any) error }, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.TotalAmount,
		&order.AmountPaid,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.DeliveryStatus,
		&order.RequestToken,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
}

func generateOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:12])
}

// CommitOrder converts the user's cart into an order in one transaction:
// claim the request token, lock and price the cart, insert the order and
// its items, delete the converted lines. Nothing is visible to other
// readers until every step has succeeded.
func CommitOrder(ctx context.Context, db *sql.DB, opts database.TxOptions, req CommitOrderRequest) (*CommitOrderResult, error) {
	var result *CommitOrderResult

	err := database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		existing, err := claimRequestToken(ctx, tx, req.UserID, req.RequestToken)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &CommitOrderResult{Order: existing, Replayed: true}
			return nil
		}

		lines, err := lockCartLines(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		total := models.CartTotal(lines)
		paid, status := req.Settle(total)

		order := &models.Order{}
		err = scanOrder(tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_number, total_amount, amount_paid, payment_method,
			                     payment_status, delivery_status, request_token, created_at, updated_at, version)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
			 RETURNING `+orderColumns,
			req.UserID, generateOrderNumber(), total, paid, req.PaymentMethod,
			status, models.DeliveryStatusOrdered, req.RequestToken), order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		lineIDs := make([]int64, 0, len(lines))
		for _, line := range lines {
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.Product.Price,
				Subtotal:  line.Subtotal(),
			}

			err = tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, subtotal, created_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())
				 RETURNING id, created_at`,
				item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&item.ID, &item.CreatedAt)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}

			order.Items = append(order.Items, item)
			lineIDs = append(lineIDs, line.ID)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`,
			req.UserID, pq.Array(lineIDs))
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected != int64(len(lineIDs)) {
			return fmt.Errorf("clear cart: removed %d of %d lines", rowsAffected, len(lineIDs))
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE checkout_requests SET order_id = $1 WHERE user_id = $2 AND request_token = $3`,
			order.ID, req.UserID, req.RequestToken)
		if err != nil {
			return fmt.Errorf("bind request token: %w", err)
		}

		result = &CommitOrderResult{Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// claimRequestToken records the token for this attempt. When the token was
// already committed it returns the order that attempt produced.
func claimRequestToken(ctx context.Context, tx *sql.Tx, userID int64, token uuid.UUID) (*models.Order, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO checkout_requests (user_id, request_token, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id, request_token) DO NOTHING`,
		userID, token)
	if err != nil {
		return nil, fmt.Errorf("claim request token: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil, nil
	}

	var orderID sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT order_id FROM checkout_requests WHERE user_id = $1 AND request_token = $2`,
		userID, token).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("read request token: %w", err)
	}
	if !orderID.Valid {
		return nil, fmt.Errorf("request token %s has no order", token)
	}

	return GetOrder(ctx, tx, orderID.Int64)
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	if err := scanOrder(q.QueryRowContext(ctx, query, id), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := listOrderItems(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return order, nil
}

// GetUserOrder is GetOrder restricted to orders owned by userID.
func GetUserOrder(ctx context.Context, q database.Querier, userID, id int64) (*models.Order, error) {
	order, err := GetOrder(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

func listOrderItems(ctx context.Context, q database.Querier, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	itemsQuery := `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, id`

	rows, err := q.QueryContext(ctx, itemsQuery, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.UnitPrice,
			&item.Subtotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[item.OrderID] = append(items[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// ListOrdersCursor pages through a user's order history newest first,
// items included.
func ListOrdersCursor(ctx context.Context, q database.Querier, userID int64, cursor string, limit int) (*CursorPage[models.Order], error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	rows, err := q.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if len(orders) > 0 {
		ids := make([]int64, len(orders))
		for i, order := range orders {
			ids[i] = order.ID
		}
		items, err := listOrderItems(ctx, q, ids)
		if err != nil {
			return nil, err
		}
		for i := range orders {
			orders[i].Items = items[orders[i].ID]
		}
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage[models.Order]{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
