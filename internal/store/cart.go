package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/models"
)

const (
	constraintCartUserProduct = "cart_items_user_product_key"
	constraintCartProductFK   = "cart_items_product_id_fkey"
	constraintCartUserFK      = "cart_items_user_id_fkey"
)

const cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func scanCartItem(row interface{ Scan(...any) error }, item *models.CartItem) error {
	return row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
}

// AddCartItem inserts a new line. A product already in the user's cart is
// rejected with ErrAlreadyInCart rather than merged.
func AddCartItem(ctx context.Context, q database.Querier, userID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	item := &models.CartItem{}

	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + cartItemColumns

	err := scanCartItem(q.QueryRowContext(ctx, query, userID, productID, quantity), item)
	if err != nil {
		switch {
		case database.IsUniqueViolation(err, constraintCartUserProduct):
			return nil, database.ErrAlreadyInCart
		case database.IsForeignKeyViolation(err, constraintCartProductFK):
			return nil, database.ErrProductNotFound
		case database.IsForeignKeyViolation(err, constraintCartUserFK):
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return item, nil
}

func GetCartItemByProduct(ctx context.Context, q database.Querier, userID, productID int64) (*models.CartItem, error) {
	item := &models.CartItem{}

	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 AND product_id = $2`

	if err := scanCartItem(q.QueryRowContext(ctx, query, userID, productID), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("get cart item: %w", err)
	}

	return item, nil
}

// UpdateCartItemQuantity replaces the quantity of one of the user's lines.
// Quantities below 1 are rejected and leave the row untouched.
func UpdateCartItemQuantity(ctx context.Context, q database.Querier, userID, itemID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	item := &models.CartItem{}

	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING ` + cartItemColumns

	if err := scanCartItem(q.QueryRowContext(ctx, query, quantity, itemID, userID), item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartItemNotFound
		}
		return nil, fmt.Errorf("update cart item quantity: %w", err)
	}

	return item, nil
}

// RemoveCartItem deletes the line if present. Removing a missing line is
// not an error.
func RemoveCartItem(ctx context.Context, q database.Querier, userID, itemID int64) error {
	_, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`,
		itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func CountCartItems(ctx context.Context, q database.Querier, userID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cart_items WHERE user_id = $1`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count cart items: %w", err)
	}
	return count, nil
}

// ListCartLines returns the user's lines joined with current product rows,
// oldest first.
func ListCartLines(ctx context.Context, q database.Querier, userID int64) ([]models.CartLine, error) {
	return queryCartLines(ctx, q, userID, "")
}

// lockCartLines is ListCartLines under a row lock on the cart rows, for use
// inside the commit transaction.
func lockCartLines(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartLine, error) {
	return queryCartLines(ctx, tx, userID, "FOR UPDATE OF c")
}

func queryCartLines(ctx context.Context, q database.Querier, userID int64, lockClause string) ([]models.CartLine, error) {
	query := `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
		       p.id, p.name, p.description, p.price, p.created_at, p.updated_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at, c.id ` + lockClause

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []models.CartLine{}
	for rows.Next() {
		var line models.CartLine
		err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
			&line.Product.ID,
			&line.Product.Name,
			&line.Product.Description,
			&line.Product.Price,
			&line.Product.CreatedAt,
			&line.Product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}
