package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/models"
)

const userColumns = `id, email, name, created_at, updated_at, version`

func scanUser(row interface{ Scan(...any) error }, user *models.User) error {
	return row.Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt, &user.Version)
}

// CreateUser registers the account row that owns carts and orders. Sign-up
// itself lives outside this service.
func CreateUser(ctx context.Context, q database.Querier, email, name string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (email, name)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	if err := scanUser(q.QueryRowContext(ctx, query, email, name), user); err != nil {
		if database.IsUniqueViolation(err, "users_email_key") {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// GetUser backs request authentication: an unknown id is ErrUserNotFound.
func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	user := &models.User{}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	if err := scanUser(q.QueryRowContext(ctx, query, id), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
