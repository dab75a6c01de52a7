package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceDeliveryStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	user := newUser(t, db)
	silk := newProduct(t, db, "Silk", 500)

	_, err := AddCartItem(ctx, db, user.ID, silk.ID, 1)
	require.NoError(t, err)
	result, err := commit(ctx, db, commitRequest(user.ID, uuid.New()))
	require.NoError(t, err)
	orderID := result.Order.ID

	_, err = AdvanceDeliveryStatus(ctx, db, orderID, models.DeliveryStatusDelivered)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)

	for _, next := range []models.DeliveryStatus{
		models.DeliveryStatusShipped,
		models.DeliveryStatusOutForDelivery,
		models.DeliveryStatusDelivered,
	} {
		order, err := AdvanceDeliveryStatus(ctx, db, orderID, next)
		require.NoError(t, err)
		assert.Equal(t, next, order.DeliveryStatus)
	}

	_, err = AdvanceDeliveryStatus(ctx, db, orderID, models.DeliveryStatusShipped)
	assert.ErrorIs(t, err, database.ErrInvalidTransition)

	order, err := GetOrder(ctx, db, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, order.DeliveryStatus)
	assert.Equal(t, 4, order.Version)

	_, err = AdvanceDeliveryStatus(ctx, db, 999999, models.DeliveryStatusShipped)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}
