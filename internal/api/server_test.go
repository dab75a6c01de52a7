package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/go-checkout/internal/cart"
	"github.com/safar/go-checkout/internal/checkout"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/identity"
	"github.com/safar/go-checkout/internal/metrics"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/payment"
	"github.com/safar/go-checkout/internal/store"
	"github.com/safar/go-checkout/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(db *sql.DB) *Server {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	carts := cart.NewService(db, nil, m)
	committer := checkout.NewCommitter(db, carts, m, decimal.NewFromInt(399), 5)
	return NewServer(db, carts, committer, m, reg, fulfillmentToken)
}

const fulfillmentToken = "courier-secret"

// knownUsers accepts ids 1..n without a database.
func knownUsers(n int64) UserLookup {
	return func(_ context.Context, userID int64) (*models.User, error) {
		if userID > n {
			return nil, database.ErrUserNotFound
		}
		return &models.User{ID: userID}, nil
	}
}

func do(t *testing.T, h http.Handler, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	h := newTestServer(nil).Routes()

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `checkout_http_requests_total{handler="/health",status="200"} 1`)
}

func TestAnonymousShopperIsSentToSignIn(t *testing.T) {
	s := newTestServer(nil)
	s.users = knownUsers(1)
	h := s.Routes()

	for _, user := range []string{"", "abc", "-4", "99"} {
		t.Run("user="+user, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/cart", user, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "/signin", decodeError(t, rec).Redirect)
		})
	}

	rec := do(t, h, http.MethodPost, "/checkout", "", payment.Input{Method: models.PaymentMethodCOD},
		IdempotencyHeader, uuid.NewString())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeliveryUpdateRequiresFulfillmentToken(t *testing.T) {
	s := newTestServer(nil)
	s.users = knownUsers(1)
	h := s.Routes()
	body := deliveryRequest{Status: models.DeliveryStatusShipped}

	tests := []struct {
		name   string
		user   string
		header []string
	}{
		{"anonymous", "", nil},
		{"signed-in shopper", "1", nil},
		{"wrong token", "", []string{"Authorization", "Bearer guess"}},
		{"not a bearer", "", []string{"Authorization", fulfillmentToken}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/orders/1/delivery", tt.user, body, tt.header...)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	// the token gets past the guard; the unknown status is rejected before storage
	rec := do(t, h, http.MethodPost, "/orders/1/delivery", "", deliveryRequest{Status: "lost"},
		"Authorization", "Bearer "+fulfillmentToken)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDeliveryUpdateDisabledWithoutToken(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := NewServer(nil, cart.NewService(nil, nil, m), nil, m, reg, "").Routes()

	rec := do(t, h, http.MethodPost, "/orders/1/delivery", "", deliveryRequest{Status: models.DeliveryStatusShipped},
		"Authorization", "Bearer ")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutRejectsBadInputBeforeStorage(t *testing.T) {
	s := newTestServer(nil)
	s.users = knownUsers(1)
	h := s.Routes()

	rec := do(t, h, http.MethodPost, "/checkout", "1", payment.Input{Method: models.PaymentMethodCOD})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/checkout", "1",
		payment.Input{Method: models.PaymentMethodUPI, UPIID: "no-at-sign"},
		IdempotencyHeader, uuid.NewString())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "upi_id", decodeError(t, rec).Field)

	rec = do(t, h, http.MethodPatch, "/cart/items/5", "1", updateQuantityRequest{Quantity: 0})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "quantity", decodeError(t, rec).Field)

	req := httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader("{"))
	req.Header.Set(userHeader, "1")
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		redirect string
	}{
		{"validation", &payment.ValidationError{Field: "cvv", Message: "CVV must be 3 digits"}, http.StatusUnprocessableEntity, ""},
		{"wrapped validation", fmt.Errorf("%w: %w", checkout.ErrPaymentValidationFailed, &payment.ValidationError{Field: "bank"}), http.StatusUnprocessableEntity, ""},
		{"unauthenticated", identity.ErrUnauthenticated, http.StatusUnauthorized, "/signin"},
		{"empty cart", database.ErrEmptyCart, http.StatusConflict, "/cart"},
		{"already in cart", database.ErrAlreadyInCart, http.StatusConflict, "/cart"},
		{"transition", fmt.Errorf("%w: ordered -> delivered", database.ErrInvalidTransition), http.StatusConflict, ""},
		{"not found", database.ErrOrderNotFound, http.StatusNotFound, ""},
		{"commit", &checkout.CommitError{Err: errors.New("connection reset")}, http.StatusInternalServerError, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.redirect, decodeError(t, rec).Redirect)
		})
	}
}

func TestCheckoutFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	h := newTestServer(db).Routes()

	user, err := store.CreateUser(ctx, db, "flow@example.com", "Flow")
	require.NoError(t, err)
	silk, err := store.CreateProduct(ctx, db, "Silk", "handwoven", decimal.NewFromInt(500))
	require.NoError(t, err)
	cotton, err := store.CreateProduct(ctx, db, "Cotton", "handwoven", decimal.NewFromInt(300))
	require.NoError(t, err)
	uid := fmt.Sprint(user.ID)

	rec := do(t, h, http.MethodPost, "/cart/items", uid, addItemRequest{ProductID: silk.ID, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/cart/buy-now", uid, buyNowRequest{ProductID: cotton.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/cart/items", uid, addItemRequest{ProductID: silk.ID, Quantity: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/cart", uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.CartView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Total.Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, 2, view.Count)

	token := uuid.NewString()
	card := payment.Input{Method: models.PaymentMethodCard, CardNumber: "4111 1111 1111 1111", Expiry: "12/27", CVV: "123"}
	rec = do(t, h, http.MethodPost, "/checkout", uid, card, IdempotencyHeader, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var receipt checkout.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.True(t, receipt.Order.TotalAmount.Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, "1111", receipt.Payment.Card.Last4)

	rec = do(t, h, http.MethodPost, "/checkout", uid, card, IdempotencyHeader, token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/checkout", uid, card, IdempotencyHeader, uuid.NewString())
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "/cart", decodeError(t, rec).Redirect)

	rec = do(t, h, http.MethodGet, "/cart/count", uid, nil)
	assert.JSONEq(t, `{"count":0}`, rec.Body.String())

	orderPath := fmt.Sprintf("/orders/%d", receipt.Order.ID)
	rec = do(t, h, http.MethodPost, orderPath+"/delivery", "", deliveryRequest{Status: models.DeliveryStatusShipped},
		"Authorization", "Bearer "+fulfillmentToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, orderPath+"/delivery", "", deliveryRequest{Status: models.DeliveryStatusDelivered},
		"Authorization", "Bearer "+fulfillmentToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, h, http.MethodPost, orderPath+"/delivery", "", deliveryRequest{Status: "lost"},
		"Authorization", "Bearer "+fulfillmentToken)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodGet, orderPath, uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var order OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, models.DeliveryStatusShipped, order.Progress.Status)
	assert.Equal(t, 1, order.Progress.Index)

	rec = do(t, h, http.MethodGet, "/orders", uid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page OrderPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Len(t, page.Items[0].Items, 2)
}
