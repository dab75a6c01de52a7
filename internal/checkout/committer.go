// Package checkout turns a validated cart into an order.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/identity"
	"github.com/safar/go-checkout/internal/logging"
	"github.com/safar/go-checkout/internal/metrics"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/payment"
	"github.com/safar/go-checkout/internal/store"
	"github.com/safar/go-checkout/internal/tracker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const service = "checkout"

const tracerName = "github.com/safar/go-checkout/internal/checkout"

// Invalidator drops cached cart state after the cart was cleared.
type Invalidator interface {
	Invalidate(userID int64)
}

type Request struct {
	// RequestToken is generated by the client once per submission and sent
	// again on retries of the same submission.
	RequestToken string        `json:"request_token"`
	Payment      payment.Input `json:"payment"`
}

type Receipt struct {
	Order    *models.Order    `json:"order"`
	Progress tracker.Progress `json:"progress"`
	Payment  *payment.Details `json:"payment,omitempty"`
	Replayed bool             `json:"replayed"`
	Refresh  []models.View    `json:"refresh"`
}

type Committer struct {
	db            *sql.DB
	carts         Invalidator
	metrics       *metrics.Metrics
	codPrepayment decimal.Decimal
	maxRetries    int
}

func NewCommitter(db *sql.DB, carts Invalidator, m *metrics.Metrics, codPrepayment decimal.Decimal, maxRetries int) *Committer {
	return &Committer{
		db:            db,
		carts:         carts,
		metrics:       m,
		codPrepayment: codPrepayment,
		maxRetries:    maxRetries,
	}
}

// Commit places the caller's cart as an order. It returns
// identity.ErrUnauthenticated, ErrInvalidRequestToken,
// ErrPaymentValidationFailed (wrapping *payment.ValidationError),
// database.ErrEmptyCart, or *CommitError. Replaying a committed request
// token returns the original order.
func (c *Committer) Commit(ctx context.Context, req Request) (*Receipt, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout.commit")
	defer span.End()

	receipt, err := c.commit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
	}
	return receipt, err
}

func (c *Committer) commit(ctx context.Context, req Request) (*Receipt, error) {
	span := trace.SpanFromContext(ctx)

	id, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	token, err := uuid.Parse(req.RequestToken)
	if err != nil {
		return nil, ErrInvalidRequestToken
	}

	details, err := payment.Validate(req.Payment)
	if err != nil {
		c.metrics.Checkout("invalid_payment")
		return nil, fmt.Errorf("%w: %w", ErrPaymentValidationFailed, err)
	}

	span.SetAttributes(attribute.Int64("user.id", id.UserID), attribute.String("payment.method", string(details.Method)))

	fields := logging.Fields{Service: service, UserID: id.UserID, RequestToken: token.String()}
	if sc := span.SpanContext(); sc.IsValid() {
		fields.TraceID = sc.TraceID().String()
	}
	started := time.Now()

	result, err := store.CommitOrder(ctx, c.db, database.SerializableTxOptions(c.maxRetries), store.CommitOrderRequest{
		UserID:        id.UserID,
		RequestToken:  token,
		PaymentMethod: details.Method,
		Settle: func(total decimal.Decimal) (decimal.Decimal, models.PaymentStatus) {
			return payment.Charge(details.Method, total, c.codPrepayment)
		},
	})
	fields.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		if errors.Is(err, database.ErrEmptyCart) {
			c.metrics.Checkout("empty_cart")
			return nil, err
		}

		fields.Step, fields.Status, fields.Message = "rollback", "failed", err.Error()
		logging.Log(fields)
		c.metrics.Checkout("failed")
		return nil, &CommitError{Err: err}
	}

	order := result.Order
	fields.OrderID = order.ID
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.Bool("checkout.replayed", result.Replayed))
	fields.Step, fields.Status = "commit", string(order.PaymentStatus)
	if result.Replayed {
		fields.Step = "replay"
		c.metrics.Checkout("replayed")
	} else {
		c.metrics.Checkout("committed")
	}
	logging.Log(fields)

	c.carts.Invalidate(id.UserID)

	progress, err := tracker.ProgressOf(order.DeliveryStatus)
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{
		Order:    order,
		Progress: progress,
		Replayed: result.Replayed,
		Refresh:  []models.View{models.ViewCart, models.ViewCartCount, models.ViewOrders},
	}
	if !result.Replayed {
		receipt.Payment = details
	}
	return receipt, nil
}
