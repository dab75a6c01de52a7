package payment

import (
	"github.com/safar/go-checkout/internal/models"
	"github.com/shopspring/decimal"
)

// Charge returns the amount taken at checkout and the payment status the
// order is recorded with. Cash on delivery takes only the prepayment when
// the total exceeds it; the balance stays due on delivery.
func Charge(method models.PaymentMethod, total, codPrepayment decimal.Decimal) (decimal.Decimal, models.PaymentStatus) {
	if method == models.PaymentMethodCOD && total.GreaterThan(codPrepayment) {
		return codPrepayment, models.PaymentStatusPrepaid
	}
	return total, models.PaymentStatusCompleted
}
