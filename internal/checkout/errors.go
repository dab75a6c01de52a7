package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrPaymentValidationFailed = errors.New("payment validation failed")
	ErrInvalidRequestToken     = errors.New("request token must be a UUID")
)

// CommitError is a storage failure during the commit transaction. The
// transaction was rolled back: no order exists and the cart is unchanged,
// so the whole request may be retried.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("order placement failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}
