// Package payment validates the fields a shopper enters for the selected
// payment method. Nothing here talks to a gateway: a valid submission is
// treated as paid.
package payment

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/safar/go-checkout/internal/models"
)

var (
	upiPattern    = regexp.MustCompile(`^[\w.-]+@[\w.-]+$`)
	cardPattern   = regexp.MustCompile(`^\d{16}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3}$`)
)

// Banks is the fixed list accepted for net banking.
var Banks = []string{
	"State Bank of India",
	"HDFC Bank",
	"ICICI Bank",
	"Axis Bank",
	"Kotak Mahindra Bank",
	"Punjab National Bank",
	"Bank of Baroda",
	"Canara Bank",
	"Union Bank of India",
	"Bank of India",
}

// Input is the raw form submission. Only the fields of Method are read.
type Input struct {
	Method     models.PaymentMethod `json:"method"`
	UPIID      string               `json:"upi_id,omitempty"`
	CardNumber string               `json:"card_number,omitempty"`
	Expiry     string               `json:"expiry,omitempty"`
	CVV        string               `json:"cvv,omitempty"`
	Bank       string               `json:"bank,omitempty"`
}

// ValidationError names the first field that failed.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type UPIDetails struct {
	ID string `json:"id"`
}

type CardDetails struct {
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

type NetBankingDetails struct {
	Bank string `json:"bank"`
}

type CODDetails struct{}

// Details is a validated submission. Exactly one of the method records is
// set, matching Method.
type Details struct {
	Method     models.PaymentMethod `json:"method"`
	UPI        *UPIDetails          `json:"upi,omitempty"`
	Card       *CardDetails         `json:"card,omitempty"`
	NetBanking *NetBankingDetails   `json:"netbanking,omitempty"`
	COD        *CODDetails          `json:"cod,omitempty"`
}

// Validate checks the fields of the active method and stops at the first
// violation.
func Validate(in Input) (*Details, error) {
	switch in.Method {
	case models.PaymentMethodUPI:
		id := strings.TrimSpace(in.UPIID)
		if !upiPattern.MatchString(id) {
			return nil, &ValidationError{Field: "upi_id", Message: "Invalid UPI ID format"}
		}
		return &Details{Method: in.Method, UPI: &UPIDetails{ID: id}}, nil

	case models.PaymentMethodCard:
		number := strings.Join(strings.Fields(in.CardNumber), "")
		if !cardPattern.MatchString(number) {
			return nil, &ValidationError{Field: "card_number", Message: "Card number must be 16 digits"}
		}
		if !expiryPattern.MatchString(in.Expiry) {
			return nil, &ValidationError{Field: "expiry", Message: "Invalid expiry format (MM/YY)"}
		}
		if !cvvPattern.MatchString(in.CVV) {
			return nil, &ValidationError{Field: "cvv", Message: "CVV must be 3 digits"}
		}
		return &Details{
			Method: in.Method,
			Card:   &CardDetails{Last4: number[len(number)-4:], Expiry: in.Expiry},
		}, nil

	case models.PaymentMethodNetBanking:
		if in.Bank == "" {
			return nil, &ValidationError{Field: "bank", Message: "Please select a bank"}
		}
		if !slices.Contains(Banks, in.Bank) {
			return nil, &ValidationError{Field: "bank", Message: "Unsupported bank"}
		}
		return &Details{Method: in.Method, NetBanking: &NetBankingDetails{Bank: in.Bank}}, nil

	case models.PaymentMethodCOD:
		return &Details{Method: in.Method, COD: &CODDetails{}}, nil
	}

	return nil, &ValidationError{Field: "method", Message: fmt.Sprintf("Unsupported payment method %q", in.Method)}
}
