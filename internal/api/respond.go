package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/safar/go-checkout/internal/checkout"
	"github.com/safar/go-checkout/internal/database"
	"github.com/safar/go-checkout/internal/identity"
	"github.com/safar/go-checkout/internal/payment"
	"github.com/safar/go-checkout/internal/tracker"
)

type ErrorResponse struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// writeError maps a service error onto a status code and body. Anything
// unrecognised is logged and reported as a 500 without detail.
func writeError(w http.ResponseWriter, err error) {
	var verr *payment.ValidationError
	var commitErr *checkout.CommitError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, database.ErrInvalidQuantity):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Field: "quantity"})
	case errors.Is(err, tracker.ErrUnknownStatus):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Field: "status"})

	case errors.Is(err, identity.ErrUnauthenticated):
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Redirect: "/signin"})
	case errors.Is(err, database.ErrEmptyCart), errors.Is(err, database.ErrAlreadyInCart):
		respondJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Redirect: "/cart"})
	case errors.Is(err, database.ErrInvalidTransition), errors.Is(err, database.ErrOptimisticLockFailed):
		respondError(w, http.StatusConflict, err.Error())

	case errors.Is(err, checkout.ErrInvalidRequestToken):
		respondError(w, http.StatusBadRequest, "Idempotency-Key header must be a UUID")

	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrCartItemNotFound),
		errors.Is(err, database.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	case errors.As(err, &commitErr):
		respondError(w, http.StatusInternalServerError, "order placement failed, your cart was not changed")

	default:
		log.Printf("Unhandled error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
