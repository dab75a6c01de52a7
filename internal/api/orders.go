package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/safar/go-checkout/internal/checkout"
	"github.com/safar/go-checkout/internal/identity"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/payment"
	"github.com/safar/go-checkout/internal/store"
	"github.com/safar/go-checkout/internal/tracker"
)

// IdempotencyHeader carries the client-generated request token of a
// checkout submission.
const IdempotencyHeader = "Idempotency-Key"

type OrderView struct {
	*models.Order
	Progress tracker.Progress `json:"progress"`
}

type OrderPage struct {
	Items      []OrderView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

type deliveryRequest struct {
	Status models.DeliveryStatus `json:"status"`
}

func newOrderView(order *models.Order) (OrderView, error) {
	progress, err := tracker.ProgressOf(order.DeliveryStatus)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{Order: order, Progress: progress}, nil
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var in payment.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := s.committer.Commit(r.Context(), checkout.Request{
		RequestToken: r.Header.Get(IdempotencyHeader),
		Payment:      in,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, receipt)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Require(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListOrdersCursor(r.Context(), s.db, id.UserID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := OrderPage{Items: make([]OrderView, 0, len(page.Items)), NextCursor: page.NextCursor, HasMore: page.HasMore}
	for i := range page.Items {
		view, err := newOrderView(&page.Items[i])
		if err != nil {
			writeError(w, err)
			return
		}
		out.Items = append(out.Items, view)
	}

	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Require(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	orderID, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := store.GetUserOrder(r.Context(), s.db, id.UserID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := newOrderView(order)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) advanceDelivery(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := tracker.Index(req.Status); err != nil {
		writeError(w, err)
		return
	}

	order, err := store.AdvanceDeliveryStatus(r.Context(), s.db, orderID, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := newOrderView(order)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
