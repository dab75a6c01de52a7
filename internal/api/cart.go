package api

import (
	"encoding/json"
	"net/http"
)

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type buyNowRequest struct {
	ProductID int64 `json:"product_id"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	view, err := s.carts.Cart(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) getCartCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.carts.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "product_id must be positive")
		return
	}

	mut, err := s.carts.AddItem(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, mut)
}

func (s *Server) buyNow(w http.ResponseWriter, r *http.Request) {
	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "product_id must be positive")
		return
	}

	mut, err := s.carts.BuyNow(r.Context(), req.ProductID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid cart item ID")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mut, err := s.carts.UpdateQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid cart item ID")
		return
	}

	mut, err := s.carts.RemoveItem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, mut)
}
