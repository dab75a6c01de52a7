// Package api exposes the storefront cart, checkout and order history over
// HTTP.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/safar/go-checkout/internal/cart"
	"github.com/safar/go-checkout/internal/checkout"
	"github.com/safar/go-checkout/internal/metrics"
	"github.com/safar/go-checkout/internal/models"
	"github.com/safar/go-checkout/internal/store"
)

const requestTimeout = 30 * time.Second

type Server struct {
	db        *sql.DB
	carts     *cart.Service
	committer *checkout.Committer
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	users     UserLookup

	fulfillmentToken string
}

func NewServer(db *sql.DB, carts *cart.Service, committer *checkout.Committer, m *metrics.Metrics, gatherer prometheus.Gatherer, fulfillmentToken string) *Server {
	return &Server{
		db:               db,
		carts:            carts,
		committer:        committer,
		metrics:          m,
		gatherer:         gatherer,
		fulfillmentToken: fulfillmentToken,
		users: func(ctx context.Context, userID int64) (*models.User, error) {
			return store.GetUser(ctx, db, userID)
		},
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(Instrument(s.metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Get("/{id}", s.getProduct)
	})

	// fulfillment callback, not a shopper action
	r.With(RequireFulfillment(s.fulfillmentToken)).Post("/orders/{id}/delivery", s.advanceDelivery)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(s.users))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Get("/count", s.getCartCount)
			r.Post("/items", s.addCartItem)
			r.Post("/buy-now", s.buyNow)
			r.Patch("/items/{id}", s.updateCartItem)
			r.Delete("/items/{id}", s.removeCartItem)
		})

		r.Post("/checkout", s.checkout)

		r.Get("/orders", s.listOrders)
		r.Get("/orders/{id}", s.getOrder)
	})

	return r
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := store.ListProducts(r.Context(), s.db, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}
