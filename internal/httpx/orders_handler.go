package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/farmlink/marketplace/internal/catalog"
	kafkax "github.com/farmlink/marketplace/internal/kafka"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/money"
	"github.com/farmlink/marketplace/internal/orders"
	"github.com/farmlink/marketplace/internal/redisx"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

type OrdersHandler struct {
	Engine   *orders.Engine
	Catalog  ProductLister
	Producer *kafkax.Producer
	Redis    *redis.Client
	Validate *validator.Validate
	Service  string
}

type CreateOrderReq struct {
	ExternalID          string       `json:"external_id"`
	ProductID           string       `json:"product_id" validate:"required"`
	Quantity            int64        `json:"quantity" validate:"required,gt=0"`
	DeliveryAddress     string       `json:"delivery_address"`
	SpecialInstructions string       `json:"special_instructions"`
	TotalAmount         *money.Cents `json:"total_amount"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.create)
	r.Get("/orders/my_sales", h.mySales)
	r.Get("/orders/my_purchases", h.myPurchases)
	r.Get("/orders/{id}", h.get)
	r.Post("/orders/{id}/confirm", h.transition(orders.StatusConfirmed))
	r.Post("/orders/{id}/ship", h.transition(orders.StatusShipped))
	r.Post("/orders/{id}/deliver", h.transition(orders.StatusDelivered))
	r.Post("/orders/{id}/cancel", h.transition(orders.StatusCancelled))
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	buyer, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeErr(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, existed, err := h.Engine.Create(ctx, orders.CreateRequest{
		ExternalID:          req.ExternalID,
		BuyerID:             buyer,
		ProductID:           req.ProductID,
		Quantity:            req.Quantity,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		SubmittedTotal:      req.TotalAmount,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	if req.ExternalID != "" {
		idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
		_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	}
	h.cacheStatus(ctx, o)
	if !existed {
		h.publish(r, market.EventOrderCreated, o, buyer)
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) transition(target orders.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		orderID := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		o, err := h.Engine.Transition(ctx, orderID, actor, target)
		if err != nil {
			writeErr(w, err)
			return
		}
		h.cacheStatus(ctx, o)
		h.publish(r, market.EventOrderStatusChanged, o, actor)
		writeJSON(w, http.StatusOK, o)
	}
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// status reads are hot during polling; try the cache first
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Engine.Get(ctx, orderID, viewer)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
}

func (h *OrdersHandler) mySales(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.Engine.Sales)
}

func (h *OrdersHandler) myPurchases(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.Engine.Purchases)
}

func (h *OrdersHandler) listFor(w http.ResponseWriter, r *http.Request, f func(context.Context, string) ([]orders.Order, error)) {
	viewer, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := f(ctx, viewer)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	b, _ := json.Marshal(map[string]any{"status": o.Status})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publish(r *http.Request, eventType string, o *orders.Order, actor string) {
	ev, err := market.NewEnvelope(eventType, h.Service, r.Header.Get("X-Request-Id"), o.ID,
		market.OrderStatusPayload{OrderID: o.ID, ProductID: o.ProductID, Status: string(o.Status), ActorID: actor})
	if err != nil {
		return
	}
	h.Producer.Publish(market.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
