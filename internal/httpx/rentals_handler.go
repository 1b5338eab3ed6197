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

	kafkax "github.com/farmlink/marketplace/internal/kafka"
	"github.com/farmlink/marketplace/internal/market"
	"github.com/farmlink/marketplace/internal/money"
	"github.com/farmlink/marketplace/internal/redisx"
	"github.com/farmlink/marketplace/internal/rentals"
)

type RentalsHandler struct {
	Engine   *rentals.Engine
	Producer *kafkax.Producer
	Redis    *redis.Client
	Validate *validator.Validate
	Service  string
}

type CreateRentalReq struct {
	EquipmentID         string       `json:"equipment_id" validate:"required"`
	StartDate           string       `json:"start_date" validate:"required"`
	EndDate             string       `json:"end_date" validate:"required"`
	RentalDays          int          `json:"rental_days"`
	TotalAmount         *money.Cents `json:"total_amount"`
	DeliveryRequired    bool         `json:"delivery_required"`
	DeliveryAddress     string       `json:"delivery_address"`
	SpecialInstructions string       `json:"special_instructions"`
}

func (h *RentalsHandler) Register(r *chi.Mux) {
	r.Post("/equipment-rentals", h.create)
	r.Get("/equipment-rentals/my_rentals", h.myRentals)
	r.Get("/equipment-rentals/my_equipment_rentals", h.myEquipmentRentals)
	r.Get("/equipment-rentals/{id}", h.get)
	r.Post("/equipment-rentals/{id}/confirm", h.transition(rentals.StatusConfirmed))
	r.Post("/equipment-rentals/{id}/activate", h.transition(rentals.StatusActive))
	r.Post("/equipment-rentals/{id}/complete", h.transition(rentals.StatusCompleted))
	r.Post("/equipment-rentals/{id}/cancel", h.transition(rentals.StatusCancelled))
}

const dateLayout = "2006-01-02"

func (h *RentalsHandler) create(w http.ResponseWriter, r *http.Request) {
	renter, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateRentalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeErr(w, err)
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeErr(w, market.E(market.KindInvalidDateRange, "malformed start_date %q", req.StartDate))
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeErr(w, market.E(market.KindInvalidDateRange, "malformed end_date %q", req.EndDate))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rl, err := h.Engine.Create(ctx, rentals.CreateRequest{
		RenterID:            renter,
		EquipmentID:         req.EquipmentID,
		StartDate:           start,
		EndDate:             end,
		DeliveryRequired:    req.DeliveryRequired,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		SubmittedDays:       req.RentalDays,
		SubmittedTotal:      req.TotalAmount,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, rl)
	h.publish(r, market.EventRentalCreated, rl, renter)
	writeJSON(w, http.StatusCreated, rl)
}

func (h *RentalsHandler) transition(target rentals.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		rentalID := chi.URLParam(r, "id")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		rl, err := h.Engine.Transition(ctx, rentalID, actor, target)
		if err != nil {
			writeErr(w, err)
			return
		}
		h.cacheStatus(ctx, rl)
		h.publish(r, market.EventRentalStatusChanged, rl, actor)
		writeJSON(w, http.StatusOK, rl)
	}
}

func (h *RentalsHandler) get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireActor(w, r)
	if !ok {
		return
	}
	rentalID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyRentalStatus, rentalID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	rl, err := h.Engine.Get(ctx, rentalID, viewer)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, rl)
	writeJSON(w, http.StatusOK, map[string]any{"status": rl.Status})
}

func (h *RentalsHandler) myRentals(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.Engine.Rented)
}

func (h *RentalsHandler) myEquipmentRentals(w http.ResponseWriter, r *http.Request) {
	h.listFor(w, r, h.Engine.OwnedOut)
}

func (h *RentalsHandler) listFor(w http.ResponseWriter, r *http.Request, f func(context.Context, string) ([]rentals.Rental, error)) {
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
		out = []rentals.Rental{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RentalsHandler) cacheStatus(ctx context.Context, rl *rentals.Rental) {
	key := fmt.Sprintf(redisx.KeyRentalStatus, rl.ID)
	b, _ := json.Marshal(map[string]any{"status": rl.Status})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *RentalsHandler) publish(r *http.Request, eventType string, rl *rentals.Rental, actor string) {
	ev, err := market.NewEnvelope(eventType, h.Service, r.Header.Get("X-Request-Id"), rl.ID,
		market.RentalStatusPayload{RentalID: rl.ID, EquipmentID: rl.EquipmentID, Status: string(rl.Status), ActorID: actor})
	if err != nil {
		return
	}
	h.Producer.Publish(market.PartitionKey(rl.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
