package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/farmlink/marketplace/internal/market"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error string      `json:"error"`
	Code  market.Kind `json:"code,omitempty"`
}

// writeErr maps the error taxonomy onto stable HTTP statuses so callers can
// branch on both the status and the code in the body.
func writeErr(w http.ResponseWriter, err error) {
	if _, ok := err.(validator.ValidationErrors); ok {
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error()})
		return
	}
	kind := market.Code(err)
	writeJSON(w, statusFor(kind), errBody{Error: err.Error(), Code: kind})
}

func statusFor(kind market.Kind) int {
	switch kind {
	case market.KindNotFound:
		return http.StatusNotFound
	case market.KindForbidden:
		return http.StatusForbidden
	case market.KindInvalidTransition, market.KindResourceUnavailable:
		return http.StatusConflict
	case market.KindInvalidQuantity, market.KindInvalidDateRange,
		market.KindInvalidRentalDuration, market.KindAmountMismatch,
		market.KindMissingDeliveryAddress, market.KindEmptyContent:
		return http.StatusUnprocessableEntity
	case market.KindStorage:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// actorID identifies the requester. Authentication is handled upstream; this
// core only needs the identity asserted by the gateway.
func actorID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

func requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := actorID(r)
	if id == "" {
		writeJSON(w, http.StatusForbidden, errBody{Error: "missing X-User-Id", Code: market.KindForbidden})
		return "", false
	}
	return id, true
}
