package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/farmlink/marketplace/internal/messaging"
)

type MessagesHandler struct {
	Service  *messaging.Service
	Validate *validator.Validate
}

type OpenInquiryReq struct {
	Kind     string `json:"kind" validate:"required,oneof=product equipment"`
	ItemID   string `json:"item_id" validate:"required"`
	SellerID string `json:"seller_id" validate:"required"`
	Subject  string `json:"subject" validate:"required"`
}

type PostMessageReq struct {
	InquiryID string `json:"inquiry_id" validate:"required"`
	Content   string `json:"content" validate:"required"`
}

func (h *MessagesHandler) Register(r *chi.Mux) {
	r.Post("/inquiries", h.openInquiry)
	r.Get("/inquiries/{id}/messages", h.thread)
	r.Post("/messages", h.postMessage)
	r.Post("/messages/{id}/mark_as_read", h.markRead)
}

func (h *MessagesHandler) openInquiry(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req OpenInquiryReq
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

	inq, err := h.Service.OpenInquiry(ctx, messaging.InquiryKind(req.Kind), req.ItemID, actor, req.SellerID, req.Subject)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inq)
}

func (h *MessagesHandler) postMessage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req PostMessageReq
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

	m, err := h.Service.PostMessage(ctx, req.InquiryID, actor, req.Content)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *MessagesHandler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.MarkRead(ctx, chi.URLParam(r, "id"), actor); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"read": true})
}

func (h *MessagesHandler) thread(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ms, err := h.Service.Thread(ctx, chi.URLParam(r, "id"), actor)
	if err != nil {
		writeErr(w, err)
		return
	}
	if ms == nil {
		ms = []messaging.Message{}
	}
	writeJSON(w, http.StatusOK, ms)
}
