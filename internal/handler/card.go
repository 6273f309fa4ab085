package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/avdev42/bankcards/internal/models"
)

// MyCards lists the caller's cards
func (h *Handler) MyCards(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	page, err := h.cards.MyCards(r.Context(), id.OwnerID, pageParams(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// MyCard returns one of the caller's cards
func (h *Handler) MyCard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	cardID, err := pathID(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid card id")
		return
	}
	card, err := h.cards.MyCardByID(r.Context(), id.OwnerID, cardID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit credits the caller's card
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.cards.Deposit)
}

// Withdraw debits the caller's card
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveMoney(w, r, h.cards.Withdraw)
}

// moveMoney is the shared deposit/withdraw request flow.
func (h *Handler) moveMoney(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, ownerID, cardID int64, amount decimal.Decimal) (models.CardView, error)) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	cardID, err := pathID(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid card id")
		return
	}
	var req amountRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	card, err := op(r.Context(), id.OwnerID, cardID, req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

type transferRequest struct {
	FromCardID int64           `json:"from_card_id"`
	ToCardID   int64           `json:"to_card_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Transfer moves money between two of the caller's cards
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.cards.Transfer(r.Context(), id.OwnerID, req.FromCardID, req.ToCardID, req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type createCardRequest struct {
	OwnerID int64 `json:"owner_id"`
}

// CreateCard issues a new card for an owner (admin)
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	card, err := h.cards.CreateCard(r.Context(), req.OwnerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, card)
}

// BlockCard blocks a card (admin)
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	h.setCardStatus(w, r, models.CardBlocked)
}

// UnblockCard unblocks a card (admin)
func (h *Handler) UnblockCard(w http.ResponseWriter, r *http.Request) {
	h.setCardStatus(w, r, models.CardActive)
}

func (h *Handler) setCardStatus(w http.ResponseWriter, r *http.Request, target models.CardStatus) {
	cardID, err := pathID(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid card id")
		return
	}
	card, err := h.cards.SetCardStatus(r.Context(), cardID, target)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, card)
}

// AdminListCards lists cards matching the filter (admin)
func (h *Handler) AdminListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ownerID, _ := strconv.ParseInt(q.Get("owner_id"), 10, 64)
	filter := models.CardFilter{
		OwnerID:    ownerID,
		OwnerEmail: q.Get("email"),
		Status:     models.CardStatus(q.Get("status")),
		Bin:        q.Get("bin"),
		PanLast4:   q.Get("pan_last4"),
	}

	page, err := h.cards.ListCards(r.Context(), filter, pageParams(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// DeleteCard removes a card permanently (admin)
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid card id")
		return
	}
	if err := h.cards.DeleteCard(r.Context(), cardID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
