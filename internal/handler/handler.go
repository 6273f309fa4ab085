package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/avdev42/bankcards/internal/auth"
	"github.com/avdev42/bankcards/internal/middleware"
	"github.com/avdev42/bankcards/internal/models"
	"github.com/avdev42/bankcards/internal/service"
)

// KeyRater supplies the current central-bank key rate.
type KeyRater interface {
	GetKeyRate() (float64, error)
}

// Handler translates HTTP requests into service calls and service
// failures into HTTP statuses.
type Handler struct {
	owners *service.OwnerService
	cards  *service.CardService
	rates  KeyRater // may be nil
	log    *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(owners *service.OwnerService, cards *service.CardService, rates KeyRater, log *logrus.Logger) *Handler {
	return &Handler{owners: owners, cards: cards, rates: rates, log: log}
}

// Routes assembles the full API router.
func (h *Handler) Routes(tokens *auth.Manager) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/key-rate", h.KeyRate).Methods(http.MethodGet)
	r.HandleFunc("/owner/registration", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/owner/login", h.Login).Methods(http.MethodPost)

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(middleware.Auth(tokens))
	authed.HandleFunc("/owner/personal-account", h.Me).Methods(http.MethodGet)
	authed.HandleFunc("/owner/update", h.UpdateMe).Methods(http.MethodPatch)
	authed.HandleFunc("/admin/promote", h.Promote).Methods(http.MethodPatch)

	authed.HandleFunc("/cards", h.MyCards).Methods(http.MethodGet)
	authed.HandleFunc("/cards/transfer", h.Transfer).Methods(http.MethodPost)
	authed.HandleFunc("/cards/{id:[0-9]+}", h.MyCard).Methods(http.MethodGet)
	authed.HandleFunc("/cards/{id:[0-9]+}/deposit", h.Deposit).Methods(http.MethodPost)
	authed.HandleFunc("/cards/{id:[0-9]+}/withdraw", h.Withdraw).Methods(http.MethodPost)

	admin := authed.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/all-customers", h.ListCustomers).Methods(http.MethodGet)
	admin.HandleFunc("/block-customer/{id:[0-9]+}", h.BlockCustomer).Methods(http.MethodPatch)
	admin.HandleFunc("/unblock-customer/{id:[0-9]+}", h.UnblockCustomer).Methods(http.MethodPatch)
	admin.HandleFunc("/update-customer/{id:[0-9]+}", h.UpdateCustomer).Methods(http.MethodPatch)
	admin.HandleFunc("/cards", h.CreateCard).Methods(http.MethodPost)
	admin.HandleFunc("/cards", h.AdminListCards).Methods(http.MethodGet)
	admin.HandleFunc("/cards/{id:[0-9]+}/block", h.BlockCard).Methods(http.MethodPatch)
	admin.HandleFunc("/cards/{id:[0-9]+}/unblock", h.UnblockCard).Methods(http.MethodPatch)
	admin.HandleFunc("/cards/{id:[0-9]+}", h.DeleteCard).Methods(http.MethodDelete)

	return r
}

// Health reports service liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// KeyRate returns the current central-bank key rate (informational)
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		h.respondError(w, r, http.StatusServiceUnavailable, "key rate source not configured")
		return
	}
	rate, err := h.rates.GetKeyRate()
	if err != nil {
		h.log.Errorf("Failed to get key rate: %v", err)
		h.respondError(w, r, http.StatusBadGateway, "failed to get key rate")
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"key_rate": rate})
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, status, errorResponse{Status: status, Message: message, Path: r.URL.Path})
}

// respondServiceError maps a domain failure onto an HTTP status.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrSameCard),
		errors.Is(err, models.ErrNothingToUpdate),
		errors.Is(err, models.ErrEmailTaken):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrOwnerLocked),
		errors.Is(err, models.ErrBadPromoteCode):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrCardUnusable),
		errors.Is(err, models.ErrCurrencyMismatch),
		errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusConflict
	default:
		h.log.Errorf("Internal error on %s %s: %v", r.Method, r.URL.Path, err)
		h.respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	h.respondError(w, r, status, err.Error())
}

// identity extracts the authenticated caller; the auth middleware
// guarantees it is present on protected routes.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		h.respondError(w, r, http.StatusUnauthorized, "missing or invalid token")
	}
	return id, ok
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func pageParams(r *http.Request) models.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	return models.Page{Number: page, Size: size}.Normalize()
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}
