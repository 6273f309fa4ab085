package handler

import (
	"net/http"
	"time"

	"github.com/avdev42/bankcards/internal/service"
)

const dateLayout = "2006-01-02"

type registerRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
}

// Register handles customer registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.FirstName == "" || req.LastName == "" || req.Email == "" || len(req.Password) < 8 {
		h.respondError(w, r, http.StatusBadRequest, "first_name, last_name, email and a password of at least 8 characters are required")
		return
	}
	dob, err := time.Parse(dateLayout, req.DateOfBirth)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
		return
	}

	owner, err := h.owners.Register(r.Context(), service.RegisterInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: dob,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, owner)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token   string `json:"token"`
	OwnerID int64  `json:"owner_id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

// Login handles customer authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	token, owner, err := h.owners.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, loginResponse{
		Token:   token,
		OwnerID: owner.ID,
		Email:   owner.Email,
		Role:    string(owner.Role),
	})
}

// Me returns the caller's profile
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	owner, err := h.owners.Me(r.Context(), id.OwnerID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, owner)
}

type updateMeRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// UpdateMe updates the caller's profile
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req updateMeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Password != "" && len(req.Password) < 8 {
		h.respondError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	owner, err := h.owners.UpdateMe(r.Context(), id.OwnerID, service.UpdateMeInput{
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, owner)
}

type promoteRequest struct {
	Code string `json:"code"`
}

// Promote elevates the caller to administrator given the right code
func (h *Handler) Promote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req promoteRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.owners.Promote(r.Context(), id.OwnerID, req.Code); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "promoted to administrator, please log in again",
	})
}

// ListCustomers lists all customers (admin)
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	owners, err := h.owners.ListCustomers(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, owners)
}

// BlockCustomer locks a customer account (admin)
func (h *Handler) BlockCustomer(w http.ResponseWriter, r *http.Request) {
	h.setCustomerLocked(w, r, true)
}

// UnblockCustomer unlocks a customer account (admin)
func (h *Handler) UnblockCustomer(w http.ResponseWriter, r *http.Request) {
	h.setCustomerLocked(w, r, false)
}

func (h *Handler) setCustomerLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	ownerID, err := pathID(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid owner id")
		return
	}
	if err := h.owners.SetCustomerLocked(r.Context(), ownerID, locked); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	state := "unlocked"
	if locked {
		state = "locked"
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "customer account is " + state})
}

type adminUpdateRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
}

// UpdateCustomer updates a customer's personal data (admin)
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	ownerID, err := pathID(r)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid owner id")
		return
	}
	var req adminUpdateRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	in := service.AdminUpdateInput{FirstName: req.FirstName, LastName: req.LastName}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			h.respondError(w, r, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
			return
		}
		in.DateOfBirth = dob
	}

	owner, err := h.owners.UpdateCustomer(r.Context(), ownerID, in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, owner)
}
