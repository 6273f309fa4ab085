package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/avdev42/bankcards/internal/auth"
	"github.com/avdev42/bankcards/internal/models"
)

// OwnerService handles registration, authentication and customer
// management.
type OwnerService struct {
	store       models.Store
	log         *logrus.Logger
	tokens      *auth.Manager
	promoteCode string
	notifier    Notifier // may be nil
}

// NewOwnerService initializes the owner service
func NewOwnerService(store models.Store, log *logrus.Logger, tokens *auth.Manager, promoteCode string, notifier Notifier) *OwnerService {
	return &OwnerService{
		store:       store,
		log:         log,
		tokens:      tokens,
		promoteCode: promoteCode,
		notifier:    notifier,
	}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Email       string
	Password    string
	Phone       string
}

// Register creates a new customer with a hashed password and the USER
// role.
func (s *OwnerService) Register(ctx context.Context, in RegisterInput) (*models.Owner, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	owner := &models.Owner{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateOfBirth:  in.DateOfBirth,
		Email:        in.Email,
		PasswordHash: string(hashed),
		Phone:        in.Phone,
		Role:         models.RoleUser,
	}
	if err := s.store.CreateOwner(ctx, owner); err != nil {
		return nil, err
	}

	s.log.WithField("owner_id", owner.ID).Infof("Customer registered: %s", owner.Email)
	return owner, nil
}

// Login authenticates a customer and returns a signed access token.
// Locked owners cannot authenticate.
func (s *OwnerService) Login(ctx context.Context, email, password string) (string, *models.Owner, error) {
	owner, err := s.store.OwnerByEmail(ctx, email)
	if err != nil {
		return "", nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte(password)); err != nil {
		return "", nil, models.ErrInvalidCredentials
	}
	if owner.Locked {
		return "", nil, models.ErrOwnerLocked
	}

	token, err := s.tokens.Generate(models.Identity{OwnerID: owner.ID, Email: owner.Email, Role: owner.Role})
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.WithField("owner_id", owner.ID).Infof("Customer logged in: %s", owner.Email)
	return token, owner, nil
}

// Me returns the caller's own profile.
func (s *OwnerService) Me(ctx context.Context, ownerID int64) (*models.Owner, error) {
	return s.store.OwnerByID(ctx, ownerID)
}

// UpdateMeInput carries the self-service profile update fields. Empty
// fields stay unchanged.
type UpdateMeInput struct {
	Email    string
	Phone    string
	Password string
}

// UpdateMe updates the caller's own contact data and password.
func (s *OwnerService) UpdateMe(ctx context.Context, ownerID int64, in UpdateMeInput) (*models.Owner, error) {
	if in.Email == "" && in.Phone == "" && in.Password == "" {
		return nil, models.ErrNothingToUpdate
	}

	owner, err := s.store.OwnerByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if in.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		owner.PasswordHash = string(hashed)
	}
	if in.Phone != "" {
		owner.Phone = in.Phone
	}
	if in.Email != "" && in.Email != owner.Email {
		taken, err := s.store.EmailTakenByOther(ctx, in.Email, owner.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, models.ErrEmailTaken
		}
		owner.Email = in.Email
	}

	if err := s.store.UpdateOwner(ctx, owner); err != nil {
		return nil, err
	}
	s.log.WithField("owner_id", owner.ID).Info("Customer profile updated")
	return owner, nil
}

// Promote elevates the caller to ADMIN when the submitted code matches
// the configured promotion code. One-directional: there is no demotion.
func (s *OwnerService) Promote(ctx context.Context, ownerID int64, code string) error {
	if s.promoteCode == "" ||
		subtle.ConstantTimeCompare([]byte(code), []byte(s.promoteCode)) != 1 {
		return models.ErrBadPromoteCode
	}

	owner, err := s.store.OwnerByID(ctx, ownerID)
	if err != nil {
		return err
	}
	if owner.Role == models.RoleAdmin {
		return nil
	}
	owner.Role = models.RoleAdmin
	if err := s.store.UpdateOwner(ctx, owner); err != nil {
		return err
	}

	s.log.WithField("owner_id", ownerID).Info("Customer promoted to administrator")
	return nil
}

// ListCustomers lists all owners with the USER role (administrator
// operation).
func (s *OwnerService) ListCustomers(ctx context.Context) ([]models.Owner, error) {
	return s.store.OwnersByRole(ctx, models.RoleUser)
}

// SetCustomerLocked locks or unlocks a customer account (administrator
// operation). Idempotent: no write when already at the target state.
func (s *OwnerService) SetCustomerLocked(ctx context.Context, ownerID int64, locked bool) error {
	owner, err := s.store.OwnerByID(ctx, ownerID)
	if err != nil {
		return err
	}
	if owner.Locked == locked {
		return nil
	}
	owner.Locked = locked
	if err := s.store.UpdateOwner(ctx, owner); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "locked": locked}).Info("Customer lock state changed")
	if s.notifier != nil {
		email, name := owner.Email, owner.FirstName
		go s.notifier.CustomerLocked(email, name, locked)
	}
	return nil
}

// AdminUpdateInput carries the fields an administrator may change on a
// customer. Zero fields stay unchanged.
type AdminUpdateInput struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
}

// UpdateCustomer updates a customer's personal data (administrator
// operation).
func (s *OwnerService) UpdateCustomer(ctx context.Context, ownerID int64, in AdminUpdateInput) (*models.Owner, error) {
	if in.FirstName == "" && in.LastName == "" && in.DateOfBirth.IsZero() {
		return nil, models.ErrNothingToUpdate
	}

	owner, err := s.store.OwnerByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if in.FirstName != "" {
		owner.FirstName = in.FirstName
	}
	if in.LastName != "" {
		owner.LastName = in.LastName
	}
	if !in.DateOfBirth.IsZero() {
		owner.DateOfBirth = in.DateOfBirth
	}

	if err := s.store.UpdateOwner(ctx, owner); err != nil {
		return nil, err
	}
	s.log.WithField("owner_id", ownerID).Info("Customer updated by administrator")
	return owner, nil
}
