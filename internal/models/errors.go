package models

import "errors"

// Domain failures. Each failure mode the API discriminates on is a
// distinct sentinel checked with errors.Is.
var (
	// ErrInvalidAmount indicates a missing, non-positive amount or one
	// with more than two decimal places.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")
	// ErrSameCard indicates a transfer where source and destination are
	// the same card.
	ErrSameCard = errors.New("source and destination cards must differ")
	// ErrNotFound indicates the entity does not exist or is not visible
	// to the caller. Self-service lookups do not distinguish the two.
	ErrNotFound = errors.New("not found")
	// ErrCardUnusable indicates the card is blocked or expired.
	ErrCardUnusable = errors.New("card is not usable")
	// ErrCurrencyMismatch indicates a transfer between cards of
	// different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
	// ErrInsufficientFunds indicates the amount exceeds the source
	// card's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email is already taken")
	// ErrNothingToUpdate indicates an update request with no fields set.
	ErrNothingToUpdate = errors.New("nothing to update")
	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrOwnerLocked indicates the owner's account is locked.
	ErrOwnerLocked = errors.New("account is locked")
	// ErrBadPromoteCode indicates a wrong or missing promotion code.
	ErrBadPromoteCode = errors.New("invalid promotion code")
)
