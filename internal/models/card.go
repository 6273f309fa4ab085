package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card.
type CardStatus string

const (
	CardActive  CardStatus = "ACTIVE"
	CardBlocked CardStatus = "BLOCKED"
	CardExpired CardStatus = "EXPIRED"
)

// Usable reports whether monetary operations are allowed on a card in
// this status. BLOCKED and EXPIRED both mean the card is out of service.
func (s CardStatus) Usable() bool {
	return s == CardActive
}

// Card represents a bank card belonging to exactly one owner.
// PanEncrypted holds the AES-encrypted card number as stored; the
// decrypted number only exists transiently at issuance time.
type Card struct {
	ID           int64           `json:"id"`
	OwnerID      int64           `json:"owner_id"`
	PanEncrypted string          `json:"-"` // Not serialized
	PanLast4     string          `json:"pan_last4"`
	Bin          string          `json:"bin"`
	ExpiryMonth  int             `json:"expiry_month"`
	ExpiryYear   int             `json:"expiry_year"`
	Status       CardStatus      `json:"status"`
	Balance      decimal.Decimal `json:"balance"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MaskedPan returns the display form of the card number. The full PAN
// is never exposed through the API.
func (c *Card) MaskedPan() string {
	return "**** **** **** " + c.PanLast4
}

// CardView is the API representation of a card.
type CardView struct {
	ID        int64           `json:"id"`
	OwnerID   int64           `json:"owner_id"`
	MaskedPan string          `json:"masked_pan"`
	Bin       string          `json:"bin"`
	Expiry    string          `json:"expiry"`
	Status    CardStatus      `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}

// View maps a card to its API representation.
func (c *Card) View() CardView {
	return CardView{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		MaskedPan: c.MaskedPan(),
		Bin:       c.Bin,
		Expiry:    fmt.Sprintf("%02d/%02d", c.ExpiryMonth, c.ExpiryYear%100),
		Status:    c.Status,
		Balance:   c.Balance,
		Currency:  c.Currency,
		CreatedAt: c.CreatedAt,
	}
}

// TransferResult pairs the updated source and destination views of a
// successful transfer.
type TransferResult struct {
	From CardView `json:"from"`
	To   CardView `json:"to"`
}
