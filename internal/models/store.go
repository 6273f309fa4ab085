package models

import (
	"context"

	"github.com/shopspring/decimal"
)

// Page holds pagination parameters. Listings are ordered by creation
// time, newest first.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Normalize clamps page parameters to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Limit returns the SQL LIMIT for the page.
func (p Page) Limit() int { return p.Size }

// Offset returns the SQL OFFSET for the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// CardFilter restricts admin card listings. Zero values mean "no
// restriction" for that field.
type CardFilter struct {
	OwnerID    int64
	OwnerEmail string
	Status     CardStatus
	Bin        string
	PanLast4   string
}

// Store is the durable account storage the services operate on.
// Implementations report missing rows as ErrNotFound and duplicate
// emails as ErrEmailTaken.
type Store interface {
	CreateOwner(ctx context.Context, o *Owner) error
	OwnerByID(ctx context.Context, id int64) (*Owner, error)
	OwnerByEmail(ctx context.Context, email string) (*Owner, error)
	UpdateOwner(ctx context.Context, o *Owner) error
	OwnersByRole(ctx context.Context, role Role) ([]Owner, error)
	EmailTakenByOther(ctx context.Context, email string, ownerID int64) (bool, error)

	CreateCard(ctx context.Context, c *Card) error
	CardByIDAndOwner(ctx context.Context, cardID, ownerID int64) (*Card, error)
	CardsByOwner(ctx context.Context, ownerID int64, page Page) ([]Card, int64, error)
	ListCards(ctx context.Context, f CardFilter, page Page) ([]Card, int64, error)
	DeleteCard(ctx context.Context, cardID int64) error

	// InTx runs fn inside one storage transaction. The transaction
	// commits only when fn returns nil; any error rolls back every
	// write made through tx.
	InTx(ctx context.Context, fn func(tx CardTx) error) error
}

// CardTx is the transactional view used by balance and status
// mutations. Reads take row locks so the follow-up write is consistent
// with the value checked.
type CardTx interface {
	// CardForUpdate loads and locks a card scoped by owner.
	CardForUpdate(ctx context.Context, cardID, ownerID int64) (*Card, error)
	// CardByIDForUpdate loads and locks a card without owner scoping.
	CardByIDForUpdate(ctx context.Context, cardID int64) (*Card, error)
	UpdateCardBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error
	UpdateCardStatus(ctx context.Context, cardID int64, status CardStatus) error
}
