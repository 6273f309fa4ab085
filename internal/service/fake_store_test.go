package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avdev42/bankcards/internal/models"
)

var errInjectedWrite = errors.New("injected write failure")

// fakeStore is an in-memory models.Store with snapshot-based rollback,
// write counters and an injectable balance-write failure.
type fakeStore struct {
	owners      map[int64]*models.Owner
	cards       map[int64]*models.Card
	nextOwnerID int64
	nextCardID  int64

	ownerWrites   int
	balanceWrites int
	statusWrites  int

	failBalanceWriteFor int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		owners: make(map[int64]*models.Owner),
		cards:  make(map[int64]*models.Card),
	}
}

func (f *fakeStore) addOwner(o models.Owner) *models.Owner {
	f.nextOwnerID++
	o.ID = f.nextOwnerID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.owners[o.ID] = &o
	return &o
}

func (f *fakeStore) addCard(c models.Card) *models.Card {
	f.nextCardID++
	c.ID = f.nextCardID
	if c.Status == "" {
		c.Status = models.CardActive
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.cards[c.ID] = &c
	return &c
}

func (f *fakeStore) CreateOwner(_ context.Context, o *models.Owner) error {
	for _, existing := range f.owners {
		if strings.EqualFold(existing.Email, o.Email) {
			return models.ErrEmailTaken
		}
	}
	saved := f.addOwner(*o)
	*o = *saved
	return nil
}

func (f *fakeStore) OwnerByID(_ context.Context, id int64) (*models.Owner, error) {
	o, ok := f.owners[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) OwnerByEmail(_ context.Context, email string) (*models.Owner, error) {
	for _, o := range f.owners {
		if strings.EqualFold(o.Email, email) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) UpdateOwner(_ context.Context, o *models.Owner) error {
	if _, ok := f.owners[o.ID]; !ok {
		return models.ErrNotFound
	}
	for _, existing := range f.owners {
		if existing.ID != o.ID && strings.EqualFold(existing.Email, o.Email) {
			return models.ErrEmailTaken
		}
	}
	cp := *o
	cp.UpdatedAt = time.Now()
	f.owners[o.ID] = &cp
	f.ownerWrites++
	return nil
}

func (f *fakeStore) OwnersByRole(_ context.Context, role models.Role) ([]models.Owner, error) {
	var out []models.Owner
	for _, o := range f.owners {
		if o.Role == role {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) EmailTakenByOther(_ context.Context, email string, ownerID int64) (bool, error) {
	for _, o := range f.owners {
		if o.ID != ownerID && strings.EqualFold(o.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateCard(_ context.Context, c *models.Card) error {
	if _, ok := f.owners[c.OwnerID]; !ok {
		return models.ErrNotFound
	}
	saved := f.addCard(*c)
	*c = *saved
	return nil
}

func (f *fakeStore) CardByIDAndOwner(_ context.Context, cardID, ownerID int64) (*models.Card, error) {
	c, ok := f.cards[cardID]
	if !ok || c.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CardsByOwner(_ context.Context, ownerID int64, page models.Page) ([]models.Card, int64, error) {
	var all []models.Card
	for _, c := range f.cards {
		if c.OwnerID == ownerID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func (f *fakeStore) ListCards(_ context.Context, filter models.CardFilter, page models.Page) ([]models.Card, int64, error) {
	var all []models.Card
	for _, c := range f.cards {
		owner := f.owners[c.OwnerID]
		if filter.OwnerID != 0 && c.OwnerID != filter.OwnerID {
			continue
		}
		if filter.OwnerEmail != "" && (owner == nil || !strings.EqualFold(owner.Email, filter.OwnerEmail)) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Bin != "" && c.Bin != filter.Bin {
			continue
		}
		if filter.PanLast4 != "" && c.PanLast4 != filter.PanLast4 {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, page), int64(len(all)), nil
}

func paginate(cards []models.Card, page models.Page) []models.Card {
	start := page.Offset()
	if start >= len(cards) {
		return nil
	}
	end := start + page.Limit()
	if end > len(cards) {
		end = len(cards)
	}
	return cards[start:end]
}

func (f *fakeStore) DeleteCard(_ context.Context, cardID int64) error {
	if _, ok := f.cards[cardID]; !ok {
		return models.ErrNotFound
	}
	delete(f.cards, cardID)
	return nil
}

func (f *fakeStore) InTx(_ context.Context, fn func(tx models.CardTx) error) error {
	snapshot := make(map[int64]*models.Card, len(f.cards))
	for id, c := range f.cards {
		cp := *c
		snapshot[id] = &cp
	}
	if err := fn(f); err != nil {
		f.cards = snapshot
		return err
	}
	return nil
}

func (f *fakeStore) CardForUpdate(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	return f.CardByIDAndOwner(ctx, cardID, ownerID)
}

func (f *fakeStore) CardByIDForUpdate(_ context.Context, cardID int64) (*models.Card, error) {
	c, ok := f.cards[cardID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) UpdateCardBalance(_ context.Context, cardID int64, balance decimal.Decimal) error {
	if f.failBalanceWriteFor == cardID {
		return errInjectedWrite
	}
	c, ok := f.cards[cardID]
	if !ok {
		return models.ErrNotFound
	}
	c.Balance = balance
	c.UpdatedAt = time.Now()
	f.balanceWrites++
	return nil
}

func (f *fakeStore) UpdateCardStatus(_ context.Context, cardID int64, status models.CardStatus) error {
	c, ok := f.cards[cardID]
	if !ok {
		return models.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	f.statusWrites++
	return nil
}
