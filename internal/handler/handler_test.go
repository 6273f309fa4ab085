package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/avdev42/bankcards/internal/auth"
	"github.com/avdev42/bankcards/internal/models"
	"github.com/avdev42/bankcards/internal/service"
)

var testEncKey = []byte("0123456789abcdef0123456789abcdef")

// memStore is an in-memory models.Store for routing tests.
type memStore struct {
	owners      map[int64]*models.Owner
	cards       map[int64]*models.Card
	nextOwnerID int64
	nextCardID  int64
}

func newMemStore() *memStore {
	return &memStore{
		owners: make(map[int64]*models.Owner),
		cards:  make(map[int64]*models.Card),
	}
}

// testAPI wires the full router over a memStore.
type testAPI struct {
	store  *memStore
	tokens *auth.Manager
	router http.Handler
}

func newTestAPI() *testAPI {
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := newMemStore()
	tokens := auth.NewManager("test-secret", time.Hour)
	owners := service.NewOwnerService(store, log, tokens, "promote-code", nil)
	cards := service.NewCardService(store, log, "400000", "USD", testEncKey, nil)
	h := NewHandler(owners, cards, nil, log)

	return &testAPI{store: store, tokens: tokens, router: h.Routes(tokens)}
}

func (a *testAPI) tokenFor(o *models.Owner) string {
	token, err := a.tokens.Generate(models.Identity{OwnerID: o.ID, Email: o.Email, Role: o.Role})
	if err != nil {
		panic(err)
	}
	return token
}

func (a *testAPI) do(method, path, token string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (s *memStore) addOwner(o models.Owner) *models.Owner {
	s.nextOwnerID++
	o.ID = s.nextOwnerID
	s.owners[o.ID] = &o
	return &o
}

func (s *memStore) addCard(c models.Card) *models.Card {
	s.nextCardID++
	c.ID = s.nextCardID
	if c.Status == "" {
		c.Status = models.CardActive
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	s.cards[c.ID] = &c
	return &c
}

func (s *memStore) CreateOwner(_ context.Context, o *models.Owner) error {
	for _, existing := range s.owners {
		if strings.EqualFold(existing.Email, o.Email) {
			return models.ErrEmailTaken
		}
	}
	*o = *s.addOwner(*o)
	return nil
}

func (s *memStore) OwnerByID(_ context.Context, id int64) (*models.Owner, error) {
	o, ok := s.owners[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) OwnerByEmail(_ context.Context, email string) (*models.Owner, error) {
	for _, o := range s.owners {
		if strings.EqualFold(o.Email, email) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memStore) UpdateOwner(_ context.Context, o *models.Owner) error {
	if _, ok := s.owners[o.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *o
	s.owners[o.ID] = &cp
	return nil
}

func (s *memStore) OwnersByRole(_ context.Context, role models.Role) ([]models.Owner, error) {
	var out []models.Owner
	for _, o := range s.owners {
		if o.Role == role {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) EmailTakenByOther(_ context.Context, email string, ownerID int64) (bool, error) {
	for _, o := range s.owners {
		if o.ID != ownerID && strings.EqualFold(o.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateCard(_ context.Context, c *models.Card) error {
	if _, ok := s.owners[c.OwnerID]; !ok {
		return models.ErrNotFound
	}
	*c = *s.addCard(*c)
	return nil
}

func (s *memStore) CardByIDAndOwner(_ context.Context, cardID, ownerID int64) (*models.Card, error) {
	c, ok := s.cards[cardID]
	if !ok || c.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) CardsByOwner(_ context.Context, ownerID int64, page models.Page) ([]models.Card, int64, error) {
	var all []models.Card
	for _, c := range s.cards {
		if c.OwnerID == ownerID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return slicePage(all, page), int64(len(all)), nil
}

func (s *memStore) ListCards(_ context.Context, f models.CardFilter, page models.Page) ([]models.Card, int64, error) {
	var all []models.Card
	for _, c := range s.cards {
		owner := s.owners[c.OwnerID]
		if f.OwnerID != 0 && c.OwnerID != f.OwnerID {
			continue
		}
		if f.OwnerEmail != "" && (owner == nil || !strings.EqualFold(owner.Email, f.OwnerEmail)) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Bin != "" && c.Bin != f.Bin {
			continue
		}
		if f.PanLast4 != "" && c.PanLast4 != f.PanLast4 {
			continue
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return slicePage(all, page), int64(len(all)), nil
}

func slicePage(cards []models.Card, page models.Page) []models.Card {
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

func (s *memStore) DeleteCard(_ context.Context, cardID int64) error {
	if _, ok := s.cards[cardID]; !ok {
		return models.ErrNotFound
	}
	delete(s.cards, cardID)
	return nil
}

func (s *memStore) InTx(_ context.Context, fn func(tx models.CardTx) error) error {
	snapshot := make(map[int64]*models.Card, len(s.cards))
	for id, c := range s.cards {
		cp := *c
		snapshot[id] = &cp
	}
	if err := fn(s); err != nil {
		s.cards = snapshot
		return err
	}
	return nil
}

func (s *memStore) CardForUpdate(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	return s.CardByIDAndOwner(ctx, cardID, ownerID)
}

func (s *memStore) CardByIDForUpdate(_ context.Context, cardID int64) (*models.Card, error) {
	c, ok := s.cards[cardID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) UpdateCardBalance(_ context.Context, cardID int64, balance decimal.Decimal) error {
	c, ok := s.cards[cardID]
	if !ok {
		return models.ErrNotFound
	}
	c.Balance = balance
	return nil
}

func (s *memStore) UpdateCardStatus(_ context.Context, cardID int64, status models.CardStatus) error {
	c, ok := s.cards[cardID]
	if !ok {
		return models.ErrNotFound
	}
	c.Status = status
	return nil
}
