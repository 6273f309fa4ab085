package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/avdev42/bankcards/internal/models"
	"github.com/avdev42/bankcards/internal/utils"
)

// cardValidityYears is the issuance-to-expiry window.
const cardValidityYears = 4

// Notifier delivers best-effort customer notifications. Implementations
// must not block the caller; failures are their own concern.
type Notifier interface {
	CardTransaction(to, name, maskedPan, kind string, amount, balance decimal.Decimal)
	CustomerLocked(to, name string, locked bool)
}

// CardService is the ledger engine: the single authority for every
// change to a card's balance or status.
type CardService struct {
	store    models.Store
	log      *logrus.Logger
	bin      string
	currency string
	encKey   []byte
	notifier Notifier // may be nil
}

// NewCardService initializes the card service
func NewCardService(store models.Store, log *logrus.Logger, bin, currency string, encKey []byte, notifier Notifier) *CardService {
	return &CardService{
		store:    store,
		log:      log,
		bin:      bin,
		currency: currency,
		encKey:   encKey,
		notifier: notifier,
	}
}

// validateAmount rejects nil-like, non-positive amounts and amounts
// with more than two decimal places before any storage access.
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return models.ErrInvalidAmount
	}
	if amount.Exponent() < -2 {
		return models.ErrInvalidAmount
	}
	return nil
}

// Deposit credits an owner's card.
func (s *CardService) Deposit(ctx context.Context, ownerID, cardID int64, amount decimal.Decimal) (models.CardView, error) {
	if err := validateAmount(amount); err != nil {
		return models.CardView{}, err
	}

	var updated *models.Card
	err := s.store.InTx(ctx, func(tx models.CardTx) error {
		card, err := tx.CardForUpdate(ctx, cardID, ownerID)
		if err != nil {
			return err
		}
		if !card.Status.Usable() {
			return models.ErrCardUnusable
		}
		card.Balance = card.Balance.Add(amount)
		if err := tx.UpdateCardBalance(ctx, card.ID, card.Balance); err != nil {
			return err
		}
		updated = card
		return nil
	})
	if err != nil {
		return models.CardView{}, err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "card_id": cardID}).
		Infof("Deposited %s", amount)
	s.notifyTransaction(ownerID, updated, "Deposit", amount)
	return updated.View(), nil
}

// Withdraw debits an owner's card. The balance never goes negative.
func (s *CardService) Withdraw(ctx context.Context, ownerID, cardID int64, amount decimal.Decimal) (models.CardView, error) {
	if err := validateAmount(amount); err != nil {
		return models.CardView{}, err
	}

	var updated *models.Card
	err := s.store.InTx(ctx, func(tx models.CardTx) error {
		card, err := tx.CardForUpdate(ctx, cardID, ownerID)
		if err != nil {
			return err
		}
		if !card.Status.Usable() {
			return models.ErrCardUnusable
		}
		if card.Balance.LessThan(amount) {
			return models.ErrInsufficientFunds
		}
		card.Balance = card.Balance.Sub(amount)
		if err := tx.UpdateCardBalance(ctx, card.ID, card.Balance); err != nil {
			return err
		}
		updated = card
		return nil
	})
	if err != nil {
		return models.CardView{}, err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "card_id": cardID}).
		Infof("Withdrew %s", amount)
	s.notifyTransaction(ownerID, updated, "Withdrawal", amount)
	return updated.View(), nil
}

// Transfer moves an amount between two cards of the same owner. Both
// row updates happen in one transaction; rows are locked in ascending
// id order so concurrent opposite transfers cannot deadlock.
func (s *CardService) Transfer(ctx context.Context, ownerID, fromID, toID int64, amount decimal.Decimal) (models.TransferResult, error) {
	if err := validateAmount(amount); err != nil {
		return models.TransferResult{}, err
	}
	if fromID == toID {
		return models.TransferResult{}, models.ErrSameCard
	}

	var from, to *models.Card
	err := s.store.InTx(ctx, func(tx models.CardTx) error {
		firstID, secondID := fromID, toID
		if firstID > secondID {
			firstID, secondID = secondID, firstID
		}
		first, err := tx.CardForUpdate(ctx, firstID, ownerID)
		if err != nil {
			return err
		}
		second, err := tx.CardForUpdate(ctx, secondID, ownerID)
		if err != nil {
			return err
		}
		from, to = first, second
		if from.ID != fromID {
			from, to = second, first
		}

		if !from.Status.Usable() || !to.Status.Usable() {
			return models.ErrCardUnusable
		}
		if from.Currency != to.Currency {
			return models.ErrCurrencyMismatch
		}
		if from.Balance.LessThan(amount) {
			return models.ErrInsufficientFunds
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		if err := tx.UpdateCardBalance(ctx, from.ID, from.Balance); err != nil {
			return err
		}
		return tx.UpdateCardBalance(ctx, to.ID, to.Balance)
	})
	if err != nil {
		return models.TransferResult{}, err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "from_card": fromID, "to_card": toID}).
		Infof("Transferred %s", amount)
	s.notifyTransaction(ownerID, from, "Transfer out", amount)
	return models.TransferResult{From: from.View(), To: to.View()}, nil
}

// SetCardStatus switches a card between ACTIVE and BLOCKED
// (administrator operation, unscoped by owner). Idempotent: a card
// already at the target status is returned without a write. EXPIRED
// cards cannot be toggled.
func (s *CardService) SetCardStatus(ctx context.Context, cardID int64, target models.CardStatus) (models.CardView, error) {
	if target != models.CardActive && target != models.CardBlocked {
		return models.CardView{}, fmt.Errorf("unsupported target status %q", target)
	}

	var card *models.Card
	err := s.store.InTx(ctx, func(tx models.CardTx) error {
		c, err := tx.CardByIDForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if c.Status == target {
			card = c
			return nil
		}
		if c.Status == models.CardExpired {
			return models.ErrCardUnusable
		}
		if err := tx.UpdateCardStatus(ctx, c.ID, target); err != nil {
			return err
		}
		c.Status = target
		card = c
		return nil
	})
	if err != nil {
		return models.CardView{}, err
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "status": target}).Info("Card status set")
	return card.View(), nil
}

// CreateCard issues a new card for an owner (administrator operation).
// The decrypted number exists only long enough to derive the last four
// digits and the BIN; it is stored encrypted and never logged.
func (s *CardService) CreateCard(ctx context.Context, ownerID int64) (models.CardView, error) {
	owner, err := s.store.OwnerByID(ctx, ownerID)
	if err != nil {
		return models.CardView{}, err
	}

	pan, err := utils.GeneratePan(s.bin)
	if err != nil {
		return models.CardView{}, fmt.Errorf("failed to generate card number: %w", err)
	}
	encrypted, err := utils.Encrypt(pan, s.encKey)
	if err != nil {
		return models.CardView{}, fmt.Errorf("failed to encrypt card number: %w", err)
	}

	now := time.Now()
	card := &models.Card{
		OwnerID:      owner.ID,
		PanEncrypted: encrypted,
		PanLast4:     pan[len(pan)-4:],
		Bin:          pan[:6],
		ExpiryMonth:  int(now.Month()),
		ExpiryYear:   now.Year() + cardValidityYears,
		Status:       models.CardActive,
		Balance:      decimal.Zero,
		Currency:     s.currency,
	}
	if err := s.store.CreateCard(ctx, card); err != nil {
		return models.CardView{}, err
	}

	s.log.WithFields(logrus.Fields{"owner_id": ownerID, "card_id": card.ID}).Info("Card created")
	return card.View(), nil
}

// DeleteCard removes a card permanently (administrator operation).
func (s *CardService) DeleteCard(ctx context.Context, cardID int64) error {
	if err := s.store.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	s.log.WithField("card_id", cardID).Info("Card deleted")
	return nil
}

// PagedCards is one page of card views.
type PagedCards struct {
	Items []models.CardView `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Size  int               `json:"size"`
}

// MyCards lists the caller's cards, newest first.
func (s *CardService) MyCards(ctx context.Context, ownerID int64, page models.Page) (PagedCards, error) {
	page = page.Normalize()
	cards, total, err := s.store.CardsByOwner(ctx, ownerID, page)
	if err != nil {
		return PagedCards{}, err
	}
	return pageOf(cards, total, page), nil
}

// MyCardByID returns one of the caller's cards. Cards of other owners
// are reported as not found.
func (s *CardService) MyCardByID(ctx context.Context, ownerID, cardID int64) (models.CardView, error) {
	card, err := s.store.CardByIDAndOwner(ctx, cardID, ownerID)
	if err != nil {
		return models.CardView{}, err
	}
	return card.View(), nil
}

// ListCards lists cards matching the filter (administrator operation).
func (s *CardService) ListCards(ctx context.Context, f models.CardFilter, page models.Page) (PagedCards, error) {
	page = page.Normalize()
	cards, total, err := s.store.ListCards(ctx, f, page)
	if err != nil {
		return PagedCards{}, err
	}
	return pageOf(cards, total, page), nil
}

func pageOf(cards []models.Card, total int64, page models.Page) PagedCards {
	items := make([]models.CardView, 0, len(cards))
	for i := range cards {
		items = append(items, cards[i].View())
	}
	return PagedCards{Items: items, Total: total, Page: page.Number, Size: page.Size}
}

// notifyTransaction emails the card owner about a balance change.
// Best effort: lookup and delivery run outside the request.
func (s *CardService) notifyTransaction(ownerID int64, card *models.Card, kind string, amount decimal.Decimal) {
	if s.notifier == nil || card == nil {
		return
	}
	balance := card.Balance
	masked := card.MaskedPan()
	go func() {
		owner, err := s.store.OwnerByID(context.Background(), ownerID)
		if err != nil {
			s.log.Warnf("Skipping %s notification: %v", kind, err)
			return
		}
		s.notifier.CardTransaction(owner.Email, owner.FirstName, masked, kind, amount, balance)
	}()
}
