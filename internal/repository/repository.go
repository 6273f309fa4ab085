package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/avdev42/bankcards/internal/models"
)

const uniqueViolation = "23505"

const cardColumns = `id, owner_id, pan_encrypted, pan_last4, bin, expiry_month, expiry_year, status, balance, currency, created_at, updated_at`

// Repository provides database operations over the owner/card schema
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateOwner creates a new owner in the database
func (r *Repository) CreateOwner(ctx context.Context, o *models.Owner) error {
	query := `
		INSERT INTO owners (first_name, last_name, date_of_birth, email, password_hash, phone, role, locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		o.FirstName, o.LastName, o.DateOfBirth, o.Email, o.PasswordHash, o.Phone, o.Role, o.Locked).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("failed to create owner: %w", err)
	}
	return nil
}

// OwnerByID retrieves an owner by id
func (r *Repository) OwnerByID(ctx context.Context, id int64) (*models.Owner, error) {
	return r.ownerBy(ctx, "id = $1", id)
}

// OwnerByEmail retrieves an owner by email
func (r *Repository) OwnerByEmail(ctx context.Context, email string) (*models.Owner, error) {
	return r.ownerBy(ctx, "email = $1", email)
}

func (r *Repository) ownerBy(ctx context.Context, where string, arg any) (*models.Owner, error) {
	o := &models.Owner{}
	query := `
		SELECT id, first_name, last_name, date_of_birth, email, password_hash, phone, role, locked, created_at, updated_at
		FROM owners
		WHERE ` + where
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&o.ID, &o.FirstName, &o.LastName, &o.DateOfBirth, &o.Email, &o.PasswordHash,
			&o.Phone, &o.Role, &o.Locked, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find owner: %w", err)
	}
	return o, nil
}

// UpdateOwner persists mutable owner fields
func (r *Repository) UpdateOwner(ctx context.Context, o *models.Owner) error {
	query := `
		UPDATE owners
		SET first_name = $1, last_name = $2, date_of_birth = $3, email = $4,
		    password_hash = $5, phone = $6, role = $7, locked = $8, updated_at = CURRENT_TIMESTAMP
		WHERE id = $9
		RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		o.FirstName, o.LastName, o.DateOfBirth, o.Email, o.PasswordHash,
		o.Phone, o.Role, o.Locked, o.ID).Scan(&o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrEmailTaken
		}
		return fmt.Errorf("failed to update owner: %w", err)
	}
	return nil
}

// OwnersByRole lists owners having the given role, newest first
func (r *Repository) OwnersByRole(ctx context.Context, role models.Role) ([]models.Owner, error) {
	query := `
		SELECT id, first_name, last_name, date_of_birth, email, password_hash, phone, role, locked, created_at, updated_at
		FROM owners
		WHERE role = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []models.Owner
	for rows.Next() {
		var o models.Owner
		if err := rows.Scan(&o.ID, &o.FirstName, &o.LastName, &o.DateOfBirth, &o.Email, &o.PasswordHash,
			&o.Phone, &o.Role, &o.Locked, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

// EmailTakenByOther reports whether another owner already uses the email
func (r *Repository) EmailTakenByOther(ctx context.Context, email string, ownerID int64) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM owners WHERE email = $1 AND id <> $2)`,
		email, ownerID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

// CreateCard creates a new card in the database
func (r *Repository) CreateCard(ctx context.Context, c *models.Card) error {
	query := `
		INSERT INTO cards (owner_id, pan_encrypted, pan_last4, bin, expiry_month, expiry_year, status, balance, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		c.OwnerID, c.PanEncrypted, c.PanLast4, c.Bin, c.ExpiryMonth, c.ExpiryYear,
		c.Status, c.Balance, c.Currency).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// CardByIDAndOwner retrieves a card scoped by owner
func (r *Repository) CardByIDAndOwner(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND owner_id = $2`
	return scanCard(r.db.QueryRowContext(ctx, query, cardID, ownerID))
}

// CardsByOwner lists an owner's cards, newest first, with the total count
func (r *Repository) CardsByOwner(ctx context.Context, ownerID int64, page models.Page) ([]models.Card, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	query := `SELECT ` + cardColumns + `
		FROM cards
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, ownerID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	cards, err := collectCards(rows)
	return cards, total, err
}

// ListCards lists cards matching the admin filter, newest first
func (r *Repository) ListCards(ctx context.Context, f models.CardFilter, page models.Page) ([]models.Card, int64, error) {
	where, args := buildCardFilter(f)

	var total int64
	countQuery := `SELECT COUNT(*) FROM cards c JOIN owners o ON o.id = c.owner_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	cols := strings.ReplaceAll(cardColumns, ", ", ", c.")
	query := `SELECT c.` + cols + `
		FROM cards c JOIN owners o ON o.id = c.owner_id` + where +
		fmt.Sprintf(` ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, page.Limit(), page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	cards, err := collectCards(rows)
	return cards, total, err
}

// buildCardFilter translates a CardFilter into a WHERE clause. Zero
// fields contribute no predicate.
func buildCardFilter(f models.CardFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.OwnerID != 0 {
		add("c.owner_id = $%d", f.OwnerID)
	}
	if f.OwnerEmail != "" {
		add("LOWER(o.email) = LOWER($%d)", f.OwnerEmail)
	}
	if f.Status != "" {
		add("c.status = $%d", f.Status)
	}
	if f.Bin != "" {
		add("c.bin = $%d", f.Bin)
	}
	if f.PanLast4 != "" {
		add("c.pan_last4 = $%d", f.PanLast4)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// DeleteCard removes a card permanently
func (r *Repository) DeleteCard(ctx context.Context, cardID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, cardID)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ExpireBefore marks every non-expired card whose expiry lies strictly
// before the given month as EXPIRED. Returns the number of cards marked.
func (r *Repository) ExpireBefore(ctx context.Context, year, month int) (int64, error) {
	query := `
		UPDATE cards
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE status <> $1 AND (expiry_year < $2 OR (expiry_year = $2 AND expiry_month < $3))`
	res, err := r.db.ExecContext(ctx, query, models.CardExpired, year, month)
	if err != nil {
		return 0, fmt.Errorf("failed to expire cards: %w", err)
	}
	return res.RowsAffected()
}

// InTx runs fn within a single database transaction
func (r *Repository) InTx(ctx context.Context, fn func(tx models.CardTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&cardTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// cardTx implements models.CardTx on top of *sql.Tx. Reads use
// SELECT ... FOR UPDATE so the checked balance stays consistent with
// the subsequent write.
type cardTx struct {
	tx *sql.Tx
}

func (t *cardTx) CardForUpdate(ctx context.Context, cardID, ownerID int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 AND owner_id = $2 FOR UPDATE`
	return scanCard(t.tx.QueryRowContext(ctx, query, cardID, ownerID))
}

func (t *cardTx) CardByIDForUpdate(ctx context.Context, cardID int64) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`
	return scanCard(t.tx.QueryRowContext(ctx, query, cardID))
}

func (t *cardTx) UpdateCardBalance(ctx context.Context, cardID int64, balance decimal.Decimal) error {
	return t.updateCard(ctx, `UPDATE cards SET balance = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, balance, cardID)
}

func (t *cardTx) UpdateCardStatus(ctx context.Context, cardID int64, status models.CardStatus) error {
	return t.updateCard(ctx, `UPDATE cards SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`, status, cardID)
}

func (t *cardTx) updateCard(ctx context.Context, query string, value any, cardID int64) error {
	res, err := t.tx.ExecContext(ctx, query, value, cardID)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	c := &models.Card{}
	err := row.Scan(&c.ID, &c.OwnerID, &c.PanEncrypted, &c.PanLast4, &c.Bin,
		&c.ExpiryMonth, &c.ExpiryYear, &c.Status, &c.Balance, &c.Currency,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}
	return c, nil
}

func collectCards(rows *sql.Rows) ([]models.Card, error) {
	var cards []models.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}
