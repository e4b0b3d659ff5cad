package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abhayc-main/next-starter/internal/domain"
	"github.com/abhayc-main/next-starter/internal/repository"
	"github.com/abhayc-main/next-starter/pkg/database"
)

// DB is the subset of *pgxpool.Pool the account repository needs.
type DB interface {
	database.TxDBTX
	Ping(ctx context.Context) error
}

const accountColumns = `id, email, username, password_hash, name, image, email_verified, signup_date, last_login`

// AccountRepository implements repository.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db DB
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new PostgreSQL-backed account repository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const insertAccountSQL = `
		INSERT INTO accounts (id, email, username, password_hash, name, image, email_verified, signup_date, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func insertAccount(ctx context.Context, db database.DBTX, a *domain.Account) error {
	ctx, end := database.TraceQuery(ctx, "InsertAccount", insertAccountSQL)
	_, err := db.Exec(ctx, insertAccountSQL,
		a.ID,
		a.Email,
		a.Username,
		a.PasswordHash,
		a.Name,
		a.Image,
		a.EmailVerified,
		a.SignupDate,
		a.LastLogin,
	)
	end(err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicateAccount
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const insertIdentitySQL = `
		INSERT INTO account_identities (account_id, provider, subject, created_at)
		VALUES ($1, $2, $3, $4)`

func insertIdentity(ctx context.Context, db database.DBTX, li domain.LinkedIdentity) error {
	ctx, end := database.TraceQuery(ctx, "InsertAccountIdentity", insertIdentitySQL)
	_, err := db.Exec(ctx, insertIdentitySQL, li.AccountID, li.Provider, li.Subject, li.CreatedAt)
	end(err)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrIdentityLinked
		}
		return fmt.Errorf("insert account identity: %w", err)
	}
	return nil
}

// Create inserts a new account. A unique violation on email is reported as
// domain.ErrDuplicateAccount.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	return insertAccount(ctx, r.db, a)
}

// CreateWithIdentity inserts the account and its identity link in one
// transaction.
func (r *AccountRepository) CreateWithIdentity(ctx context.Context, a *domain.Account, li domain.LinkedIdentity) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertAccount(ctx, tx, a); err != nil {
		return err
	}
	li.AccountID = a.ID
	if err := insertIdentity(ctx, tx, li); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit account with identity: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(ctx, "GetAccountByID", query, id)
}

// GetByEmail retrieves the account with the given canonical email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(ctx, "GetAccountByEmail", query, email)
}

// FindFirstByEmail returns the earliest account registered with email.
func (r *AccountRepository) FindFirstByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 ORDER BY signup_date ASC LIMIT 1`
	return r.scanAccount(ctx, "FindFirstAccountByEmail", query, email)
}

// GetByIdentity retrieves the account linked to provider/subject.
func (r *AccountRepository) GetByIdentity(ctx context.Context, provider, subject string) (*domain.Account, error) {
	query := `
		SELECT a.id, a.email, a.username, a.password_hash, a.name, a.image, a.email_verified, a.signup_date, a.last_login
		FROM accounts a
		JOIN account_identities i ON i.account_id = a.id
		WHERE i.provider = $1 AND i.subject = $2`
	return r.scanAccount(ctx, "GetAccountByIdentity", query, provider, subject)
}

// LinkIdentity attaches an external identity to an existing account.
func (r *AccountRepository) LinkIdentity(ctx context.Context, li domain.LinkedIdentity) error {
	return insertIdentity(ctx, r.db, li)
}

// UpdateLastLogin stamps the account's last sign-in time.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE accounts SET last_login = $1 WHERE id = $2`

	ctx, end := database.TraceQuery(ctx, "UpdateAccountLastLogin", query)
	ct, err := r.db.Exec(ctx, query, at, id)
	end(err)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// UpdateProfile sets the non-nil fields of update and returns the stored row.
func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET name = COALESCE($2, name), image = COALESCE($3, image)
		WHERE id = $1
		RETURNING ` + accountColumns
	return r.scanAccount(ctx, "UpdateAccountProfile", query, id, update.Name, update.Image)
}

// Ping checks connectivity to the database.
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// scanAccount executes a query expected to return a single account row.
func (r *AccountRepository) scanAccount(ctx context.Context, op, query string, args ...any) (*domain.Account, error) {
	ctx, end := database.TraceQuery(ctx, op, query)

	var a domain.Account
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.Email,
		&a.Username,
		&a.PasswordHash,
		&a.Name,
		&a.Image,
		&a.EmailVerified,
		&a.SignupDate,
		&a.LastLogin,
	)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
