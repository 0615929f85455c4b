package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// ErrNotFound is returned when a record is not found
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when trying to insert a duplicate record
var ErrAlreadyExists = errors.New("record already exists")

// CreateAccount creates a new mail account
func (db *DB) CreateAccount(ctx context.Context, account *models.MailAccount) error {
	query := `
		INSERT INTO mail_accounts (
			user_id, email, provider,
			imap_host, imap_port, imap_secure, imap_username, imap_password,
			smtp_host, smtp_port, smtp_secure, smtp_username, smtp_password,
			last_synced_uid, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		account.UserID,
		account.Email,
		account.Provider,
		account.IMAPHost,
		account.IMAPPort,
		account.IMAPSecure,
		account.IMAPUsername,
		account.IMAPPassword,
		account.SMTPHost,
		account.SMTPPort,
		account.SMTPSecure,
		account.SMTPUsername,
		account.SMTPPassword,
		account.LastSyncedUID,
		now,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetAccountByID returns an account by ID
func (db *DB) GetAccountByID(ctx context.Context, id int64) (*models.MailAccount, error) {
	var account models.MailAccount
	query := `SELECT * FROM mail_accounts WHERE id = ?`
	err := db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// ListAccounts returns all accounts
func (db *DB) ListAccounts(ctx context.Context) ([]*models.MailAccount, error) {
	var accounts []*models.MailAccount
	query := `SELECT * FROM mail_accounts ORDER BY created_at DESC`
	err := db.SelectContext(ctx, &accounts, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ListAccountsByUser returns all accounts owned by a user
func (db *DB) ListAccountsByUser(ctx context.Context, userID string) ([]*models.MailAccount, error) {
	var accounts []*models.MailAccount
	query := `SELECT * FROM mail_accounts WHERE user_id = ? ORDER BY created_at DESC`
	err := db.SelectContext(ctx, &accounts, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// AdvanceWatermark moves the sync watermark forward. The update is a
// compare-and-swap: it only applies while the stored watermark is still
// below uid, so two sync runs racing on one account cannot move it
// backwards. Losing the race is not an error.
func (db *DB) AdvanceWatermark(ctx context.Context, id int64, uid uint32, at time.Time) error {
	query := `
		UPDATE mail_accounts
		SET last_synced_uid = ?, last_sync = ?, updated_at = ?
		WHERE id = ? AND last_synced_uid < ?
	`
	_, err := db.ExecContext(ctx, query, uid, at, at, id, uid)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}
