package database

import (
	"context"
	"fmt"
	"time"

	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// CreateMessage appends a message. For inbox mail a duplicate
// (account_id, uid) pair is ignored and reported as ErrAlreadyExists so a
// re-fetch after a partial sync does not double-store.
func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT OR IGNORE INTO mail_messages (
			account_id, uid, message_id, thread_id, folder,
			from_addrs, to_addrs, cc_addrs, bcc_addrs,
			subject, body_text, body_html, date, flags, attachments, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		msg.AccountID,
		msg.UID,
		msg.MessageID,
		msg.ThreadID,
		msg.Folder,
		msg.From,
		msg.To,
		msg.Cc,
		msg.Bcc,
		msg.Subject,
		msg.Text,
		msg.HTML,
		msg.Date,
		msg.Flags,
		msg.Attachments,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAlreadyExists
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = now
	return nil
}

// ListMessages returns an account's messages in one folder, oldest first
func (db *DB) ListMessages(ctx context.Context, accountID int64, folder string) ([]*models.Message, error) {
	var messages []*models.Message
	query := `SELECT * FROM mail_messages WHERE account_id = ? AND folder = ? ORDER BY date, id`
	err := db.SelectContext(ctx, &messages, query, accountID, folder)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// CountMessages returns the number of stored messages for an account
func (db *DB) CountMessages(ctx context.Context, accountID int64, folder string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM mail_messages WHERE account_id = ? AND folder = ?`
	err := db.GetContext(ctx, &count, query, accountID, folder)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
