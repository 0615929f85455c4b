package models

import (
	"database/sql"
	"net"
	"strconv"
	"time"
)

// MailAccount represents a configured mailbox: one retrieval endpoint, one
// delivery endpoint and the sync watermark. Credentials arrive already
// decrypted; encryption at rest is the account-management service's concern.
type MailAccount struct {
	ID       int64  `db:"id"`
	UserID   string `db:"user_id"`
	Email    string `db:"email"`
	Provider string `db:"provider"` // gmail, outlook, custom, ...

	IMAPHost     string `db:"imap_host"`
	IMAPPort     int    `db:"imap_port"`
	IMAPSecure   bool   `db:"imap_secure"`
	IMAPUsername string `db:"imap_username"`
	IMAPPassword string `db:"imap_password"`

	SMTPHost     string `db:"smtp_host"`
	SMTPPort     int    `db:"smtp_port"`
	SMTPSecure   bool   `db:"smtp_secure"`
	SMTPUsername string `db:"smtp_username"`
	SMTPPassword string `db:"smtp_password"`

	// LastSyncedUID is the highest UID already persisted for this account.
	// It never decreases; it advances only after the message with that UID
	// has been durably stored.
	LastSyncedUID uint32       `db:"last_synced_uid"`
	LastSync      sql.NullTime `db:"last_sync"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IMAPAddr returns the retrieval server address as host:port.
func (a *MailAccount) IMAPAddr() string {
	return net.JoinHostPort(a.IMAPHost, strconv.Itoa(a.IMAPPort))
}

// SMTPAddr returns the delivery server address as host:port.
func (a *MailAccount) SMTPAddr() string {
	return net.JoinHostPort(a.SMTPHost, strconv.Itoa(a.SMTPPort))
}
