package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// NewDB opens a migrated throwaway database for one test.
func NewDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewAccount inserts a mail account with sane defaults and returns it.
func NewAccount(t *testing.T, db *database.DB) *models.MailAccount {
	t.Helper()

	account := &models.MailAccount{
		UserID:       "user-1",
		Email:        "lawyer@example.com",
		Provider:     "custom",
		IMAPHost:     "imap.example.com",
		IMAPPort:     993,
		IMAPSecure:   true,
		IMAPUsername: "lawyer@example.com",
		IMAPPassword: "secret",
		SMTPHost:     "smtp.example.com",
		SMTPPort:     465,
		SMTPSecure:   true,
		SMTPUsername: "lawyer@example.com",
		SMTPPassword: "secret",
	}
	if err := db.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}
