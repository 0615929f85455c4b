package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/internal/testutil"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

func TestGetAccountByIDNotFound(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)

	_, err := db.GetAccountByID(context.Background(), 42)
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAndListAccounts(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	ctx := context.Background()

	account := testutil.NewAccount(t, db)
	if account.ID == 0 {
		t.Fatal("expected account id to be assigned")
	}

	got, err := db.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != account.Email {
		t.Errorf("Email: got %q, want %q", got.Email, account.Email)
	}
	if got.LastSyncedUID != 0 {
		t.Errorf("LastSyncedUID: got %d, want 0", got.LastSyncedUID)
	}

	byUser, err := db.ListAccountsByUser(ctx, account.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byUser) != 1 {
		t.Fatalf("ListAccountsByUser: got %d accounts, want 1", len(byUser))
	}

	none, err := db.ListAccountsByUser(ctx, "someone-else")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("ListAccountsByUser(other): got %d accounts, want 0", len(none))
	}
}

func TestAdvanceWatermarkIsMonotonic(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	ctx := context.Background()
	account := testutil.NewAccount(t, db)

	if err := db.AdvanceWatermark(ctx, account.ID, 7, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A stale writer must not move the watermark backwards.
	if err := db.AdvanceWatermark(ctx, account.ID, 5, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := db.GetAccountByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.LastSyncedUID != 7 {
		t.Errorf("LastSyncedUID: got %d, want 7", got.LastSyncedUID)
	}
	if !got.LastSync.Valid {
		t.Error("LastSync: expected to be set")
	}
}

func TestCreateMessageDeduplicatesInboxUID(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	ctx := context.Background()
	account := testutil.NewAccount(t, db)

	msg := &models.Message{
		AccountID: account.ID,
		UID:       6,
		MessageID: "<m6@example.com>",
		Folder:    models.FolderInbox,
		From:      models.AddressList{{Name: "Alice", Email: "alice@example.com"}},
		To:        models.AddressList{{Email: account.Email}},
		Subject:   "hello",
		Text:      "hi",
		Date:      time.Now(),
		Flags:     models.StringList{"\\Seen"},
	}
	if err := db.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := *msg
	dup.ID = 0
	err := db.CreateMessage(ctx, &dup)
	if !errors.Is(err, database.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	count, err := db.CountMessages(ctx, account.ID, models.FolderInbox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("CountMessages: got %d, want 1", count)
	}
}

func TestCreateMessageSentMailIsNotDeduplicated(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	ctx := context.Background()
	account := testutil.NewAccount(t, db)

	// Sent mail has no retrieval UID; two sent rows must both persist.
	for i := 0; i < 2; i++ {
		msg := &models.Message{
			AccountID: account.ID,
			Folder:    models.FolderSent,
			From:      models.AddressList{{Email: account.Email}},
			To:        models.AddressList{{Email: "client@example.com"}},
			Subject:   "update",
			Date:      time.Now(),
		}
		if err := db.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("unexpected error on message %d: %v", i, err)
		}
	}

	count, err := db.CountMessages(ctx, account.ID, models.FolderSent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("CountMessages: got %d, want 2", count)
	}
}

func TestMessageRoundTripPreservesEnvelope(t *testing.T) {
	t.Parallel()
	db := testutil.NewDB(t)
	ctx := context.Background()
	account := testutil.NewAccount(t, db)

	msg := &models.Message{
		AccountID: account.ID,
		UID:       9,
		Folder:    models.FolderInbox,
		From:      models.AddressList{{Name: "Bob", Email: "bob@example.com"}},
		To: models.AddressList{
			{Email: "first@example.com"},
			{Email: "second@example.com"},
			{Email: "first@example.com"}, // duplicates are allowed, order kept
		},
		Subject: "envelope",
		Date:    time.Now(),
		Attachments: models.AttachmentList{
			{FileName: "contract.pdf", Size: 1024, MimeType: "application/pdf"},
		},
	}
	if err := db.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := db.ListMessages(ctx, account.ID, models.FolderInbox)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d messages, want 1", len(stored))
	}
	got := stored[0]
	if len(got.To) != 3 || got.To[0].Email != "first@example.com" || got.To[2].Email != "first@example.com" {
		t.Errorf("To list not preserved: %+v", got.To)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].FileName != "contract.pdf" {
		t.Errorf("Attachments not preserved: %+v", got.Attachments)
	}
}
