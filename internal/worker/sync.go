package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/internal/email"
	"github.com/adharshSciPy/justyta-mail/internal/parser"
	"github.com/adharshSciPy/justyta-mail/internal/queue"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// SyncWorker pulls new inbound mail for one account per task. Messages are
// persisted and the account watermark advanced strictly in ascending UID
// order, one message at a time, so an interrupted run loses at most the
// in-flight message.
type SyncWorker struct {
	db             *database.DB
	dial           email.MailboxDialer
	html           *parser.HTMLParser
	sessionTimeout time.Duration
	logger         *slog.Logger
}

// NewSyncWorker creates a sync task handler
func NewSyncWorker(db *database.DB, dial email.MailboxDialer, html *parser.HTMLParser, sessionTimeout time.Duration, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		db:             db,
		dial:           dial,
		html:           html,
		sessionTimeout: sessionTimeout,
		logger:         logger.With("component", "sync_worker"),
	}
}

// Handle processes one sync task
func (w *SyncWorker) Handle(ctx context.Context, job *queue.Job) error {
	var task models.SyncTask
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return queue.Permanent(fmt.Errorf("failed to decode sync task: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, w.sessionTimeout)
	defer cancel()

	logger := w.logger.With("account_id", task.AccountID, "job_id", job.ID)

	account, err := w.db.GetAccountByID(ctx, task.AccountID)
	if errors.Is(err, database.ErrNotFound) {
		return queue.Permanent(fmt.Errorf("mail account %d not found", task.AccountID))
	}
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	mbox, err := w.dial(ctx, email.Endpoint{
		Host:     account.IMAPHost,
		Port:     account.IMAPPort,
		Secure:   account.IMAPSecure,
		Username: account.IMAPUsername,
		Password: account.IMAPPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to open retrieval session: %w", err)
	}
	defer mbox.Close()

	logger.Info("syncing mailbox", "since_uid", account.LastSyncedUID)

	msgs, fetchErr := mbox.FetchSince(ctx, account.LastSyncedUID)
	var parseErr *email.ParseError
	if fetchErr != nil && !errors.As(fetchErr, &parseErr) {
		return fmt.Errorf("failed to fetch messages: %w", fetchErr)
	}

	stored := 0
	for _, in := range msgs {
		msg := w.toMessage(account.ID, in)

		err := w.db.CreateMessage(ctx, msg)
		if err != nil && !errors.Is(err, database.ErrAlreadyExists) {
			// Progress up to the previous message is kept; this one will be
			// re-fetched on the next pass because the watermark stays put.
			logger.Error("failed to store message, ending sync run early", "uid", in.UID, "error", err)
			return nil
		}

		if err := w.db.AdvanceWatermark(ctx, account.ID, in.UID, time.Now()); err != nil {
			logger.Error("failed to advance watermark, ending sync run early", "uid", in.UID, "error", err)
			return nil
		}
		stored++
	}

	if parseErr != nil {
		logger.Error("message parse failed, remaining range deferred to next sync", "uid", parseErr.UID, "error", parseErr.Err)
	}

	logger.Info("sync finished", "new_messages", stored)
	return nil
}

func (w *SyncWorker) toMessage(accountID int64, in *email.InboundMessage) *models.Message {
	text := in.Text
	if text == "" && in.HTML != "" {
		if derived, err := w.html.Parse(in.HTML); err == nil {
			text = derived
		}
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	return &models.Message{
		AccountID:   accountID,
		UID:         in.UID,
		MessageID:   in.MessageID,
		ThreadID:    in.ThreadID,
		Folder:      models.FolderInbox,
		From:        in.From,
		To:          in.To,
		Cc:          in.Cc,
		Bcc:         in.Bcc,
		Subject:     in.Subject,
		Text:        text,
		HTML:        in.HTML,
		Date:        date,
		Flags:       in.Flags,
		Attachments: in.Attachments,
	}
}
