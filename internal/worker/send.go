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

// SendWorker delivers one outbound message per task and records a sent
// copy. Failures before the delivery server accepts the message are
// retryable; a store failure afterwards is only logged, never re-delivered.
type SendWorker struct {
	db             *database.DB
	dial           email.SenderDialer
	html           *parser.HTMLParser
	sessionTimeout time.Duration
	logger         *slog.Logger
}

// NewSendWorker creates a send task handler
func NewSendWorker(db *database.DB, dial email.SenderDialer, html *parser.HTMLParser, sessionTimeout time.Duration, logger *slog.Logger) *SendWorker {
	return &SendWorker{
		db:             db,
		dial:           dial,
		html:           html,
		sessionTimeout: sessionTimeout,
		logger:         logger.With("component", "send_worker"),
	}
}

// Handle processes one send task
func (w *SendWorker) Handle(ctx context.Context, job *queue.Job) error {
	var task models.SendTask
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return queue.Permanent(fmt.Errorf("failed to decode send task: %w", err))
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

	sender, err := w.dial(ctx, email.Endpoint{
		Host:     account.SMTPHost,
		Port:     account.SMTPPort,
		Secure:   account.SMTPSecure,
		Username: account.SMTPUsername,
		Password: account.SMTPPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to open delivery session: %w", err)
	}
	defer sender.Close()

	text := task.Text
	if text == "" && task.HTML != "" {
		if derived, err := w.html.Parse(task.HTML); err == nil {
			text = derived
		}
	}

	logger.Info("sending email", "from", account.Email, "to", task.To)

	msgID, err := sender.Send(ctx, &email.OutboundMessage{
		From:    models.Address{Email: account.Email},
		To:      task.To,
		Cc:      task.Cc,
		Bcc:     task.Bcc,
		Subject: task.Subject,
		Text:    text,
		HTML:    task.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}

	sent := &models.Message{
		AccountID:   account.ID,
		MessageID:   msgID,
		Folder:      models.FolderSent,
		From:        models.AddressList{{Email: account.Email}},
		To:          toAddressList(task.To),
		Cc:          toAddressList(task.Cc),
		Bcc:         toAddressList(task.Bcc),
		Subject:     task.Subject,
		Text:        text,
		HTML:        task.HTML,
		Date:        time.Now(),
		Flags:       models.StringList{},
		Attachments: task.Attachments,
	}

	// The server accepted the message; a store failure here must not
	// trigger a duplicate delivery.
	if err := w.db.CreateMessage(ctx, sent); err != nil {
		logger.Error("email sent but not recorded", "message_id", msgID, "error", err)
		return nil
	}

	logger.Info("email sent", "message_id", msgID)
	return nil
}

func toAddressList(addrs []string) models.AddressList {
	out := make(models.AddressList, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, models.Address{Email: a})
	}
	return out
}
