package email

import (
	"context"
	"fmt"
	"time"

	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// Endpoint is one mail server a worker connects to as a client.
type Endpoint struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS; plaintext otherwise (local relays, tests)
	Username string
	Password string
}

// InboundMessage is one parsed message pulled from a retrieval server,
// ordered by UID within a fetch.
type InboundMessage struct {
	UID         uint32
	MessageID   string
	ThreadID    string
	From        models.AddressList
	To          models.AddressList
	Cc          models.AddressList
	Bcc         models.AddressList
	Subject     string
	Text        string
	HTML        string
	Date        time.Time
	Flags       models.StringList
	Attachments models.AttachmentList
}

// OutboundMessage is one message to submit to a delivery server.
type OutboundMessage struct {
	From    models.Address
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Text    string
	HTML    string
}

// Mailbox is an open retrieval session for one account.
type Mailbox interface {
	// FetchSince returns messages with UID > sinceUID in ascending UID
	// order. When a message fails to parse, the messages before it are
	// returned together with a *ParseError; nothing past the failed UID is
	// included, so the caller's watermark cannot skip it.
	FetchSince(ctx context.Context, sinceUID uint32) ([]*InboundMessage, error)
	Close() error
}

// Sender is an open delivery session for one account.
type Sender interface {
	// Send submits the message and returns its Message-ID.
	Send(ctx context.Context, msg *OutboundMessage) (string, error)
	Close() error
}

// MailboxDialer opens an authenticated retrieval session. Connection and
// authentication errors are retryable at the task level.
type MailboxDialer func(ctx context.Context, ep Endpoint) (Mailbox, error)

// SenderDialer opens an authenticated delivery session.
type SenderDialer func(ctx context.Context, ep Endpoint) (Sender, error)

// ParseError reports the first message in a fetch that could not be
// parsed. Everything before it was returned intact.
type ParseError struct {
	UID uint32
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse message uid %d: %v", e.UID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
