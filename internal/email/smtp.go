package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

// SMTPSender is a delivery session over one SMTP connection.
type SMTPSender struct {
	client *smtp.Client
	logger *slog.Logger
}

// DialSMTP connects and authenticates against an SMTP server.
func DialSMTP(ctx context.Context, ep Endpoint, logger *slog.Logger) (*SMTPSender, error) {
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	logger = logger.With("smtp_server", addr, "username", ep.Username)

	var (
		c   *smtp.Client
		err error
	)
	if ep.Secure {
		c, err = smtp.DialTLS(addr, nil)
	} else {
		c, err = smtp.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c.CommandTimeout = 30 * time.Second
	c.SubmissionTimeout = 2 * time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < c.SubmissionTimeout {
			c.SubmissionTimeout = remaining
		}
	}

	if ep.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", ep.Username, ep.Password)); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	logger.Debug("connected to SMTP server")
	return &SMTPSender{client: c, logger: logger}, nil
}

// Send implements Sender. The Message-ID is generated here because the
// protocol returns none; the stored sent copy uses the same id that went
// out on the wire.
func (s *SMTPSender) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	msgID := generateMessageID(msg.From.Email)

	var buf bytes.Buffer
	if err := writeMessage(&buf, msg, msgID); err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	rcpts := recipientSet(msg)
	if len(rcpts) == 0 {
		return "", fmt.Errorf("no recipients")
	}

	if err := s.client.SendMail(msg.From.Email, rcpts, &buf); err != nil {
		return "", fmt.Errorf("failed to submit message: %w", err)
	}

	s.logger.Debug("message submitted", "message_id", msgID, "recipients", len(rcpts))
	return msgID, nil
}

// Close ends the SMTP session.
func (s *SMTPSender) Close() error {
	return s.client.Quit()
}

// writeMessage renders the MIME message. Bcc recipients appear in the
// envelope only, never in the headers.
func writeMessage(w io.Writer, msg *OutboundMessage, msgID string) error {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	h.Set("Message-Id", msgID)
	h.SetAddressList("From", []*mail.Address{{Name: msg.From.Name, Address: msg.From.Email}})
	h.SetAddressList("To", toMailAddresses(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", toMailAddresses(msg.Cc))
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return err
	}
	if msg.Text != "" {
		if err := writeInlinePart(iw, "text/plain", msg.Text); err != nil {
			return err
		}
	}
	if msg.HTML != "" {
		if err := writeInlinePart(iw, "text/html", msg.HTML); err != nil {
			return err
		}
	}
	if err := iw.Close(); err != nil {
		return err
	}

	return mw.Close()
}

func writeInlinePart(iw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	pw, err := iw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func toMailAddresses(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: a})
	}
	return out
}

// recipientSet collects to/cc/bcc in order, dropping duplicates.
func recipientSet(msg *OutboundMessage) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range [][]string{msg.To, msg.Cc, msg.Bcc} {
		for _, addr := range group {
			key := strings.ToLower(strings.TrimSpace(addr))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(addr))
		}
	}
	return out
}

func generateMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
