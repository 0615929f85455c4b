package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

// IMAPMailbox is a retrieval session over one IMAP connection. The mutex
// serializes protocol commands on the connection; it is not a cross-process
// lock.
type IMAPMailbox struct {
	client *client.Client
	logger *slog.Logger
	mu     sync.Mutex
}

// DialIMAP connects and authenticates against an IMAP server. The dial
// timeout is taken from the context deadline when one is set.
func DialIMAP(ctx context.Context, ep Endpoint, logger *slog.Logger) (*IMAPMailbox, error) {
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	logger = logger.With("imap_server", addr, "username", ep.Username)

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var (
		conn net.Conn
		err  error
	)
	if ep.Secure {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, nil)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create IMAP client: %w", err)
	}

	if err := imapClient.Login(ep.Username, ep.Password); err != nil {
		imapClient.Logout()
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	logger.Debug("connected to IMAP server")
	return &IMAPMailbox{client: imapClient, logger: logger}, nil
}

// FetchSince implements Mailbox over INBOX.
func (m *IMAPMailbox) FetchSince(ctx context.Context, sinceUID uint32) ([]*InboundMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mbox, err := m.client.Select("INBOX", false)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(sinceUID+1, 0) // 0 means * (open-ended)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var (
		parsed   []*InboundMessage
		parseErr *ParseError
	)
	for msg := range messages {
		// Servers answer "n:*" with the highest-UID message even when n is
		// past the end of the mailbox; drop anything at or below the
		// watermark.
		if msg.Uid <= sinceUID {
			continue
		}

		in, err := m.parseMessage(msg, section)
		if err != nil {
			// Keep the lowest failing UID; everything above it is withheld
			// so the caller retries from here on the next pass.
			if parseErr == nil || msg.Uid < parseErr.UID {
				parseErr = &ParseError{UID: msg.Uid, Err: err}
			}
			continue
		}
		parsed = append(parsed, in)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].UID < parsed[j].UID })

	if parseErr != nil {
		complete := parsed[:0:0]
		for _, in := range parsed {
			if in.UID < parseErr.UID {
				complete = append(complete, in)
			}
		}
		return complete, parseErr
	}
	return parsed, nil
}

// parseMessage turns a raw IMAP message into an InboundMessage.
func (m *IMAPMailbox) parseMessage(msg *imap.Message, section *imap.BodySectionName) (*InboundMessage, error) {
	in := &InboundMessage{
		UID:   msg.Uid,
		Flags: append([]string(nil), msg.Flags...),
	}

	if msg.Envelope != nil {
		in.Subject = msg.Envelope.Subject
		in.Date = msg.Envelope.Date
		in.MessageID = msg.Envelope.MessageId
		in.From = toAddressList(msg.Envelope.From)
		in.To = toAddressList(msg.Envelope.To)
		in.Cc = toAddressList(msg.Envelope.Cc)
		in.Bcc = toAddressList(msg.Envelope.Bcc)
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return in, nil
	}

	mr, err := mail.CreateReader(bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	in.ThreadID = threadID(mr.Header)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body part: %w", err)
			}
			switch {
			case strings.HasPrefix(ct, "text/html"):
				in.HTML = string(body)
			case strings.HasPrefix(ct, "text/plain"):
				in.Text = string(body)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			ct, _, _ := h.ContentType()
			// Content is not stored, only described; count the bytes.
			size, err := io.Copy(io.Discard, part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment: %w", err)
			}
			in.Attachments = append(in.Attachments, models.Attachment{
				FileName: filename,
				Size:     size,
				MimeType: ct,
			})
		}
	}

	return in, nil
}

// Close logs out, force-closing the connection if the server hangs.
func (m *IMAPMailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- m.client.Logout()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return m.client.Terminate()
	}
}

func toAddressList(addrs []*imap.Address) models.AddressList {
	out := make(models.AddressList, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, models.Address{Name: a.PersonalName, Email: a.Address()})
	}
	return out
}

// threadID derives a conversation id from the first References entry,
// falling back to In-Reply-To.
func threadID(h mail.Header) string {
	for _, key := range []string{"References", "In-Reply-To"} {
		if refs := strings.Fields(h.Get(key)); len(refs) > 0 {
			return strings.Trim(refs[0], "<>")
		}
	}
	return ""
}
