package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Folder values for stored messages. Only these two exist in this pipeline.
const (
	FolderInbox = "inbox"
	FolderSent  = "sent"
)

// Address is a single envelope participant. The name may be empty.
type Address struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Attachment describes an attachment without its content. The URL stays
// empty until a blob store is wired in.
type Attachment struct {
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	URL      string `json:"url"`
}

// Message represents one synced or sent mail. Rows are immutable once
// written; there is no update or delete path in the pipeline.
type Message struct {
	ID        int64  `db:"id"`
	AccountID int64  `db:"account_id"`
	UID       uint32 `db:"uid"` // retrieval-protocol UID, 0 for sent mail
	MessageID string `db:"message_id"`
	ThreadID  string `db:"thread_id"`
	Folder    string `db:"folder"`

	From AddressList `db:"from_addrs"`
	To   AddressList `db:"to_addrs"`
	Cc   AddressList `db:"cc_addrs"`
	Bcc  AddressList `db:"bcc_addrs"`

	Subject     string         `db:"subject"`
	Text        string         `db:"body_text"`
	HTML        string         `db:"body_html"`
	Date        time.Time      `db:"date"`
	Flags       StringList     `db:"flags"`
	Attachments AttachmentList `db:"attachments"`

	CreatedAt time.Time `db:"created_at"`
}

// AddressList stores an ordered list of addresses as a JSON column.
type AddressList []Address

func (l AddressList) Value() (driver.Value, error) { return marshalColumn(l) }

func (l *AddressList) Scan(src any) error { return scanColumn(src, l) }

// StringList stores protocol flags as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) { return marshalColumn(l) }

func (l *StringList) Scan(src any) error { return scanColumn(src, l) }

// AttachmentList stores attachment descriptors as a JSON column.
type AttachmentList []Attachment

func (l AttachmentList) Value() (driver.Value, error) { return marshalColumn(l) }

func (l *AttachmentList) Scan(src any) error { return scanColumn(src, l) }

func marshalColumn(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal column: %w", err)
	}
	return string(b), nil
}

func scanColumn(src, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
}
