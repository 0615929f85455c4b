package models

// SyncTask asks a sync worker to pull new mail for one account.
type SyncTask struct {
	AccountID int64 `json:"accountId"`
}

// SendTask asks a send worker to deliver one outbound message through the
// account's delivery server. HTML is the primary body; Text is optional and
// derived from HTML when absent.
type SendTask struct {
	AccountID   int64        `json:"accountId"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	Bcc         []string     `json:"bcc,omitempty"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}
