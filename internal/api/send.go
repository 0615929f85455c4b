package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adharshSciPy/justyta-mail/internal/queue"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

type sendRequest struct {
	AccountID int64  `json:"accountId"`
	To        string `json:"to"`
	Cc        string `json:"cc"`
	Bcc       string `json:"bcc"`
	Subject   string `json:"subject"`
	Message   string `json:"message"` // HTML body
	Text      string `json:"text"`
}

// handleSend validates the request and enqueues a send task. The response
// confirms enqueue, never delivery: the worker delivers asynchronously and
// its failures are visible only in the job log.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload sendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if payload.AccountID == 0 {
		writeError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	to := splitRecipients(payload.To)
	if len(to) == 0 {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}
	if strings.TrimSpace(payload.Subject) == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	task := models.SendTask{
		AccountID: payload.AccountID,
		To:        to,
		Cc:        splitRecipients(payload.Cc),
		Bcc:       splitRecipients(payload.Bcc),
		Subject:   payload.Subject,
		HTML:      payload.Message,
		Text:      payload.Text,
	}

	jobID, err := s.queue.Enqueue(r.Context(), queue.SendMail, task)
	if err != nil {
		s.logger.Error("failed to enqueue send task", "account_id", payload.AccountID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to queue email")
		return
	}

	s.logger.Info("send task enqueued", "job_id", jobID, "account_id", payload.AccountID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "email is being sent",
	})
}

// splitRecipients accepts a comma- or semicolon-separated address list.
func splitRecipients(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var out []string
	for _, f := range fields {
		if addr := strings.TrimSpace(f); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
