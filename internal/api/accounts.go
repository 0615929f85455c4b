package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/adharshSciPy/justyta-mail/internal/database"
	"github.com/adharshSciPy/justyta-mail/internal/email"
	"github.com/adharshSciPy/justyta-mail/pkg/models"
)

type serverSettings struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Secure   *bool  `json:"secure,omitempty"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

type createAccountRequest struct {
	UserID   string          `json:"userId"`
	Email    string          `json:"email"`
	Provider string          `json:"provider"`
	Password string          `json:"password"` // used when smtp/imap are omitted
	SMTP     *serverSettings `json:"smtp"`
	IMAP     *serverSettings `json:"imap"`
}

type accountResponse struct {
	ID            int64          `json:"id"`
	UserID        string         `json:"userId"`
	Email         string         `json:"email"`
	Provider      string         `json:"provider"`
	SMTP          serverSettings `json:"smtp"`
	IMAP          serverSettings `json:"imap"`
	LastSyncedUID uint32         `json:"lastSyncedUID"`
	LastSync      *time.Time     `json:"lastSync"`
	CreatedAt     time.Time      `json:"createdAt"`
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateAccount(w, r)
	case http.MethodGet:
		s.handleListAccounts(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateAccount registers a mailbox. Server settings may be given
// explicitly or resolved from the address's provider; credentials default
// to the address itself plus the top-level password.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var payload createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(payload.UserID) == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	account := &models.MailAccount{
		UserID:   payload.UserID,
		Email:    payload.Email,
		Provider: payload.Provider,
	}

	if payload.IMAP == nil || payload.SMTP == nil {
		defaults, err := email.ResolveProvider(payload.Email)
		if err != nil {
			writeError(w, http.StatusBadRequest, "email is not a valid address")
			return
		}
		if payload.Password == "" {
			writeError(w, http.StatusBadRequest, "password is required when smtp/imap settings are omitted")
			return
		}
		if account.Provider == "" {
			account.Provider = defaults.Provider
		}
		applySettings(account, defaults, payload.Email, payload.Password)
	}
	if payload.IMAP != nil {
		account.IMAPHost = payload.IMAP.Host
		account.IMAPPort = payload.IMAP.Port
		account.IMAPSecure = secureOrDefault(payload.IMAP.Secure)
		account.IMAPUsername = payload.IMAP.Username
		account.IMAPPassword = payload.IMAP.Password
	}
	if payload.SMTP != nil {
		account.SMTPHost = payload.SMTP.Host
		account.SMTPPort = payload.SMTP.Port
		account.SMTPSecure = secureOrDefault(payload.SMTP.Secure)
		account.SMTPUsername = payload.SMTP.Username
		account.SMTPPassword = payload.SMTP.Password
	}

	if account.IMAPHost == "" || account.IMAPPort == 0 {
		writeError(w, http.StatusBadRequest, "imap host and port are required")
		return
	}
	if account.SMTPHost == "" || account.SMTPPort == 0 {
		writeError(w, http.StatusBadRequest, "smtp host and port are required")
		return
	}

	if err := s.db.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "account already exists for this user")
			return
		}
		s.logger.Error("failed to create account", "email", payload.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	s.logger.Info("mail account created", "account_id", account.ID, "email", account.Email)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    toAccountResponse(account),
	})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	var (
		accounts []*models.MailAccount
		err      error
	)
	if userID := r.URL.Query().Get("userId"); userID != "" {
		accounts, err = s.db.ListAccountsByUser(r.Context(), userID)
	} else {
		accounts, err = s.db.ListAccounts(r.Context())
	}
	if err != nil {
		s.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	data := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		data = append(data, toAccountResponse(account))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

func applySettings(account *models.MailAccount, defaults email.ProviderDefaults, username, password string) {
	account.IMAPHost = defaults.IMAPHost
	account.IMAPPort = defaults.IMAPPort
	account.IMAPSecure = true
	account.IMAPUsername = username
	account.IMAPPassword = password
	account.SMTPHost = defaults.SMTPHost
	account.SMTPPort = defaults.SMTPPort
	account.SMTPSecure = true
	account.SMTPUsername = username
	account.SMTPPassword = password
}

func secureOrDefault(secure *bool) bool {
	if secure == nil {
		return true
	}
	return *secure
}

// toAccountResponse redacts credentials; passwords never leave the store
// through the API.
func toAccountResponse(a *models.MailAccount) accountResponse {
	resp := accountResponse{
		ID:       a.ID,
		UserID:   a.UserID,
		Email:    a.Email,
		Provider: a.Provider,
		IMAP: serverSettings{
			Host:     a.IMAPHost,
			Port:     a.IMAPPort,
			Secure:   boolPtr(a.IMAPSecure),
			Username: a.IMAPUsername,
		},
		SMTP: serverSettings{
			Host:     a.SMTPHost,
			Port:     a.SMTPPort,
			Secure:   boolPtr(a.SMTPSecure),
			Username: a.SMTPUsername,
		},
		LastSyncedUID: a.LastSyncedUID,
		CreatedAt:     a.CreatedAt,
	}
	if a.LastSync.Valid {
		t := a.LastSync.Time
		resp.LastSync = &t
	}
	return resp
}

func boolPtr(b bool) *bool { return &b }
