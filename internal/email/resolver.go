package email

import (
	"fmt"
	"strings"
)

// ProviderDefaults holds the well-known server endpoints for a provider.
type ProviderDefaults struct {
	Provider string
	IMAPHost string
	IMAPPort int
	SMTPHost string
	SMTPPort int
}

// Well-known endpoints for popular providers. Submission uses port 465
// (implicit TLS) to match the secure flag defaulting to true.
var knownProviders = map[string]ProviderDefaults{
	"gmail.com":      {Provider: "gmail", IMAPHost: "imap.gmail.com", IMAPPort: 993, SMTPHost: "smtp.gmail.com", SMTPPort: 465},
	"googlemail.com": {Provider: "gmail", IMAPHost: "imap.gmail.com", IMAPPort: 993, SMTPHost: "smtp.gmail.com", SMTPPort: 465},
	"outlook.com":    {Provider: "outlook", IMAPHost: "outlook.office365.com", IMAPPort: 993, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 465},
	"hotmail.com":    {Provider: "outlook", IMAPHost: "outlook.office365.com", IMAPPort: 993, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 465},
	"live.com":       {Provider: "outlook", IMAPHost: "outlook.office365.com", IMAPPort: 993, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 465},
	"yahoo.com":      {Provider: "yahoo", IMAPHost: "imap.mail.yahoo.com", IMAPPort: 993, SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 465},
	"icloud.com":     {Provider: "icloud", IMAPHost: "imap.mail.me.com", IMAPPort: 993, SMTPHost: "smtp.mail.me.com", SMTPPort: 465},
	"me.com":         {Provider: "icloud", IMAPHost: "imap.mail.me.com", IMAPPort: 993, SMTPHost: "smtp.mail.me.com", SMTPPort: 465},
	"fastmail.com":   {Provider: "fastmail", IMAPHost: "imap.fastmail.com", IMAPPort: 993, SMTPHost: "smtp.fastmail.com", SMTPPort: 465},
	"zoho.com":       {Provider: "zoho", IMAPHost: "imap.zoho.com", IMAPPort: 993, SMTPHost: "smtp.zoho.com", SMTPPort: 465},
	"gmx.com":        {Provider: "gmx", IMAPHost: "imap.gmx.com", IMAPPort: 993, SMTPHost: "mail.gmx.com", SMTPPort: 465},
	"mail.ru":        {Provider: "mailru", IMAPHost: "imap.mail.ru", IMAPPort: 993, SMTPHost: "smtp.mail.ru", SMTPPort: 465},
	"yandex.ru":      {Provider: "yandex", IMAPHost: "imap.yandex.ru", IMAPPort: 993, SMTPHost: "smtp.yandex.ru", SMTPPort: 465},
	"yandex.com":     {Provider: "yandex", IMAPHost: "imap.yandex.com", IMAPPort: 993, SMTPHost: "smtp.yandex.com", SMTPPort: 465},
}

// ResolveProvider determines default server endpoints for an email address.
// Unknown domains fall back to the imap./smtp. host convention with the
// "custom" provider label.
func ResolveProvider(email string) (ProviderDefaults, error) {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ProviderDefaults{}, fmt.Errorf("invalid email address %q", email)
	}

	domain := strings.ToLower(parts[1])
	if d, ok := knownProviders[domain]; ok {
		return d, nil
	}

	return ProviderDefaults{
		Provider: "custom",
		IMAPHost: "imap." + domain,
		IMAPPort: 993,
		SMTPHost: "smtp." + domain,
		SMTPPort: 465,
	}, nil
}
