// Package mail delivers notification emails. Delivery is best-effort: callers
// log failures and carry on.
package mail

import (
	"context"
	"fmt"
	"log"
	"net/url"

	"github.com/Kyz7/authserver/internal/config"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	// Link is the action URL embedded in HTML, if any.
	Link string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New picks the transport named by cfg.MailDriver.
func New(cfg *config.Config) (Sender, error) {
	switch cfg.MailDriver {
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom), nil
	case "ses":
		return NewSESSender(cfg.SESRegion, cfg.MailFrom)
	case "log", "":
		return LogSender{}, nil
	}
	return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
}

// LogSender writes messages to the process log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("📧 [mail] to=%s subject=%q", msg.To, msg.Subject)
	return nil
}

func WelcomeMessage(to string) Message {
	return Message{
		To:      to,
		Subject: "Welcome",
		HTML:    "<b>Thanks for registering!</b>",
	}
}

// ResetLink builds https://<domain>/reset-password?token=<token>&email=<email>.
func ResetLink(domain, email, token string) string {
	u := url.URL{
		Scheme:   "https",
		Host:     domain,
		Path:     "/reset-password",
		RawQuery: "token=" + url.QueryEscape(token) + "&email=" + url.QueryEscape(email),
	}
	return u.String()
}

func ResetMessage(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Password reset",
		HTML: fmt.Sprintf(
			"<b>To reset your password, please click the link below.</b><br><br><a href=%q>%s</a>",
			link, link,
		),
		Link: link,
	}
}
