// File: internal/notify/email.go
package notify

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/forumsign/forumsign/internal/config"
)

// sender abstracts gomail's dialer so tests can intercept the message.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier delivers attempt results over SMTP with STARTTLS. It decides
// for itself whether a given result warrants a message, based on the
// notify_on_success / notify_on_failure flags.
type EmailNotifier struct {
	cfg    config.EmailConfig
	dialer sender
	logger *zap.Logger
}

var _ Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier builds an SMTP notifier from the email configuration.
func NewEmailNotifier(cfg config.EmailConfig, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderPassword),
		logger: logger.Named("email"),
	}
}

// Notify sends the result if the configuration wants this kind of outcome
// reported. Delivery failures are logged and returned, never escalated.
func (n *EmailNotifier) Notify(result Result) error {
	if result.Succeeded && !n.cfg.NotifyOnSuccess {
		return nil
	}
	if !result.Succeeded && !n.cfg.NotifyOnFailure {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.SenderEmail)
	m.SetHeader("To", n.cfg.ReceiverEmail)
	m.SetHeader("Subject", n.subject(result))
	m.SetBody("text/html", buildBody(result))

	if err := n.dialer.DialAndSend(m); err != nil {
		n.logger.Error("Failed to send notification email",
			zap.String("to", n.cfg.ReceiverEmail),
			zap.Error(err),
		)
		return fmt.Errorf("send notification: %w", err)
	}
	n.logger.Info("Notification email sent", zap.String("to", n.cfg.ReceiverEmail))
	return nil
}

// SendTest delivers a fixed test message regardless of the notify flags, so
// operators can verify SMTP settings.
func (n *EmailNotifier) SendTest() error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.SenderEmail)
	m.SetHeader("To", n.cfg.ReceiverEmail)
	m.SetHeader("Subject", n.cfg.Subject+" - test")
	m.SetBody("text/plain", "This is a test message from forumsign. Your email configuration works.")

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send test message: %w", err)
	}
	return nil
}

// subject renders the per-result subject line.
func (n *EmailNotifier) subject(result Result) string {
	status := "failure"
	if result.Succeeded {
		status = "success"
	}
	return fmt.Sprintf("%s - %s (%s)", n.cfg.Subject, status, result.When.Format("2006-01-02"))
}

// buildBody renders the HTML report: a colored status banner, the summary
// and a metadata table.
func buildBody(result Result) string {
	status, color := "FAILED", "#F44336"
	if result.Succeeded {
		status, color = "SUCCESS", "#4CAF50"
	}

	var b strings.Builder
	b.WriteString("<html><body style=\"font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;\">")
	fmt.Fprintf(&b, "<div style=\"background:%s;color:white;padding:16px;text-align:center;border-radius:6px;\"><h2 style=\"margin:0;\">Check-in %s</h2></div>", color, status)
	fmt.Fprintf(&b, "<p><strong>Time:</strong> %s</p>", result.When.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(result.Summary))

	if len(result.Metadata) > 0 {
		b.WriteString("<h3>Details</h3><ul>")
		keys := make([]string, 0, len(result.Metadata))
		for k := range result.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>", html.EscapeString(k), html.EscapeString(result.Metadata[k]))
		}
		b.WriteString("</ul>")
	}

	b.WriteString("</body></html>")
	return b.String()
}
