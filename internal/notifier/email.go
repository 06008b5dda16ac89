package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/amishk599/freshpost/internal/config"
	"github.com/amishk599/freshpost/internal/model"
)

// Ensure EmailNotifier implements model.Notifier.
var _ model.Notifier = (*EmailNotifier)(nil)

// EmailNotifier sends the digest as one HTML email with a plain-text alternative.
type EmailNotifier struct {
	host      string
	port      int
	username  string
	password  string
	from      string
	to        []string
	tlsPolicy mail.TLSPolicy
	logger    *slog.Logger
}

// NewEmailNotifier returns a notifier that delivers over SMTP. Port 465 uses
// implicit TLS; other ports use STARTTLS when the server offers it. SMTP auth
// is only attempted when a username is set.
func NewEmailNotifier(cfg config.NotificationConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		host:      cfg.SMTPHost,
		port:      cfg.SMTPPort,
		username:  cfg.Username,
		password:  cfg.Password,
		from:      cfg.From,
		to:        cfg.To,
		tlsPolicy: mail.TLSOpportunistic,
		logger:    logger,
	}
}

// Notify sends one email for the whole digest. A nil error means the SMTP
// server accepted the message.
func (n *EmailNotifier) Notify(ctx context.Context, d model.Digest) error {
	if d.Total() == 0 {
		return nil
	}

	msg, err := n.message(d)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(n.port),
		mail.WithTLSPolicy(n.tlsPolicy),
		mail.WithTimeout(30 * time.Second),
	}
	if n.port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if n.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.username),
			mail.WithPassword(n.password),
		)
	}

	client, err := mail.NewClient(n.host, opts...)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %w", model.ErrDeliveryFailure, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("%w: send email: %w", model.ErrDeliveryFailure, err)
	}

	n.logger.Info("email digest sent", "to", n.to, "postings", d.Total(), "sources", len(d.Groups))
	return nil
}

func (n *EmailNotifier) message(d model.Digest) (*mail.Msg, error) {
	html, err := RenderHTML(d)
	if err != nil {
		return nil, err
	}
	text, err := RenderText(d)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(n.to...); err != nil {
		return nil, fmt.Errorf("invalid to address: %w", err)
	}
	msg.Subject(Subject(d))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}
