package alert

import (
	"context"
	"log/slog"

	mail "github.com/wneessen/go-mail"

	"github.com/ZhuYizhou2333/Market-insight-bot/analyzer"
	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
)

// EmailConfig holds the SMTP binding.
type EmailConfig struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
	UseTLS     bool // STARTTLS when true, opportunistic otherwise
}

// Validate checks the configuration for required fields.
func (c EmailConfig) Validate() error {
	if c.Host == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "EmailConfig", "Validate", "smtp host")
	}
	if c.Sender == "" {
		return errors.WrapFatal(errors.ErrMissingConfig, "EmailConfig", "Validate", "sender")
	}
	if len(c.Recipients) == 0 {
		return errors.WrapFatal(errors.ErrMissingConfig, "EmailConfig", "Validate", "recipients")
	}
	return nil
}

// EmailDispatcher implements analyzer.AlertDispatcher over SMTP. Each alert
// is sent as a multipart message with the markdown source as the plain part
// and its HTML rendering as the alternative.
type EmailDispatcher struct {
	cfg    EmailConfig
	logger *slog.Logger
}

var _ analyzer.AlertDispatcher = (*EmailDispatcher)(nil)

// NewEmailDispatcher creates a dispatcher after validating the config.
func NewEmailDispatcher(cfg EmailConfig, logger *slog.Logger) (*EmailDispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailDispatcher{
		cfg:    cfg,
		logger: logger.With("component", "alert"),
	}, nil
}

// Dispatch implements analyzer.AlertDispatcher.
func (d *EmailDispatcher) Dispatch(ctx context.Context, report analyzer.Report) error {
	subject := Subject(report)
	body := RenderMarkdown(report)
	htmlBody, err := RenderHTML(body)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(d.cfg.Sender); err != nil {
		return errors.WrapInvalid(err, "EmailDispatcher", "Dispatch", "set sender")
	}
	if err := msg.To(d.cfg.Recipients...); err != nil {
		return errors.WrapInvalid(err, "EmailDispatcher", "Dispatch", "set recipients")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	tlsPolicy := mail.TLSOpportunistic
	if d.cfg.UseTLS {
		tlsPolicy = mail.TLSMandatory
	}
	client, err := mail.NewClient(d.cfg.Host,
		mail.WithPort(d.cfg.Port),
		mail.WithTLSPolicy(tlsPolicy),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(d.cfg.Sender),
		mail.WithPassword(d.cfg.Password),
	)
	if err != nil {
		return errors.WrapFatal(err, "EmailDispatcher", "Dispatch", "create smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.WrapTransient(err, "EmailDispatcher", "Dispatch", "send "+subject)
	}
	d.logger.Info("alert email sent", "subject", subject, "recipients", len(d.cfg.Recipients))
	return nil
}
