// Package notifier delivers report emails over SMTP.
//
// Messages are built as multipart MIME with the CSV attached; delivery uses
// STARTTLS when the server offers it and PLAIN auth when credentials are
// configured.
package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jonesrussell/north-cloud/price-monitor/internal/domain"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/price-monitor/internal/metrics"
)

const dialTimeout = 10 * time.Second

// Config holds SMTP delivery configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// DefaultRecipients receive messages whose recipient list is empty.
	DefaultRecipients []string
}

// Message is one outbound email. Attachment is optional.
type Message struct {
	To             []string
	Subject        string
	Body           string
	AttachmentName string
	Attachment     []byte
}

// EmailNotifier sends messages through one configured SMTP account.
type EmailNotifier struct {
	cfg     Config
	logger  logger.Logger
	metrics *metrics.Metrics
}

// New creates an SMTP notifier.
func New(cfg Config, log logger.Logger, m *metrics.Metrics) *EmailNotifier {
	return &EmailNotifier{cfg: cfg, logger: log, metrics: m}
}

// Send delivers one message. An empty recipient list falls back to the
// configured defaults; having no recipients at all is a notification failure.
// All delivery failures wrap domain.ErrNotificationFailure.
func (n *EmailNotifier) Send(ctx context.Context, msg Message) error {
	recipients := msg.To
	if len(recipients) == 0 {
		recipients = n.cfg.DefaultRecipients
	}
	if len(recipients) == 0 {
		n.metrics.RecordReportEmail(false)
		return fmt.Errorf("%w: no recipients", domain.ErrNotificationFailure)
	}

	payload := buildMessage(n.cfg.From, recipients, msg)

	if err := n.deliver(ctx, recipients, payload); err != nil {
		n.metrics.RecordReportEmail(false)
		n.logger.Error("Email delivery failed",
			logger.String("subject", msg.Subject),
			logger.Int("recipients", len(recipients)),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %v", domain.ErrNotificationFailure, err)
	}

	n.metrics.RecordReportEmail(true)
	n.logger.Info("Email sent",
		logger.String("subject", msg.Subject),
		logger.Int("recipients", len(recipients)),
	)

	return nil
}

func (n *EmailNotifier) deliver(ctx context.Context, recipients []string, payload []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))

	conn, err := (&net.Dialer{Timeout: dialTimeout}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if tlsErr := client.StartTLS(&tls.Config{ServerName: n.cfg.Host}); tlsErr != nil {
			return fmt.Errorf("starttls: %w", tlsErr)
		}
	}

	if n.cfg.Username != "" {
		auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
		if authErr := client.Auth(auth); authErr != nil {
			return fmt.Errorf("smtp auth: %w", authErr)
		}
	}

	if mailErr := client.Mail(n.cfg.From); mailErr != nil {
		return fmt.Errorf("smtp mail from: %w", mailErr)
	}
	for _, rcpt := range recipients {
		if rcptErr := client.Rcpt(rcpt); rcptErr != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, rcptErr)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, writeErr := writer.Write(payload); writeErr != nil {
		return fmt.Errorf("smtp write body: %w", writeErr)
	}
	if closeErr := writer.Close(); closeErr != nil {
		return fmt.Errorf("smtp close body: %w", closeErr)
	}

	return client.Quit()
}
