package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	log "github.com/sirupsen/logrus"

	"github.com/dragon-zzuni/smart-assistant/internal/domain"
)

// MailerConfig holds the SMTP relay settings
type MailerConfig struct {
	Addr     string
	Username string
	Password string
	From     string
	To       []string
}

// Mailer sends the plain-text report through an SMTP relay
type Mailer struct {
	cfg MailerConfig
}

// NewMailer creates a new Mailer
func NewMailer(cfg MailerConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Name identifies the sink in logs
func (m *Mailer) Name() string {
	return "smtp:" + m.cfg.Addr
}

// Deliver mails the report to every configured recipient
func (m *Mailer) Deliver(ctx context.Context, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	raw, err := composeReport(m.cfg.From, m.cfg.To, d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	var auth sasl.Client
	if m.cfg.Username != "" {
		auth = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	if err := m.send(auth, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	log.WithFields(log.Fields{
		"addr":       m.cfg.Addr,
		"recipients": len(m.cfg.To),
		"run_id":     d.RunID,
	}).Info("[Notify] Report mailed")
	return nil
}

// send upgrades to TLS when the relay offers it, authenticates when
// credentials are set and submits the message
func (m *Mailer) send(auth sasl.Client, raw []byte) error {
	c, err := smtp.Dial(m.cfg.Addr)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		host, _, _ := net.SplitHostPort(m.cfg.Addr)
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.SendMail(m.cfg.From, m.cfg.To, bytes.NewReader(raw)); err != nil {
		return err
	}
	return c.Quit()
}

// composeReport builds a single-part text/plain message holding the report
func composeReport(from string, to []string, d Delivery) ([]byte, error) {
	var h mail.Header
	h.SetDate(d.GeneratedAt)
	h.SetAddressList("From", []*mail.Address{{Address: from}})

	rcpts := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		rcpts = append(rcpts, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", rcpts)
	h.SetSubject(subjectFor(d))
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, d.Report); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func subjectFor(d Delivery) string {
	high := d.Todo.PriorityCounts[domain.TierHigh]
	return fmt.Sprintf("[Smart Assistant] %d todo items (%d high) %s",
		d.Todo.TotalItems, high, d.GeneratedAt.Local().Format(time.DateOnly))
}
