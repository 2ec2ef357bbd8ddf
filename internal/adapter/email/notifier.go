// Package email provides an SMTP-based notifier for review notifications.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/notifier"
)

const channelType = "email"

// SMTPConfig holds the configuration for SMTP connections.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Password string
}

// Notifier sends review notifications via SMTP. Recipients are email
// addresses.
type Notifier struct {
	cfg SMTPConfig
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg SMTPConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

func (n *Notifier) Name() string { return channelType }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{}
}

// DeliverReview emails a pending-review notification to the recipients.
func (n *Notifier) DeliverReview(_ context.Context, rev *review.Review, recipients []string, extra map[string]string) (notifier.Receipt, error) {
	subject := fmt.Sprintf("[humancheck] Review requested: %s (%s)", rev.TaskType, rev.Urgency)
	body := rev.Summary()
	if link := extra["dashboard_url"]; link != "" {
		body += "\nOpen in dashboard: " + link + "\n"
	}
	return notifier.Receipt{}, n.send(recipients, subject, body)
}

// DeliverDecision emails a decision notification to the recipients.
func (n *Notifier) DeliverDecision(_ context.Context, rev *review.Review, dec *review.Decision, recipients []string) (notifier.Receipt, error) {
	subject := fmt.Sprintf("[humancheck] Review %s: %s", dec.Kind, rev.TaskType)
	return notifier.Receipt{}, n.send(recipients, subject, dec.DecisionSummary(rev))
}

// TestConnection dials the SMTP server without sending mail.
func (n *Notifier) TestConnection(_ context.Context) error {
	if n.cfg.Host == "" || n.cfg.From == "" {
		return notifier.ErrNotConfigured
	}
	conn, err := net.Dial("tcp", net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port)))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	return conn.Close()
}

func (n *Notifier) send(to []string, subject, body string) error {
	if n.cfg.Host == "" || n.cfg.From == "" {
		return notifier.ErrNotConfigured
	}

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.cfg.From, strings.Join(to, ", "), subject, body)

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	return smtp.SendMail(addr, auth, n.cfg.From, to, []byte(msg))
}
