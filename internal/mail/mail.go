// Package mail delivers outbound messages such as invitation links.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"

	"brokerdesk/internal/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Open builds the sender selected by configuration.
func Open(cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return Log{Logger: logger, From: cfg.From}, nil
	case "smtp":
		if cfg.SMTPAddr == "" {
			return nil, fmt.Errorf("smtp address required")
		}
		return SMTP{Addr: cfg.SMTPAddr, From: cfg.From}, nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.Driver)
	}
}

// Log writes messages to the logger instead of sending them.
type Log struct {
	Logger *slog.Logger
	From   string
}

func (l Log) Send(ctx context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail", "from", l.From, "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// SMTP relays through an unauthenticated server, typically a local MTA.
type SMTP struct {
	Addr string
	From string
}

func (s SMTP) Send(_ context.Context, msg Message) error {
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	return smtp.SendMail(s.Addr, nil, s.From, []string{msg.To}, []byte(b.String()))
}

// Outbox keeps messages in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.messages...)
}
