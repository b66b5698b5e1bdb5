package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/wneessen/go-mail"
)

//go:generate mockgen -destination=../../internal/domain/mocks/mock_mailer.go -package=mocks github.com/Notifuse/emailbuilder/pkg/mailer Mailer

// Message is one rendered email
type Message struct {
	To      []string
	Subject string
	HTML    string
	// Text is derived from HTML when empty
	Text string
}

// Mailer sends rendered documents, typically as test sends of a draft
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds the configuration for the mailer
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
	// TLSPolicy is "opportunistic" (default), "mandatory" or "none"
	TLSPolicy string
	Timeout   time.Duration
}

// SMTPMailer implements the Mailer interface using SMTP
type SMTPMailer struct {
	config *Config
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(config *Config) *SMTPMailer {
	return &SMTPMailer{config: config}
}

func (m *SMTPMailer) Send(ctx context.Context, message Message) error {
	msg, err := m.buildMessage(message)
	if err != nil {
		return err
	}

	client, err := m.createSMTPClient()
	if err != nil {
		return err
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) buildMessage(message Message) (*mail.Msg, error) {
	if len(message.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	msg := mail.NewMsg(mail.WithNoDefaultUserAgent())

	if err := msg.FromFormat(m.config.FromName, m.config.FromEmail); err != nil {
		return nil, fmt.Errorf("failed to set email from address: %w", err)
	}
	if err := msg.To(message.To...); err != nil {
		return nil, fmt.Errorf("failed to set email recipient: %w", err)
	}
	msg.Subject(message.Subject)

	text := message.Text
	if text == "" {
		text = PlainText(message.HTML)
	}
	msg.SetBodyString(mail.TypeTextHTML, message.HTML)
	msg.AddAlternativeString(mail.TypeTextPlain, text)
	return msg, nil
}

// createSMTPClient creates and configures a new SMTP client
func (m *SMTPMailer) createSMTPClient() (*mail.Client, error) {
	timeout := m.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	clientOptions := []mail.Option{
		mail.WithPort(m.config.SMTPPort),
		mail.WithTLSPolicy(tlsPolicy(m.config.TLSPolicy)),
		mail.WithTimeout(timeout),
	}

	// Only add authentication if username and password are provided
	// This allows for unauthenticated SMTP servers (e.g., local relays, port 25)
	if m.config.SMTPUsername != "" && m.config.SMTPPassword != "" {
		clientOptions = append(clientOptions,
			mail.WithUsername(m.config.SMTPUsername),
			mail.WithPassword(m.config.SMTPPassword),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
		)
	}

	client, err := mail.NewClient(m.config.SMTPHost, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

func tlsPolicy(policy string) mail.TLSPolicy {
	switch policy {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// PlainText flattens rendered HTML into the text alternative of a message
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var lines []string
	doc.Find("h1, h2, h3, p, a, img").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "img":
			if alt, ok := s.Attr("alt"); ok && alt != "" {
				lines = append(lines, "["+alt+"]")
			}
		case "a":
			href, _ := s.Attr("href")
			label := strings.Join(strings.Fields(s.Text()), " ")
			if label != "" && href != "" && href != "#" {
				lines = append(lines, label+": "+href)
			}
		default:
			if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
				lines = append(lines, text)
			}
		}
	})
	return strings.Join(lines, "\n\n")
}

// ConsoleMailer writes messages to a writer instead of sending them
type ConsoleMailer struct {
	out io.Writer
}

// NewConsoleMailer creates a new console mailer for development
func NewConsoleMailer(out io.Writer) *ConsoleMailer {
	return &ConsoleMailer{out: out}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	text := msg.Text
	if text == "" {
		text = PlainText(msg.HTML)
	}
	fmt.Fprintln(m.out, "==============================================================")
	fmt.Fprintf(m.out, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(m.out, "Subject: %s\n\n", msg.Subject)
	fmt.Fprintln(m.out, text)
	fmt.Fprintln(m.out, "==============================================================")
	return nil
}
