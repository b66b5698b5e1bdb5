package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Notifuse/emailbuilder/pkg/emailbuilder"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type receivedMessage struct {
	user string
	from string
	to   []string
	data string
}

// captureBackend is an in-process SMTP server recording every delivered message
type captureBackend struct {
	username string
	password string

	mu       sync.Mutex
	messages []receivedMessage
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

func (b *captureBackend) received() []receivedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]receivedMessage(nil), b.messages...)
}

type captureSession struct {
	backend *captureBackend
	user    string
	from    string
	to      []string
}

func (s *captureSession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *captureSession) Auth(mech string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return errors.New("invalid credentials")
		}
		s.user = username
		return nil
	}), nil
}

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.username != "" && s.user == "" {
		return errors.New("not authenticated")
	}
	s.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.messages = append(s.backend.messages, receivedMessage{user: s.user, from: s.from, to: s.to, data: string(data)})
	return nil
}

func (s *captureSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *captureSession) Logout() error {
	return nil
}

func startSMTPServer(t *testing.T, backend *captureBackend) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 5 * time.Second

	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() {
		server.Close()
	})

	return listener.Addr().(*net.TCPAddr).Port
}

const previewHTML = `<!DOCTYPE html><html><body><div>
<h2 style="font-size: 24px">Spring sale</h2>
<p>Everything is   20% off.</p>
<div><a href="https://shop.example.com/?a=1&b=2">Shop now</a></div>
<div><img src="https://cdn.example.com/hero.png" alt="Hero"></div>
<div><a href="#">Empty</a></div>
</div></body></html>`

func TestSMTPMailer_Send(t *testing.T) {
	backend := &captureBackend{username: "preview", password: "secret"}
	port := startSMTPServer(t, backend)

	m := NewSMTPMailer(&Config{
		SMTPHost:     "127.0.0.1",
		SMTPPort:     port,
		SMTPUsername: "preview",
		SMTPPassword: "secret",
		FromEmail:    "builder@example.com",
		FromName:     "Email Builder",
		TLSPolicy:    "none",
		Timeout:      5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.Send(ctx, Message{To: []string{"qa@example.com"}, Subject: "[Test] Spring sale", HTML: previewHTML})
	require.NoError(t, err)

	received := backend.received()
	require.Len(t, received, 1)
	assert.Equal(t, "preview", received[0].user)
	assert.Equal(t, "builder@example.com", received[0].from)
	assert.Equal(t, []string{"qa@example.com"}, received[0].to)
	assert.Contains(t, received[0].data, "Subject: [Test] Spring sale")
	assert.Contains(t, received[0].data, "text/html")
	assert.Contains(t, received[0].data, "text/plain")
}

func TestSMTPMailer_SendFailures(t *testing.T) {
	backend := &captureBackend{username: "preview", password: "secret"}
	port := startSMTPServer(t, backend)

	t.Run("wrong credentials", func(t *testing.T) {
		m := NewSMTPMailer(&Config{SMTPHost: "127.0.0.1", SMTPPort: port, SMTPUsername: "preview", SMTPPassword: "nope", FromEmail: "builder@example.com", TLSPolicy: "none"})
		err := m.Send(context.Background(), Message{To: []string{"qa@example.com"}, Subject: "x", HTML: "<p>x</p>"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to send email")
		assert.Empty(t, backend.received())
	})

	t.Run("no recipients", func(t *testing.T) {
		m := NewSMTPMailer(&Config{SMTPHost: "127.0.0.1", SMTPPort: port, FromEmail: "builder@example.com"})
		err := m.Send(context.Background(), Message{Subject: "x", HTML: "<p>x</p>"})
		assert.EqualError(t, err, "at least one recipient is required")
	})

	t.Run("invalid sender", func(t *testing.T) {
		m := NewSMTPMailer(&Config{SMTPHost: "127.0.0.1", SMTPPort: port, FromEmail: "not an address"})
		err := m.Send(context.Background(), Message{To: []string{"qa@example.com"}, HTML: "<p>x</p>"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "from address")
	})
}

func TestPlainText(t *testing.T) {
	text := PlainText(previewHTML)

	assert.Equal(t, strings.Join([]string{
		"Spring sale",
		"Everything is 20% off.",
		"Shop now: https://shop.example.com/?a=1&b=2",
		"[Hero]",
	}, "\n\n"), text)
}

func TestPlainText_CompiledMJML(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MJML compilation in short mode")
	}

	tree, err := emailbuilder.NewTree([]emailbuilder.Block{
		{ID: "s1", Type: emailbuilder.BlockTypeSection, Props: emailbuilder.SectionProps{Padding: 24, Align: emailbuilder.AlignLeft}, Children: []emailbuilder.Block{
			{ID: "h1", Type: emailbuilder.BlockTypeHeading, Props: emailbuilder.HeadingProps{Text: "Hello", Size: emailbuilder.SizeLarge, Align: emailbuilder.AlignLeft}},
			{ID: "p1", Type: emailbuilder.BlockTypeParagraph, Props: emailbuilder.ParagraphProps{Text: "Body copy here", Size: emailbuilder.SizeMedium, Align: emailbuilder.AlignLeft}},
		}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	result, err := emailbuilder.CompileMJML(ctx, tree)
	require.NoError(t, err)

	text := PlainText(result.HTML)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "Body copy here")
}

func TestConsoleMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewConsoleMailer(&buf)

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@example.com", "b@example.com"}, Subject: "Preview", HTML: previewHTML}))

	out := buf.String()
	assert.Contains(t, out, "To: a@example.com, b@example.com")
	assert.Contains(t, out, "Subject: Preview")
	assert.Contains(t, out, "Spring sale")
}

func TestTLSPolicy(t *testing.T) {
	assert.Equal(t, mail.TLSMandatory, tlsPolicy("mandatory"))
	assert.Equal(t, mail.NoTLS, tlsPolicy("none"))
	assert.Equal(t, mail.TLSOpportunistic, tlsPolicy(""))
}
