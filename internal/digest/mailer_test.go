package digest_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/phrazzld/tasks-api/internal/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	username string
	from     string
	to       []string
	data     []byte
}

// memoryBackend is an in-process SMTP server backend that records delivered mail.
type memoryBackend struct {
	mu       sync.Mutex
	password string
	messages []received
}

func (b *memoryBackend) Login(_ *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	if password != b.password {
		return nil, errors.New("invalid credentials")
	}
	return &memorySession{backend: b, msg: received{username: username}}, nil
}

func (b *memoryBackend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	return &memorySession{backend: b}, nil
}

func (b *memoryBackend) delivered() []received {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]received(nil), b.messages...)
}

type memorySession struct {
	backend *memoryBackend
	msg     received
}

func (s *memorySession) Reset()        { s.msg = received{username: s.msg.username} }
func (s *memorySession) Logout() error { return nil }

func (s *memorySession) Mail(from string, _ smtp.MailOptions) error {
	s.msg.from = from
	return nil
}

func (s *memorySession) Rcpt(to string) error {
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *memorySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = data
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.msg)
	s.backend.mu.Unlock()
	return nil
}

func startSMTPServer(t *testing.T, be *memoryBackend) (string, int) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestSMTPMailerSend(t *testing.T) {
	t.Parallel()

	be := &memoryBackend{password: "hunter22"}
	host, port := startSMTPServer(t, be)

	m, err := digest.NewSMTPMailer(digest.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: "reports",
		Password: "hunter22",
	})
	require.NoError(t, err)

	err = m.Send(context.Background(), digest.Message{
		From:    "reports@tasks.local",
		To:      "ada@example.com",
		Subject: digest.Subject,
		Body:    "Hey ada, here is your daily report:\nTask PENDING : 2\n",
	})
	require.NoError(t, err)

	msgs := be.delivered()
	require.Len(t, msgs, 1)
	assert.Equal(t, "reports", msgs[0].username)
	assert.Equal(t, "reports@tasks.local", msgs[0].from)
	assert.Equal(t, []string{"ada@example.com"}, msgs[0].to)

	r, err := mail.CreateReader(bytes.NewReader(msgs[0].data))
	require.NoError(t, err)
	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, digest.Subject, subject)

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hey ada, here is your daily report:\r\nTask PENDING : 2\r\n", string(body))
}

func TestSMTPMailerAnonymous(t *testing.T) {
	t.Parallel()

	be := &memoryBackend{}
	host, port := startSMTPServer(t, be)

	m, err := digest.NewSMTPMailer(digest.SMTPConfig{Host: host, Port: port})
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), digest.Message{
		From: "reports@tasks.local",
		To:   "bob@example.com",
		Body: "Hey bob, here is your daily report:\n",
	}))

	msgs := be.delivered()
	require.Len(t, msgs, 1)
	assert.Empty(t, msgs[0].username)
	assert.Equal(t, []string{"bob@example.com"}, msgs[0].to)
}

func TestSMTPMailerRejectedCredentials(t *testing.T) {
	t.Parallel()

	be := &memoryBackend{password: "hunter22"}
	host, port := startSMTPServer(t, be)

	m, err := digest.NewSMTPMailer(digest.SMTPConfig{
		Host:     host,
		Port:     port,
		Username: "reports",
		Password: "wrong",
	})
	require.NoError(t, err)

	err = m.Send(context.Background(), digest.Message{From: "reports@tasks.local", To: "ada@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp auth")
	assert.Empty(t, be.delivered())
}
