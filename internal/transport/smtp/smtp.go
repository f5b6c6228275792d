// Package smtp delivers rendered campaign email through an SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/brightsend/crm/internal/pkg/logger"
	"github.com/brightsend/crm/internal/service/sending"
)

// Transport implements sending.Transport over a plain SMTP relay.
// STARTTLS is opportunistic: relays on private networks often run without
// TLS on the submission port, so a failed upgrade is logged, not fatal.
type Transport struct {
	host     string
	port     int
	username string
	password string
	dialer   *net.Dialer
}

// New creates an SMTP transport. Username and password may be empty for
// open relays.
func New(host string, port int, username, password string) *Transport {
	return &Transport{
		host:     host,
		port:     port,
		username: username,
		password: password,
		dialer:   &net.Dialer{Timeout: 30 * time.Second},
	}
}

// Send delivers one rendered message as multipart/alternative.
func (t *Transport) Send(ctx context.Context, msg *sending.Message) error {
	if t.host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	payload := t.build(msg)
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	if err := t.deliver(ctx, addr, msg.FromEmail, msg.To, payload); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	logger.Info("message delivered", "to", msg.To)
	return nil
}

// build assembles headers and the multipart/alternative body. The text part
// comes first so clients that cannot render HTML fall back to it.
func (t *Transport) build(msg *sending.Message) []byte {
	messageID := fmt.Sprintf("%s@brightsend", uuid.New().String())
	boundary := fmt.Sprintf("=_%s", uuid.New().String()[:16])

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s <%s>\r\n", msg.FromName, msg.FromEmail))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	if msg.Text != "" {
		buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.Text)
		buf.WriteString("\r\n")
	}
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	buf.WriteString(msg.HTML)
	buf.WriteString("\r\n")
	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

func (t *Transport) deliver(ctx context.Context, addr, from, to string, payload []byte) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		tlsCfg := &tls.Config{ServerName: t.host}
		if tlsErr := c.StartTLS(tlsCfg); tlsErr != nil {
			logger.Warn("starttls failed, continuing in plaintext", "err", tlsErr.Error())
		}
	}
	if t.username != "" && t.password != "" {
		if err := c.Auth(&plainAuth{user: t.username, pass: t.password}); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("DATA close: %w", err)
	}
	return c.Quit()
}

// plainAuth implements smtp.Auth without stdlib PlainAuth's hard TLS
// requirement, for relays that authenticate on plaintext private links.
type plainAuth struct {
	user, pass string
}

func (a *plainAuth) Start(*smtp.ServerInfo) (string, []byte, error) {
	return "PLAIN", []byte("\x00" + a.user + "\x00" + a.pass), nil
}

func (a *plainAuth) Next([]byte, bool) ([]byte, error) {
	return nil, nil
}
