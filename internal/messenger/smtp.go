package messenger

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"net/smtp"
)

// mailTransport submits one message to a list of recipients in a single
// transaction. Recipients the server refuses are returned in the map; the
// message is still delivered to the rest.
type mailTransport interface {
	Submit(ctx context.Context, from string, to []string, data []byte) (map[string]error, error)
}

// smtpTransport submits over SMTP with a STARTTLS upgrade and PLAIN auth.
type smtpTransport struct {
	addr      string
	host      string
	account   string
	secret    string
	tlsConfig *tls.Config
	logger    *slog.Logger
}

func (t *smtpTransport) Submit(
	ctx context.Context, from string, to []string, data []byte,
) (map[string]error, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, &ConnectionError{Op: "smtp", Addr: t.addr, Err: err}
	}

	client, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return nil, &ProtocolError{Op: "smtp", Command: "greeting", Err: err}
	}
	defer client.Close()

	if err := client.StartTLS(tlsConfigFor(t.tlsConfig, t.host)); err != nil {
		return nil, &ProtocolError{Op: "smtp", Command: "STARTTLS", Err: err}
	}

	auth := smtp.PlainAuth("", t.account, t.secret, t.host)
	if err := client.Auth(auth); err != nil {
		return nil, &AuthError{Op: "smtp", Account: t.account, Err: err}
	}

	if err := client.Mail(from); err != nil {
		return nil, &ProtocolError{Op: "smtp", Command: "MAIL FROM", Err: err}
	}

	refused := make(map[string]error)
	accepted := 0
	for _, rcpt := range to {
		if _, dup := refused[rcpt]; dup {
			continue
		}
		if err := client.Rcpt(rcpt); err != nil {
			refused[rcpt] = err
			continue
		}
		accepted++
	}
	if accepted == 0 {
		t.logger.Debug("every recipient refused, skipping DATA", "count", len(refused))
		_ = client.Quit()
		return refused, nil
	}

	writer, err := client.Data()
	if err != nil {
		return nil, &ProtocolError{Op: "smtp", Command: "DATA", Err: err}
	}
	if _, err := writer.Write(data); err != nil {
		return nil, &ProtocolError{Op: "smtp", Command: "DATA", Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &ProtocolError{Op: "smtp", Command: "DATA", Err: err}
	}

	if err := client.Quit(); err != nil {
		t.logger.Debug("smtp QUIT failed after delivery", "error", err)
	}

	return refused, nil
}
