package messenger

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	m := New("bot@example.com", "secret")

	if m.opts.smtpHost != DefaultSMTPHost || m.opts.smtpPort != DefaultSMTPPort {
		t.Errorf("smtp: got %s:%d, want %s:%d", m.opts.smtpHost, m.opts.smtpPort, DefaultSMTPHost, DefaultSMTPPort)
	}
	if m.opts.imapHost != DefaultIMAPHost || m.opts.imapPort != DefaultIMAPPort {
		t.Errorf("imap: got %s:%d, want %s:%d", m.opts.imapHost, m.opts.imapPort, DefaultIMAPHost, DefaultIMAPPort)
	}

	store, ok := m.store.(*imapStore)
	if !ok {
		t.Fatalf("store: got %T, want *imapStore", m.store)
	}
	if store.addr != "imap.gmail.com:993" {
		t.Errorf("imap addr: got %q, want %q", store.addr, "imap.gmail.com:993")
	}

	transport, ok := m.transport.(*smtpTransport)
	if !ok {
		t.Fatalf("transport: got %T, want *smtpTransport", m.transport)
	}
	if transport.addr != "smtp.gmail.com:587" {
		t.Errorf("smtp addr: got %q, want %q", transport.addr, "smtp.gmail.com:587")
	}
}

func TestNewKeepsHostsIndependent(t *testing.T) {
	t.Parallel()

	m := New("bot@example.com", "secret", WithSMTP("mail.example.net", 2525))

	store := m.store.(*imapStore)
	if store.host != DefaultIMAPHost {
		t.Errorf("imap host followed smtp host: got %q, want %q", store.host, DefaultIMAPHost)
	}
	transport := m.transport.(*smtpTransport)
	if transport.addr != "mail.example.net:2525" {
		t.Errorf("smtp addr: got %q, want %q", transport.addr, "mail.example.net:2525")
	}
}

func TestListGateways(t *testing.T) {
	t.Parallel()

	m := newTestMessenger(t, nil, nil)
	table := m.ListGateways()
	if table["Verizon Wireless"] != "vtext.com" {
		t.Errorf("Verizon Wireless: got %q, want %q", table["Verizon Wireless"], "vtext.com")
	}
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	m := newTestMessenger(t, box, nil)

	ack, err := m.CheckAccess(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ack, "bot@example.com") {
		t.Errorf("ack %q does not name the account", ack)
	}
	if !strings.Contains(ack, "IMAP4rev1") {
		t.Errorf("ack %q does not list capabilities", ack)
	}
	if box.opened != 1 || box.closed != 1 {
		t.Errorf("sessions: opened %d closed %d, want 1 and 1", box.opened, box.closed)
	}
	if len(box.selects) != 0 {
		t.Errorf("CheckAccess selected a folder: %v", box.selects)
	}
}

func TestCheckAccessAuthFailure(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.openErr = &AuthError{Op: "imap", Account: "bot@example.com", Err: errors.New("NO [AUTHENTICATIONFAILED]")}
	m := newTestMessenger(t, box, nil)

	_, err := m.CheckAccess(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("got %v, want AuthError", err)
	}
	if IsConnectionError(err) {
		t.Error("AuthError also matched ConnectionError")
	}
}

func TestErrorKindsUnwrap(t *testing.T) {
	t.Parallel()

	root := errors.New("root cause")
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"auth", &AuthError{Op: "imap", Account: "a", Err: root}, IsAuthError},
		{"connection", &ConnectionError{Op: "smtp", Addr: "h:1", Err: root}, IsConnectionError},
		{"protocol", &ProtocolError{Op: "imap", Command: "SELECT", Err: root}, IsProtocolError},
		{"parse", &ParseError{UID: 1, Err: root}, IsParseError},
		{"decode", &DecodeError{UID: 1, Charset: "x", Err: root}, IsDecodeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := errors.Join(errors.New("other"), tt.err)
			if !tt.check(wrapped) {
				t.Errorf("kind check failed for %v", wrapped)
			}
			if !errors.Is(wrapped, root) {
				t.Errorf("root cause lost in %v", wrapped)
			}
		})
	}
}
