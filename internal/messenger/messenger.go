// Package messenger sends text messages through carrier email-to-SMS gateways
// over SMTP and reads, and deletes, the replies from an IMAP mailbox.
//
// Every operation opens its own session, does its work and closes the session
// before returning. Sessions are never pooled or shared, so a Messenger may be
// used from several goroutines at once. There are no retries and no internal
// timeouts; cancel the context to bound dialing.
package messenger

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/nhle/sms-messenger/internal/gateway"
)

// UID is a mailbox-assigned identifier for one stored mail item. It is only
// meaningful for the folder and the point in time it was observed in.
type UID uint32

// InboundMessage is one mail item from a gateway address. Bodies holds each
// text/plain part of the item in document order. UIDValidity is the folder's
// UIDVALIDITY when the item was fetched; a UID is only unique under it.
type InboundMessage struct {
	UID         UID
	UIDValidity uint32
	Bodies      []string
}

// Bodies indexes fetched messages by UID.
func Bodies(msgs []InboundMessage) map[UID][]string {
	out := make(map[UID][]string, len(msgs))
	for _, msg := range msgs {
		out[msg.UID] = msg.Bodies
	}
	return out
}

// Messenger is the gateway facade. It holds the account credentials and
// endpoint configuration and nothing else.
type Messenger struct {
	email  string
	secret string

	opts      options
	store     mailStore
	transport mailTransport
	logger    *slog.Logger
	otel      *instrumentation
}

// New creates a Messenger for the given account. No connection is made and
// the secret is not checked until the first network call.
func New(email, secret string, opts ...Option) *Messenger {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("account", email)

	m := &Messenger{
		email:  email,
		secret: secret,
		opts:   o,
		logger: logger,
		otel:   newInstrumentation(o.tracerProvider),
	}

	m.store = o.store
	if m.store == nil {
		m.store = &imapStore{
			addr:      net.JoinHostPort(o.imapHost, strconv.Itoa(o.imapPort)),
			host:      o.imapHost,
			account:   email,
			secret:    secret,
			tlsConfig: o.tlsConfig,
			logger:    logger,
		}
	}

	m.transport = o.transport
	if m.transport == nil {
		m.transport = &smtpTransport{
			addr:      net.JoinHostPort(o.smtpHost, strconv.Itoa(o.smtpPort)),
			host:      o.smtpHost,
			account:   email,
			secret:    secret,
			tlsConfig: o.tlsConfig,
			logger:    logger,
		}
	}

	return m
}

// Email returns the account address messages are sent from.
func (m *Messenger) Email() string {
	return m.email
}

// ListGateways returns the carrier to gateway-domain table.
func (m *Messenger) ListGateways() gateway.Table {
	return gateway.Gateways()
}

// CheckAccess logs in to the mailbox server and logs out again. On success it
// returns an acknowledgment naming the account and the server capabilities.
func (m *Messenger) CheckAccess(ctx context.Context) (ack string, err error) {
	ctx, span := m.otel.start(ctx, "check_access")
	defer func() { m.otel.end(span, err) }()

	sess, err := m.store.Open(ctx)
	if err != nil {
		return "", err
	}
	defer m.closeSession(sess)

	caps := sess.Caps()
	m.logger.Debug("login accepted", "caps", caps)

	if len(caps) == 0 {
		return fmt.Sprintf("%s authenticated", m.email), nil
	}
	return fmt.Sprintf(
		"%s authenticated (%s)", m.email, strings.Join(caps, " "),
	), nil
}

// closeSession logs out, logging rather than returning a logout failure so
// it never masks the operation's own result.
func (m *Messenger) closeSession(sess mailSession) {
	if err := sess.Close(); err != nil {
		m.logger.Debug("closing mailbox session", "error", err)
	}
}

func folderAttr(folder string) attribute.KeyValue {
	return attribute.String("smsgw.folder", folder)
}
