package messenger

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// OutboundMessage is the envelope and content of one send. Subject and Body
// already carry the trailing newline some gateways need to end the text.
type OutboundMessage struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// SendResult reports which recipients the server took and which it refused.
type SendResult struct {
	Message  OutboundMessage
	Accepted []string
	Refused  map[string]error
}

// Confirmation returns a human-readable line naming the accepted recipients.
func (r *SendResult) Confirmation() string {
	if r == nil || len(r.Accepted) == 0 {
		return ""
	}
	return "Message sent successfully to " + strings.Join(r.Accepted, " ")
}

type sendOptions struct {
	subject *string
}

// SendOption configures a single send.
type SendOption func(*sendOptions)

// WithSubject overrides the Messenger's default subject line.
func WithSubject(subject string) SendOption {
	return func(o *sendOptions) {
		o.subject = &subject
	}
}

// Compose builds the outbound message a send with the same arguments would
// transmit. Blank recipients are dropped and repeats, compared
// case-insensitively, keep their first spelling.
func (m *Messenger) Compose(body string, to []string, opts ...SendOption) OutboundMessage {
	so := sendOptions{}
	for _, opt := range opts {
		opt(&so)
	}

	subject := m.opts.subject
	if so.subject != nil {
		subject = *so.subject
	}

	recipients := make([]string, 0, len(to))
	seen := make(map[string]bool, len(to))
	for _, addr := range to {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		recipients = append(recipients, addr)
	}

	return OutboundMessage{
		From:    m.email,
		To:      recipients,
		Subject: subject + "\n",
		Body:    body + "\n",
	}
}

// SendText sends body to a single address.
func (m *Messenger) SendText(
	ctx context.Context, body, to string, opts ...SendOption,
) (*SendResult, error) {
	return m.SendMessage(ctx, body, []string{to}, opts...)
}

// SendMessage sends body to every address in to in one SMTP transaction.
//
// When the server refuses some recipients the message still goes to the
// others; the returned SendResult lists both sets and the error is a
// *PartialDeliveryError. Connection and authentication failures return a
// nil result.
func (m *Messenger) SendMessage(
	ctx context.Context, body string, to []string, opts ...SendOption,
) (res *SendResult, err error) {
	msg := m.Compose(body, to, opts...)

	ctx, span := m.otel.start(ctx, "send",
		attribute.Int("smsgw.recipients", len(msg.To)),
	)
	defer func() { m.otel.end(span, err) }()

	if len(msg.To) == 0 {
		return nil, ErrNoRecipients
	}

	data, err := composeMIME(msg, time.Now())
	if err != nil {
		return nil, err
	}

	m.logger.Debug("submitting message", "to", msg.To, "bytes", len(data))

	refused, err := m.transport.Submit(ctx, msg.From, msg.To, data)
	if err != nil {
		return nil, err
	}

	res = &SendResult{Message: msg, Refused: refused}
	for _, addr := range msg.To {
		if _, bad := refused[addr]; !bad {
			res.Accepted = append(res.Accepted, addr)
		}
	}

	if len(refused) > 0 {
		m.logger.Warn("recipients refused", "refused", len(refused), "accepted", len(res.Accepted))
		return res, &PartialDeliveryError{Refused: refused}
	}

	m.logger.Info("message sent", "to", msg.To)
	return res, nil
}
