package messenger

import (
	"crypto/tls"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Default endpoints and folders. The IMAP host is configured separately from
// the SMTP host; the two are never derived from each other.
const (
	DefaultSMTPHost   = "smtp.gmail.com"
	DefaultSMTPPort   = 587
	DefaultIMAPHost   = "imap.gmail.com"
	DefaultIMAPPort   = 993
	DefaultInbox      = "INBOX"
	DefaultSentFolder = "[Gmail]/Sent Mail"
	DefaultSubject    = "I am a bot. Beep Boop."
)

// options holds Messenger configuration.
type options struct {
	smtpHost   string
	smtpPort   int
	imapHost   string
	imapPort   int
	inbox      string
	sentFolder string
	subject    string
	tlsConfig  *tls.Config
	logger     *slog.Logger

	tracerProvider trace.TracerProvider

	// Overrides for the network layers; nil means dial real servers.
	store     mailStore
	transport mailTransport
}

func defaultOptions() options {
	return options{
		smtpHost:   DefaultSMTPHost,
		smtpPort:   DefaultSMTPPort,
		imapHost:   DefaultIMAPHost,
		imapPort:   DefaultIMAPPort,
		inbox:      DefaultInbox,
		sentFolder: DefaultSentFolder,
		subject:    DefaultSubject,
	}
}

// Option configures a Messenger.
type Option func(*options)

// WithSMTP sets the outbound submission server.
func WithSMTP(host string, port int) Option {
	return func(o *options) {
		if host != "" {
			o.smtpHost = host
		}
		if port > 0 {
			o.smtpPort = port
		}
	}
}

// WithIMAP sets the inbound mailbox server. The connection is always
// implicit TLS.
func WithIMAP(host string, port int) Option {
	return func(o *options) {
		if host != "" {
			o.imapHost = host
		}
		if port > 0 {
			o.imapPort = port
		}
	}
}

// WithInbox sets the folder searched by fetch and sender deletes.
func WithInbox(folder string) Option {
	return func(o *options) {
		if folder != "" {
			o.inbox = folder
		}
	}
}

// WithSentFolder sets the default folder for recipient and self-sent deletes.
func WithSentFolder(folder string) Option {
	return func(o *options) {
		if folder != "" {
			o.sentFolder = folder
		}
	}
}

// WithDefaultSubject sets the subject used when a send does not pass one.
func WithDefaultSubject(subject string) Option {
	return func(o *options) {
		o.subject = subject
	}
}

// WithTLSConfig sets the TLS configuration used for both IMAP and the SMTP
// STARTTLS upgrade. ServerName is filled in per connection when empty.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) {
		o.tlsConfig = cfg
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracerProvider enables tracing with the given provider. Without it the
// global provider is used, which is a no-op unless the application installs one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// withMailStore replaces the IMAP layer.
func withMailStore(s mailStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// withTransport replaces the SMTP layer.
func withTransport(t mailTransport) Option {
	return func(o *options) {
		o.transport = t
	}
}
