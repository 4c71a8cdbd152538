package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/sms-messenger/internal/app"
	"github.com/nhle/sms-messenger/internal/credential"
	"github.com/nhle/sms-messenger/internal/gateway"
	"github.com/nhle/sms-messenger/internal/journal"
	"github.com/nhle/sms-messenger/internal/messenger"
	"github.com/nhle/sms-messenger/internal/model"
	"github.com/nhle/sms-messenger/internal/store"
	"github.com/nhle/sms-messenger/internal/theme"
)

var errNoAccount = errors.New("no account email configured; set account.email in the config or pass -email to login")

// messengerOptions maps the account section of the config to messenger
// options.
func messengerOptions(acct model.AccountConfig) []messenger.Option {
	return []messenger.Option{
		messenger.WithSMTP(acct.SMTPHost, acct.SMTPPort),
		messenger.WithIMAP(acct.IMAPHost, acct.IMAPPort),
		messenger.WithInbox(acct.Inbox),
		messenger.WithSentFolder(acct.SentFolder),
		messenger.WithDefaultSubject(acct.Subject),
	}
}

// openMessenger builds a Messenger for the configured account, reading the
// app password from SMSGW_SECRET or the keyring.
func (e *env) openMessenger() (*messenger.Messenger, error) {
	email := e.cfg.Account.Email
	if email == "" {
		return nil, errNoAccount
	}

	secret, err := credential.Resolve(email)
	if errors.Is(err, credential.ErrNotFound) {
		return nil, fmt.Errorf("no app password for %s; run 'smsgw login' or set %s", email, credential.EnvSecret)
	}
	if err != nil {
		return nil, err
	}

	opts := append(messengerOptions(e.cfg.Account), messenger.WithLogger(e.logger))
	return messenger.New(email, secret, opts...), nil
}

// openJournal returns the journal recorder and a close function. A disabled
// journal yields a recorder that discards everything.
func (e *env) openJournal() (*journal.Recorder, func(), error) {
	if !e.cfg.Journal.Enabled {
		return journal.New(nil, e.cfg.Account.Email, e.logger), func() {}, nil
	}

	s, err := store.NewSQLiteStore(e.cfg.Journal.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening journal: %w", err)
	}
	closeFn := func() {
		if err := s.Close(); err != nil {
			e.logger.Warn("closing journal", "error", err)
		}
	}
	return journal.New(s, e.cfg.Account.Email, e.logger), closeFn, nil
}

// recipientFlags are the ways a command can name gateway addresses.
type recipientFlags struct {
	to      *string
	contact *string
	number  *string
	carrier *string
}

func addRecipientFlags(fs *flag.FlagSet, verb string) recipientFlags {
	return recipientFlags{
		to:      fs.String(verb, "", "gateway addresses, comma separated"),
		contact: fs.String("contact", "", "contact names from the config, comma separated"),
		number:  fs.String("number", "", "10-digit phone number (with -carrier)"),
		carrier: fs.String("carrier", "", "carrier name for -number; see 'smsgw gateways'"),
	}
}

// resolve turns the flags into gateway addresses, in flag order.
func (r recipientFlags) resolve(cfg *model.AppConfig) ([]string, error) {
	addrs := splitList(*r.to)

	for _, name := range splitList(*r.contact) {
		c, err := cfg.Contact(name)
		if err != nil {
			return nil, err
		}
		addr, err := c.Address()
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}

	if *r.number != "" || *r.carrier != "" {
		addr, err := gateway.Address(*r.number, *r.carrier)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}

	return addrs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseUIDs(s string) ([]messenger.UID, error) {
	var uids []messenger.UID
	for _, part := range splitList(s) {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("invalid UID %q", part)
		}
		uids = append(uids, messenger.UID(n))
	}
	return uids, nil
}

func runGateways(_ context.Context, _ *env, args []string) error {
	fs := flag.NewFlagSet("gateways", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	table := gateway.Gateways()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, c := range gateway.Carriers() {
		fmt.Fprintf(w, "%s\t%s\n", c, table[c])
	}
	return w.Flush()
}

func runLogin(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", e.cfg.Account.Email, "account email address")
	verify := fs.Bool("verify", true, "log in to the mailbox server before storing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errNoAccount
	}

	var secret string
	err := huh.NewInput().
		Title("App password for " + *email).
		EchoMode(huh.EchoModePassword).
		Value(&secret).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("password must not be empty")
			}
			return nil
		}).
		Run()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if *verify {
		m := messenger.New(*email, secret, append(messengerOptions(e.cfg.Account), messenger.WithLogger(e.logger))...)
		ack, err := m.CheckAccess(ctx)
		if err != nil {
			return err
		}
		fmt.Println(ack)
	}

	if err := credential.Set(credential.AccountKey(*email), secret); err != nil {
		return err
	}

	if *email != e.cfg.Account.Email {
		e.cfg.Account.Email = *email
		if err := model.SaveConfig(e.configPath, e.cfg); err != nil {
			return err
		}
	}

	fmt.Printf("stored app password for %s\n", *email)
	return nil
}

func runLogout(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	email := fs.String("email", e.cfg.Account.Email, "account email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errNoAccount
	}

	if err := credential.Delete(credential.AccountKey(*email)); err != nil {
		return err
	}
	fmt.Printf("removed app password for %s\n", *email)
	return nil
}

func runCheck(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := e.openMessenger()
	if err != nil {
		return err
	}

	ack, err := m.CheckAccess(ctx)
	if err != nil {
		return err
	}
	fmt.Println(ack)
	return nil
}

func runSend(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	rcpt := addRecipientFlags(fs, "to")
	subject := fs.String("subject", "", "subject line (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body := strings.Join(fs.Args(), " ")
	if body == "" {
		return errors.New("send: message text is required")
	}
	to, err := rcpt.resolve(e.cfg)
	if err != nil {
		return err
	}

	m, err := e.openMessenger()
	if err != nil {
		return err
	}
	j, closeJournal, err := e.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	var opts []messenger.SendOption
	if *subject != "" {
		opts = append(opts, messenger.WithSubject(*subject))
	}

	res, sendErr := m.SendMessage(ctx, body, to, opts...)
	if err := j.Sent(ctx, res); err != nil {
		e.logger.Warn("journal write failed", "error", err)
	}
	if line := res.Confirmation(); line != "" {
		fmt.Println(line)
	}
	return sendErr
}

func runFetch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	rcpt := addRecipientFlags(fs, "from")
	showUIDs := fs.Bool("uids", false, "prefix each reply with its UID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	from, err := rcpt.resolve(e.cfg)
	if err != nil {
		return err
	}
	if len(from) != 1 {
		return errors.New("fetch: name exactly one sender")
	}

	m, err := e.openMessenger()
	if err != nil {
		return err
	}
	j, closeJournal, err := e.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	msgs, fetchErr := m.FetchMessagesByUID(ctx, from[0])
	if _, err := j.Received(ctx, from[0], msgs); err != nil {
		e.logger.Warn("journal write failed", "error", err)
	}

	for _, msg := range msgs {
		for _, body := range msg.Bodies {
			if *showUIDs {
				fmt.Printf("%d\t%s\n", msg.UID, body)
			} else {
				fmt.Println(body)
			}
		}
	}
	return fetchErr
}

func runDelete(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	uidList := fs.String("uids", "", "inbox UIDs to delete, comma separated")
	from := fs.String("from", "", "delete inbox mail from this address")
	to := fs.String("to", "", "delete sent mail to this address")
	self := fs.Bool("self", false, "delete everything this account sent")
	folder := fs.String("folder", "", "folder for -to and -self (default: configured sent folder)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	chosen := 0
	for _, set := range []bool{*uidList != "", *from != "", *to != "", *self} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return errors.New("delete: use exactly one of -uids, -from, -to, -self")
	}

	uids, err := parseUIDs(*uidList)
	if err != nil {
		return err
	}

	m, err := e.openMessenger()
	if err != nil {
		return err
	}
	j, closeJournal, err := e.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	var (
		res     *messenger.DeleteResult
		dir     = model.DirectionReceived
		address string
	)
	switch {
	case len(uids) > 0:
		res, err = m.DeleteByUIDs(ctx, uids)
	case *from != "":
		address = *from
		res, err = m.DeleteBySender(ctx, *from)
	case *to != "":
		dir, address = model.DirectionSent, *to
		res, err = m.DeleteByRecipient(ctx, *to, *folder)
	default:
		dir = model.DirectionSent
		res, err = m.DeleteSelfSent(ctx, *folder)
	}
	if err != nil {
		return err
	}

	if err := j.Deleted(ctx, dir, address, res); err != nil {
		e.logger.Warn("journal write failed", "error", err)
	}
	fmt.Printf("deleted %d of %d matched in %s\n", res.Expunged, len(res.Matched), res.Folder)
	return nil
}

func runJournal(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	direction := fs.String("direction", "", "sent or received")
	address := fs.String("address", "", "only entries for this gateway address")
	limit := fs.Int("limit", 50, "maximum entries to print")
	all := fs.Bool("all", false, "include entries for deleted mail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !e.cfg.Journal.Enabled {
		return errors.New("journal is disabled in the config")
	}

	filter := store.JournalFilter{IncludeDeleted: *all, Limit: *limit}
	switch *direction {
	case "":
	case string(model.DirectionSent), string(model.DirectionReceived):
		d := model.Direction(*direction)
		filter.Direction = &d
	default:
		return fmt.Errorf("journal: unknown direction %q", *direction)
	}
	if *address != "" {
		filter.Address = address
	}

	j, closeJournal, err := e.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	entries, err := j.List(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, entry := range entries {
		body := strings.Join(strings.Fields(entry.Body), " ")
		if entry.DeletedAt != nil {
			body = theme.DimmedStyle.Render(body + " (deleted)")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			entry.CreatedAt.Local().Format(time.DateTime),
			theme.DirectionStyle(string(entry.Direction)).Render(string(entry.Direction)),
			entry.Address,
			body,
		)
	}
	return w.Flush()
}

func runTUI(_ context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	// The alternate screen owns stdout and stderr; log to a file instead.
	logDir := filepath.Dir(e.configPath)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := tea.LogToFile(filepath.Join(logDir, "tui.log"), "smsgw")
	if err != nil {
		return fmt.Errorf("opening tui log: %w", err)
	}
	defer logFile.Close()
	e.logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: e.level}))

	m, err := e.openMessenger()
	if err != nil {
		return err
	}
	j, closeJournal, err := e.openJournal()
	if err != nil {
		return err
	}
	defer closeJournal()

	root := app.New(m, app.Options{
		Contacts:     e.cfg.SortedContacts(),
		PollInterval: time.Duration(e.cfg.TUI.PollIntervalSec) * time.Second,
		Journal:      j,
		Logger:       e.logger,
	})

	_, err = tea.NewProgram(root, tea.WithAltScreen()).Run()
	return err
}
