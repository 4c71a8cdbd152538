package messenger

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sort"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Header fields used for mailbox searches.
const (
	searchFrom = "From"
	searchTo   = "To"
)

// mailStore opens authenticated mailbox sessions.
type mailStore interface {
	Open(ctx context.Context) (mailSession, error)
}

// mailSession is one logged-in mailbox connection. Close logs out.
//
// Select returns the folder's UIDVALIDITY. Expunge removes the given UIDs
// once they are flagged \Deleted; a server without UIDPLUS can only expunge
// the whole folder.
type mailSession interface {
	Caps() []string
	Select(folder string, readOnly bool) (uint32, error)
	Search(field, value string) ([]UID, error)
	Fetch(uids []UID) (map[UID][]byte, error)
	MarkDeleted(uids []UID) error
	Expunge(uids []UID) (int, error)
	Close() error
}

// imapStore dials an IMAP server over implicit TLS.
type imapStore struct {
	addr      string
	host      string
	account   string
	secret    string
	tlsConfig *tls.Config
	logger    *slog.Logger
}

// Open connects, authenticates and returns the session. The caller must
// Close it. A server NO/BAD to LOGIN is an AuthError; anything else that
// stops the login is a ConnectionError.
func (s *imapStore) Open(ctx context.Context) (mailSession, error) {
	dialer := &tls.Dialer{Config: tlsConfigFor(s.tlsConfig, s.host)}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, &ConnectionError{Op: "imap", Addr: s.addr, Err: err}
	}

	// go-imap v2 reads literals of any size, so large bodies are never cut.
	client := imapclient.New(conn, nil)

	if err := client.Login(s.account, s.secret).Wait(); err != nil {
		_ = client.Close()
		var imapErr *imap.Error
		if errors.As(err, &imapErr) {
			return nil, &AuthError{Op: "imap", Account: s.account, Err: err}
		}
		return nil, &ConnectionError{Op: "imap", Addr: s.addr, Err: err}
	}

	s.logger.Debug("imap session opened", "addr", s.addr)
	return &imapSession{client: client, logger: s.logger}, nil
}

// imapSession adapts an imapclient.Client to mailSession.
type imapSession struct {
	client *imapclient.Client
	logger *slog.Logger
}

func (s *imapSession) Caps() []string {
	caps := make([]string, 0)
	for c := range s.client.Caps() {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)
	return caps
}

func (s *imapSession) Select(folder string, readOnly bool) (uint32, error) {
	opts := &imap.SelectOptions{ReadOnly: readOnly}
	data, err := s.client.Select(folder, opts).Wait()
	if err != nil {
		return 0, &ProtocolError{Op: "imap", Command: "SELECT " + folder, Err: err}
	}
	return data.UIDValidity, nil
}

func (s *imapSession) Search(field, value string) ([]UID, error) {
	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: field, Value: value},
		},
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &ProtocolError{Op: "imap", Command: "UID SEARCH " + field, Err: err}
	}

	found := data.AllUIDs()
	uids := make([]UID, 0, len(found))
	for _, uid := range found {
		uids = append(uids, UID(uid))
	}
	return uids, nil
}

func (s *imapSession) Fetch(uids []UID) (map[UID][]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	msgs, err := s.client.Fetch(uidSet(uids), fetchOpts).Collect()
	if err != nil {
		return nil, &ProtocolError{Op: "imap", Command: "UID FETCH", Err: err}
	}

	raw := make(map[UID][]byte, len(msgs))
	for _, buf := range msgs {
		if body := buf.FindBodySection(bodySection); body != nil {
			raw[UID(buf.UID)] = body
		}
	}
	return raw, nil
}

func (s *imapSession) MarkDeleted(uids []UID) error {
	storeCmd := s.client.Store(uidSet(uids), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return &ProtocolError{Op: "imap", Command: "UID STORE", Err: err}
	}
	return nil
}

func (s *imapSession) Expunge(uids []UID) (int, error) {
	var (
		cmd  *imapclient.ExpungeCommand
		name string
	)
	if s.client.Caps().Has(imap.CapUIDPlus) {
		cmd, name = s.client.UIDExpunge(uidSet(uids)), "UID EXPUNGE"
	} else {
		s.logger.Warn("server lacks UIDPLUS, expunging every \\Deleted message in the folder")
		cmd, name = s.client.Expunge(), "EXPUNGE"
	}

	seqNums, err := cmd.Collect()
	if err != nil {
		return 0, &ProtocolError{Op: "imap", Command: name, Err: err}
	}
	return len(seqNums), nil
}

func (s *imapSession) Close() error {
	logoutErr := s.client.Logout().Wait()
	closeErr := s.client.Close()
	if logoutErr != nil {
		return logoutErr
	}
	return closeErr
}

func uidSet(uids []UID) imap.UIDSet {
	nums := make([]imap.UID, 0, len(uids))
	for _, uid := range uids {
		nums = append(nums, imap.UID(uid))
	}
	return imap.UIDSetNum(nums...)
}

// tlsConfigFor returns a copy of base with ServerName set to host when the
// caller left it empty.
func tlsConfigFor(base *tls.Config, host string) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}
