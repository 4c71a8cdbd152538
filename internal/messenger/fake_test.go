package messenger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// fakeMailbox is an in-memory mail store with IMAP-like UID, flag and
// expunge semantics. It advertises UIDPLUS unless noUIDPlus is set.
type fakeMailbox struct {
	mu          sync.Mutex
	folders     map[string][]*fakeItem
	nextUID     UID
	uidValidity uint32
	noUIDPlus   bool
	openErr     error

	opened     int
	closed     int
	storeCalls int
	selects    []fakeSelect
}

type fakeItem struct {
	uid     UID
	raw     []byte
	deleted bool
}

type fakeSelect struct {
	folder   string
	readOnly bool
}

func newFakeMailbox(folders ...string) *fakeMailbox {
	f := &fakeMailbox{folders: map[string][]*fakeItem{DefaultInbox: nil}, uidValidity: 1}
	for _, name := range folders {
		f.folders[name] = nil
	}
	return f
}

func (f *fakeMailbox) add(folder string, raw []byte) UID {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextUID++
	f.folders[folder] = append(f.folders[folder], &fakeItem{uid: f.nextUID, raw: raw})
	return f.nextUID
}

// flag marks uid \Deleted the way another client sharing the mailbox would.
func (f *fakeMailbox) flag(folder string, uid UID) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, item := range f.folders[folder] {
		if item.uid == uid {
			item.deleted = true
		}
	}
}

func (f *fakeMailbox) uids(folder string) []UID {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []UID
	for _, item := range f.folders[folder] {
		out = append(out, item.uid)
	}
	return out
}

func (f *fakeMailbox) lastSelect() fakeSelect {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.selects) == 0 {
		return fakeSelect{}
	}
	return f.selects[len(f.selects)-1]
}

func (f *fakeMailbox) Open(_ context.Context) (mailSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &fakeSession{box: f}, nil
}

type fakeSession struct {
	box      *fakeMailbox
	folder   string
	readOnly bool
	selected bool
}

func (s *fakeSession) Caps() []string {
	if s.box.noUIDPlus {
		return []string{"IMAP4rev1"}
	}
	return []string{"IMAP4rev1", "UIDPLUS"}
}

func (s *fakeSession) Select(folder string, readOnly bool) (uint32, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	if _, ok := s.box.folders[folder]; !ok {
		return 0, &ProtocolError{Op: "imap", Command: "SELECT " + folder, Err: errors.New("no such mailbox")}
	}
	s.folder, s.readOnly, s.selected = folder, readOnly, true
	s.box.selects = append(s.box.selects, fakeSelect{folder: folder, readOnly: readOnly})
	return s.box.uidValidity, nil
}

// Search matches case-insensitive substrings of the header, like IMAP SEARCH.
func (s *fakeSession) Search(field, value string) ([]UID, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	if !s.selected {
		return nil, errors.New("no mailbox selected")
	}

	var out []UID
	for _, item := range s.box.folders[s.folder] {
		header := strings.ToLower(headerValue(item.raw, field))
		if strings.Contains(header, strings.ToLower(value)) {
			out = append(out, item.uid)
		}
	}
	return out, nil
}

// headerValue scans the header block line by line so that messages with
// malformed headers can still be found by the fields that are well formed.
func headerValue(raw []byte, field string) string {
	prefix := strings.ToLower(field) + ":"
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}
	return ""
}

func (s *fakeSession) Fetch(uids []UID) (map[UID][]byte, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	want := make(map[UID]bool, len(uids))
	for _, uid := range uids {
		want[uid] = true
	}
	out := make(map[UID][]byte)
	for _, item := range s.box.folders[s.folder] {
		if want[item.uid] {
			out[item.uid] = item.raw
		}
	}
	return out, nil
}

func (s *fakeSession) MarkDeleted(uids []UID) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	s.box.storeCalls++
	if s.readOnly {
		return &ProtocolError{Op: "imap", Command: "UID STORE", Err: errors.New("mailbox is read-only")}
	}
	for _, uid := range uids {
		for _, item := range s.box.folders[s.folder] {
			if item.uid == uid {
				item.deleted = true
			}
		}
	}
	return nil
}

// Expunge removes flagged items among uids, or every flagged item when the
// mailbox has no UIDPLUS.
func (s *fakeSession) Expunge(uids []UID) (int, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	if s.readOnly {
		return 0, &ProtocolError{Op: "imap", Command: "EXPUNGE", Err: errors.New("mailbox is read-only")}
	}
	scope := make(map[UID]bool, len(uids))
	for _, uid := range uids {
		scope[uid] = true
	}
	var kept []*fakeItem
	removed := 0
	for _, item := range s.box.folders[s.folder] {
		if item.deleted && (s.box.noUIDPlus || scope[item.uid]) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	s.box.folders[s.folder] = kept
	return removed, nil
}

func (s *fakeSession) Close() error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()

	s.box.closed++
	return nil
}

// fakeTransport records submissions and, when box is set, drops accepted
// messages into box's inbox the way a loopback gateway would.
type fakeTransport struct {
	mu     sync.Mutex
	box    *fakeMailbox
	refuse map[string]bool
	err    error
	sent   []fakeSubmission
}

type fakeSubmission struct {
	from string
	to   []string
	data []byte
}

func (t *fakeTransport) Submit(
	_ context.Context, from string, to []string, data []byte,
) (map[string]error, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return nil, t.err
	}

	refused := make(map[string]error)
	for _, rcpt := range to {
		if t.refuse[rcpt] {
			refused[rcpt] = fmt.Errorf("550 no such user %s", rcpt)
		}
	}
	t.sent = append(t.sent, fakeSubmission{from: from, to: append([]string(nil), to...), data: data})

	if t.box != nil && len(refused) < len(to) {
		t.box.add(DefaultInbox, data)
	}
	return refused, nil
}

func newTestMessenger(t *testing.T, box *fakeMailbox, tr *fakeTransport, opts ...Option) *Messenger {
	t.Helper()

	if box == nil {
		box = newFakeMailbox()
	}
	if tr == nil {
		tr = &fakeTransport{}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{withMailStore(box), withTransport(tr), WithLogger(logger)}, opts...)
	return New("bot@example.com", "app-password", opts...)
}

// rawMail joins header and body lines with CRLF.
func rawMail(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

// twoPartMail builds a multipart/mixed message with two text/plain parts.
func twoPartMail(from, first, second string) []byte {
	return rawMail(
		"From: "+from,
		"To: bot@example.com",
		"Subject: reply",
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=sep",
		"",
		"--sep",
		"Content-Type: text/plain; charset=utf-8",
		"",
		first,
		"--sep",
		"Content-Type: text/plain; charset=utf-8",
		"",
		second,
		"--sep--",
		"",
	)
}
