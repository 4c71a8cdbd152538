package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/sms-messenger/internal/journal"
	"github.com/nhle/sms-messenger/internal/messenger"
	"github.com/nhle/sms-messenger/internal/model"
	"github.com/nhle/sms-messenger/internal/store"
	appsync "github.com/nhle/sms-messenger/internal/sync"
	"github.com/nhle/sms-messenger/internal/testutil"
	"github.com/nhle/sms-messenger/internal/ui/compose"
	"github.com/nhle/sms-messenger/internal/ui/inbox"
)

const momAddr = "5551234567@vtext.com"

type fakeGateway struct {
	mu      sync.Mutex
	replies []messenger.InboundMessage
	sendErr error
	sent    [][]string
	deleted []messenger.UID
}

func (g *fakeGateway) Email() string { return "bot@example.com" }

func (g *fakeGateway) FetchMessagesByUID(_ context.Context, _ string) ([]messenger.InboundMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.replies, nil
}

func (g *fakeGateway) SendMessage(
	_ context.Context, body string, to []string, _ ...messenger.SendOption,
) (*messenger.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.sent = append(g.sent, to)
	return &messenger.SendResult{
		Message:  messenger.OutboundMessage{From: g.Email(), To: to, Subject: "s\n", Body: body + "\n"},
		Accepted: to,
	}, nil
}

func (g *fakeGateway) DeleteByUIDs(_ context.Context, uids []messenger.UID) (*messenger.DeleteResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.deleted = append(g.deleted, uids...)
	return &messenger.DeleteResult{Folder: "INBOX", Matched: uids, Expunged: len(uids)}, nil
}

func (g *fakeGateway) DeleteBySender(_ context.Context, _ string) (*messenger.DeleteResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var uids []messenger.UID
	for _, r := range g.replies {
		uids = append(uids, r.UID)
	}
	g.deleted = append(g.deleted, uids...)
	return &messenger.DeleteResult{Folder: "INBOX", Matched: uids, Expunged: len(uids)}, nil
}

func newTestApp(t *testing.T, gw *fakeGateway) (Model, *journal.Recorder) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := journal.New(testutil.NewTestStore(t), gw.Email(), logger)
	m := New(gw, Options{
		Contacts: []model.Contact{
			{Name: "Mom", Number: "5551234567", Carrier: "Verizon Wireless"},
			{Name: "Broken", Number: "12", Carrier: "Verizon Wireless"},
		},
		Journal: rec,
		Logger:  logger,
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), rec
}

func TestNewSkipsUnresolvableContacts(t *testing.T) {
	t.Parallel()

	m, _ := newTestApp(t, &fakeGateway{})

	statuses := m.poller.GetStatuses()
	if len(statuses) != 1 || statuses[0].Address != momAddr {
		t.Errorf("watched: got %+v, want only %s", statuses, momAddr)
	}
	cur, ok := m.inbox.Current()
	if !ok || cur.Address != momAddr {
		t.Errorf("current contact: got %+v", cur)
	}
}

func TestSyncResultFillsInbox(t *testing.T) {
	t.Parallel()

	m, _ := newTestApp(t, &fakeGateway{})
	msgs := []messenger.InboundMessage{{UID: 4, Bodies: []string{"on my way"}}}

	updated, _ := m.Update(appsync.SyncResultMsg{Address: momAddr, Messages: msgs, NewCount: 1})
	m = updated.(Model)

	if got := m.inbox.Messages(momAddr); len(got) != 1 || got[0].UID != 4 {
		t.Errorf("inbox: got %+v", got)
	}
	if !strings.Contains(m.View(), "on my way") {
		t.Error("reply not rendered")
	}

	updated, _ = m.Update(appsync.SyncResultMsg{Address: momAddr, Error: errors.New("timeout")})
	m = updated.(Model)
	if !strings.Contains(m.errMessage, "timeout") {
		t.Errorf("errMessage: got %q", m.errMessage)
	}
}

func TestSendFlowJournals(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	m, rec := newTestApp(t, gw)

	updated, cmd := m.Update(compose.SendRequestMsg{To: []string{momAddr}, Body: "Hello"})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("no send command")
	}

	updated, _ = m.Update(cmd())
	m = updated.(Model)

	if m.status != "Message sent successfully to "+momAddr {
		t.Errorf("status: got %q", m.status)
	}
	entries, err := rec.List(context.Background(), store.JournalFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Direction != model.DirectionSent {
		t.Errorf("journal: got %+v", entries)
	}
}

func TestSendFailureShowsError(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{sendErr: &messenger.ConnectionError{Op: "smtp", Addr: "smtp.gmail.com:587", Err: errors.New("refused")}}
	m, _ := newTestApp(t, gw)

	_, cmd := m.Update(compose.SendRequestMsg{To: []string{momAddr}, Body: "Hello"})
	updated, _ := m.Update(cmd())
	m = updated.(Model)

	if !strings.Contains(m.errMessage, "send failed") {
		t.Errorf("errMessage: got %q", m.errMessage)
	}
}

func TestDeleteFlowRemovesReply(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{replies: []messenger.InboundMessage{
		{UID: 4, Bodies: []string{"a"}},
		{UID: 5, Bodies: []string{"b"}},
	}}
	m, _ := newTestApp(t, gw)

	updated, _ := m.Update(appsync.SyncResultMsg{Address: momAddr, Messages: gw.replies, NewCount: 2})
	m = updated.(Model)

	updated, cmd := m.Update(inbox.DeleteRequestMsg{Address: momAddr, UIDs: []messenger.UID{4}})
	m = updated.(Model)
	updated, _ = m.Update(cmd())
	m = updated.(Model)

	if got := m.inbox.Messages(momAddr); len(got) != 1 || got[0].UID != 5 {
		t.Errorf("inbox after delete: got %+v", got)
	}
	if len(gw.deleted) != 1 || gw.deleted[0] != 4 {
		t.Errorf("gateway deletes: got %v", gw.deleted)
	}
}

func TestHelpToggle(t *testing.T) {
	t.Parallel()

	m, _ := newTestApp(t, &fakeGateway{})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = updated.(Model)
	if m.currentView != ViewHelp {
		t.Fatalf("view: got %d, want help", m.currentView)
	}
	if !strings.Contains(m.View(), "Carrier Gateways") {
		t.Error("help does not list carrier gateways")
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.currentView != ViewInbox {
		t.Errorf("view: got %d, want inbox", m.currentView)
	}
}
