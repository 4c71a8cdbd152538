package messenger

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

const gatewayAddr = "5551234567@vtext.com"

func TestFetchGroupsPartsPerUID(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	first := box.add(DefaultInbox, twoPartMail(gatewayAddr, "first-a", "first-b"))
	box.add(DefaultInbox, twoPartMail("someone@else.org", "noise-a", "noise-b"))
	second := box.add(DefaultInbox, twoPartMail(gatewayAddr, "second-a", "second-b"))

	m := newTestMessenger(t, box, nil)

	msgs, err := m.FetchMessagesByUID(context.Background(), gatewayAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []InboundMessage{
		{UID: first, UIDValidity: 1, Bodies: []string{"first-a", "first-b"}},
		{UID: second, UIDValidity: 1, Bodies: []string{"second-a", "second-b"}},
	}
	if !reflect.DeepEqual(msgs, want) {
		t.Fatalf("got %+v, want %+v", msgs, want)
	}

	searched := map[UID]bool{first: true, second: true}
	for uid := range Bodies(msgs) {
		if !searched[uid] {
			t.Errorf("UID %d not in search result", uid)
		}
	}
}

func TestFetchMessagesFlattensInSearchOrder(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, twoPartMail(gatewayAddr, "a1", "a2"))
	box.add(DefaultInbox, twoPartMail(gatewayAddr, "b1", "b2"))

	m := newTestMessenger(t, box, nil)

	bodies, err := m.FetchMessages(context.Background(), gatewayAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a1", "a2", "b1", "b2"}
	if !reflect.DeepEqual(bodies, want) {
		t.Errorf("got %q, want %q", bodies, want)
	}
}

func TestFetchNormalizesLineEndings(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"Content-Type: text/plain; charset=utf-8",
		"",
		"line one",
		"line two",
		"",
	))
	m := newTestMessenger(t, box, nil)

	bodies, err := m.FetchMessages(context.Background(), gatewayAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"line one\nline two\n"}
	if !reflect.DeepEqual(bodies, want) {
		t.Errorf("got %q, want %q", bodies, want)
	}
}

func TestFetchUsesReadOnlySessionAndCloses(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, twoPartMail(gatewayAddr, "x", "y"))
	m := newTestMessenger(t, box, nil)

	if _, err := m.FetchMessagesByUID(context.Background(), gatewayAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sel := box.lastSelect()
	if sel.folder != DefaultInbox || !sel.readOnly {
		t.Errorf("select: got %+v, want read-only %s", sel, DefaultInbox)
	}
	if box.storeCalls != 0 {
		t.Errorf("fetch issued %d STORE commands", box.storeCalls)
	}
	if box.opened != 1 || box.closed != 1 {
		t.Errorf("sessions: opened %d closed %d, want 1 and 1", box.opened, box.closed)
	}
}

func TestFetchNoMatches(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, twoPartMail("someone@else.org", "a", "b"))
	m := newTestMessenger(t, box, nil)

	msgs, err := m.FetchMessagesByUID(context.Background(), gatewayAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
	if box.closed != 1 {
		t.Errorf("session not closed")
	}
}

func TestFetchDecodesCharsets(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"Content-Type: text/plain; charset=iso-8859-1",
		"",
		"caf\xe9",
	))
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"Y2Fmw6k=",
	))
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"Content-Type: text/plain; charset=x-no-such-charset",
		"",
		"caf\xe9",
	))
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"",
		"no content type",
	))

	m := newTestMessenger(t, box, nil)

	bodies, err := m.FetchMessages(context.Background(), gatewayAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"café", "café", "café", "no content type"}
	if !reflect.DeepEqual(bodies, want) {
		t.Errorf("got %q, want %q", bodies, want)
	}
}

func TestFetchSkipsUndecodableMessage(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"!!!not base64!!!",
	))
	good := box.add(DefaultInbox, twoPartMail(gatewayAddr, "ok-1", "ok-2"))

	m := newTestMessenger(t, box, nil)

	msgs, err := m.FetchMessagesByUID(context.Background(), gatewayAddr)
	if !IsDecodeError(err) {
		t.Fatalf("got %v, want DecodeError", err)
	}
	if len(msgs) != 1 || msgs[0].UID != good {
		t.Fatalf("got %+v, want only UID %d", msgs, good)
	}
}

func TestFetchReportsParseError(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.add(DefaultInbox, rawMail(
		"From: "+gatewayAddr,
		"this header line has no colon",
		"",
		"body",
	))

	m := newTestMessenger(t, box, nil)

	_, err := m.FetchMessagesByUID(context.Background(), gatewayAddr)
	if !IsParseError(err) {
		t.Fatalf("got %v, want ParseError", err)
	}
}

func TestFetchPropagatesOpenError(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	box.openErr = &ConnectionError{Op: "imap", Addr: "imap.example.com:993", Err: errors.New("connection refused")}
	m := newTestMessenger(t, box, nil)

	_, err := m.FetchMessagesByUID(context.Background(), gatewayAddr)
	if !IsConnectionError(err) {
		t.Fatalf("got %v, want ConnectionError", err)
	}
}

func TestFetchMissingFolder(t *testing.T) {
	t.Parallel()

	box := newFakeMailbox()
	m := newTestMessenger(t, box, nil, WithInbox("Texts"))

	_, err := m.FetchMessagesByUID(context.Background(), gatewayAddr)
	if !IsProtocolError(err) {
		t.Fatalf("got %v, want ProtocolError", err)
	}
	if box.closed != 1 {
		t.Errorf("session left open after SELECT failure")
	}
}
