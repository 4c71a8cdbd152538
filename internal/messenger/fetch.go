package messenger

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
)

// FetchMessages returns the text/plain bodies of every inbox message whose
// From header matches from, flattened in the server's search order.
func (m *Messenger) FetchMessages(ctx context.Context, from string) ([]string, error) {
	msgs, err := m.FetchMessagesByUID(ctx, from)

	var bodies []string
	for _, msg := range msgs {
		bodies = append(bodies, msg.Bodies...)
	}
	return bodies, err
}

// FetchMessagesByUID returns one InboundMessage per inbox message whose From
// header matches from, in the server's search order. The inbox is opened
// read-only and bodies are fetched with BODY.PEEK so nothing is marked seen.
//
// A message that cannot be parsed or decoded is left out and its
// *ParseError or *DecodeError is joined into the returned error; the other
// messages are still returned.
func (m *Messenger) FetchMessagesByUID(
	ctx context.Context, from string,
) (msgs []InboundMessage, err error) {
	ctx, span := m.otel.start(ctx, "fetch",
		attribute.String("smsgw.from", from),
		folderAttr(m.opts.inbox),
	)
	defer func() { m.otel.end(span, err) }()

	sess, err := m.store.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer m.closeSession(sess)

	validity, err := sess.Select(m.opts.inbox, true)
	if err != nil {
		return nil, err
	}

	uids, err := sess.Search(searchFrom, from)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	raw, err := sess.Fetch(uids)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, uid := range uids {
		data, ok := raw[uid]
		if !ok {
			// Expunged by another client between SEARCH and FETCH.
			continue
		}

		bodies, perr := plainTextParts(uid, data)
		if perr != nil {
			m.logger.Warn("skipping message", "uid", uid, "error", perr)
			errs = append(errs, perr)
			continue
		}
		msgs = append(msgs, InboundMessage{UID: uid, UIDValidity: validity, Bodies: bodies})
	}

	m.logger.Debug("fetched messages", "from", from, "matched", len(uids), "returned", len(msgs))
	return msgs, errors.Join(errs...)
}
