package messenger

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// DeleteResult reports what a delete operation removed.
type DeleteResult struct {
	Folder      string
	UIDValidity uint32
	Matched     []UID
	Expunged    int
}

// DeleteByUIDs flags the given inbox UIDs \Deleted and expunges them. UIDs
// that no longer exist are ignored by the server and leave other messages
// untouched.
func (m *Messenger) DeleteByUIDs(ctx context.Context, uids []UID) (*DeleteResult, error) {
	return m.deleteIn(ctx, "delete_uids", m.opts.inbox, func(mailSession) ([]UID, error) {
		return uids, nil
	})
}

// DeleteBySender deletes every inbox message whose From header matches from.
func (m *Messenger) DeleteBySender(ctx context.Context, from string) (*DeleteResult, error) {
	return m.deleteIn(ctx, "delete_sender", m.opts.inbox, func(sess mailSession) ([]UID, error) {
		return sess.Search(searchFrom, from)
	})
}

// DeleteByRecipient deletes every message in folder whose To header matches
// to. An empty folder means the configured sent folder.
func (m *Messenger) DeleteByRecipient(
	ctx context.Context, to, folder string,
) (*DeleteResult, error) {
	if folder == "" {
		folder = m.opts.sentFolder
	}
	return m.deleteIn(ctx, "delete_recipient", folder, func(sess mailSession) ([]UID, error) {
		return sess.Search(searchTo, to)
	})
}

// DeleteSelfSent deletes every message in folder sent from this account. An
// empty folder means the configured sent folder.
func (m *Messenger) DeleteSelfSent(ctx context.Context, folder string) (*DeleteResult, error) {
	if folder == "" {
		folder = m.opts.sentFolder
	}
	return m.deleteIn(ctx, "delete_self", folder, func(sess mailSession) ([]UID, error) {
		return sess.Search(searchFrom, m.email)
	})
}

// deleteIn opens folder read-write, resolves the UIDs to delete, flags them
// and expunges only those UIDs. When nothing matches the folder is left alone.
func (m *Messenger) deleteIn(
	ctx context.Context,
	op, folder string,
	match func(mailSession) ([]UID, error),
) (res *DeleteResult, err error) {
	ctx, span := m.otel.start(ctx, op, folderAttr(folder))
	defer func() {
		if res != nil {
			span.SetAttributes(attribute.Int("smsgw.expunged", res.Expunged))
		}
		m.otel.end(span, err)
	}()

	sess, err := m.store.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer m.closeSession(sess)

	validity, err := sess.Select(folder, false)
	if err != nil {
		return nil, err
	}

	uids, err := match(sess)
	if err != nil {
		return nil, err
	}

	res = &DeleteResult{Folder: folder, UIDValidity: validity, Matched: uids}
	if len(uids) == 0 {
		return res, nil
	}

	if err := sess.MarkDeleted(uids); err != nil {
		return nil, err
	}

	n, err := sess.Expunge(uids)
	if err != nil {
		return nil, err
	}
	res.Expunged = n

	m.logger.Info("deleted messages", "folder", folder, "matched", len(uids), "expunged", n)
	return res, nil
}
