// Package journal records gateway traffic in the local store.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nhle/sms-messenger/internal/messenger"
	"github.com/nhle/sms-messenger/internal/model"
	"github.com/nhle/sms-messenger/internal/store"
)

// Recorder writes messenger results to a journal store. A Recorder with a
// nil store discards everything, so callers need not check whether the
// journal is enabled.
type Recorder struct {
	store   store.Store
	account string
	logger  *slog.Logger
}

// New creates a Recorder for account. s may be nil.
func New(s store.Store, account string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, account: account, logger: logger}
}

// Enabled reports whether entries are persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Sent journals one entry per accepted recipient of a send.
func (r *Recorder) Sent(ctx context.Context, res *messenger.SendResult) error {
	if !r.Enabled() || res == nil || len(res.Accepted) == 0 {
		return nil
	}

	entries := make([]model.JournalEntry, 0, len(res.Accepted))
	for _, addr := range res.Accepted {
		entries = append(entries, model.JournalEntry{
			Direction: model.DirectionSent,
			Account:   r.account,
			Address:   addr,
			Subject:   strings.TrimSuffix(res.Message.Subject, "\n"),
			Body:      res.Message.Body,
		})
	}

	if _, err := r.store.RecordEntries(ctx, entries); err != nil {
		return fmt.Errorf("journaling send: %w", err)
	}
	return nil
}

// Received journals fetched messages from address and returns how many were
// not seen before.
func (r *Recorder) Received(
	ctx context.Context,
	address string,
	msgs []messenger.InboundMessage,
) (int, error) {
	if !r.Enabled() || len(msgs) == 0 {
		return 0, nil
	}

	entries := make([]model.JournalEntry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, model.JournalEntry{
			Direction:   model.DirectionReceived,
			Account:     r.account,
			Address:     address,
			UID:         uint32(msg.UID),
			UIDValidity: msg.UIDValidity,
			Body:        strings.Join(msg.Bodies, "\n"),
		})
	}

	n, err := r.store.RecordEntries(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("journaling fetch from %s: %w", address, err)
	}
	if n > 0 {
		r.logger.Debug("journaled new messages", "address", address, "count", n)
	}
	return n, nil
}

// Deleted stamps journal entries affected by a delete. address names the
// sender or recipient a search-based delete matched on; it is empty for
// UID deletes.
func (r *Recorder) Deleted(
	ctx context.Context,
	dir model.Direction,
	address string,
	res *messenger.DeleteResult,
) error {
	if !r.Enabled() || res == nil || res.Expunged == 0 {
		return nil
	}

	var err error
	switch {
	case address != "":
		_, err = r.store.MarkAddressDeleted(ctx, r.account, dir, address)
	case dir == model.DirectionReceived:
		uids := make([]uint32, len(res.Matched))
		for i, uid := range res.Matched {
			uids[i] = uint32(uid)
		}
		_, err = r.store.MarkUIDsDeleted(ctx, r.account, res.UIDValidity, uids)
	}
	if err != nil {
		return fmt.Errorf("journaling delete in %s: %w", res.Folder, err)
	}
	return nil
}

// List returns journal entries, newest first.
func (r *Recorder) List(ctx context.Context, filter store.JournalFilter) ([]model.JournalEntry, error) {
	if !r.Enabled() {
		return nil, nil
	}
	if filter.Account == nil {
		account := r.account
		filter.Account = &account
	}
	return r.store.ListEntries(ctx, filter)
}
