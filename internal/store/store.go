package store

import (
	"context"

	"github.com/nhle/sms-messenger/internal/model"
)

// JournalFilter controls filtering and pagination for journal queries.
type JournalFilter struct {
	Direction      *model.Direction
	Account        *string
	Address        *string // exact gateway address, case-insensitive
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Store defines the persistence interface for the message journal.
type Store interface {
	// RecordEntries inserts entries, skipping received messages already
	// journaled under the same account, UIDVALIDITY and UID.
	RecordEntries(ctx context.Context, entries []model.JournalEntry) (int, error)
	ListEntries(ctx context.Context, filter JournalFilter) ([]model.JournalEntry, error)
	CountEntries(ctx context.Context, filter JournalFilter) (int, error)

	// MarkUIDsDeleted stamps received entries whose UIDs were expunged.
	MarkUIDsDeleted(ctx context.Context, account string, uidValidity uint32, uids []uint32) (int, error)
	// MarkAddressDeleted stamps every live entry in one direction for an address.
	MarkAddressDeleted(ctx context.Context, account string, dir model.Direction, address string) (int, error)

	Close() error
}
