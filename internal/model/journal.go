package model

import "time"

// Direction records which way a journaled message travelled.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// JournalEntry is one message the gateway sent or fetched.
type JournalEntry struct {
	// ID is the unique identifier for this entry.
	ID string `db:"id" json:"id"`

	Direction Direction `db:"direction" json:"direction"`

	// Account is the mail account the message went through.
	Account string `db:"account" json:"account"`

	// Address is the gateway address on the other end.
	Address string `db:"address" json:"address"`

	// UID is the IMAP UID of a received message; zero for sent messages.
	UID uint32 `db:"uid" json:"uid,omitempty"`

	// UIDValidity is the inbox UIDVALIDITY the UID was issued under.
	UIDValidity uint32 `db:"uid_validity" json:"uid_validity,omitempty"`

	Subject string `db:"subject" json:"subject"`
	Body    string `db:"body" json:"body"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// DeletedAt is set once the message was removed from the mailbox.
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
