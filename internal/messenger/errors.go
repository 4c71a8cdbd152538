package messenger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoRecipients is returned by SendMessage when the recipient list is empty.
var ErrNoRecipients = errors.New("messenger: no recipients")

// AuthError indicates the mail server rejected the account credentials.
type AuthError struct {
	Op      string
	Account string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed for %s: %v", e.Op, e.Account, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectionError indicates the server could not be reached.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connecting to %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError indicates a command failed or the server answered with
// something the client could not use.
type ProtocolError struct {
	Op      string
	Command string
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ParseError indicates a fetched mail item has a MIME structure that could
// not be read.
type ParseError struct {
	UID UID
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing message UID %d: %v", e.UID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DecodeError indicates a text/plain part could not be decoded under its
// declared transfer encoding or character set.
type DecodeError struct {
	UID     UID
	Charset string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding message UID %d (charset %q): %v", e.UID, e.Charset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PartialDeliveryError reports the recipients the SMTP server refused.
// Accepted recipients were still sent the message.
type PartialDeliveryError struct {
	Refused map[string]error
}

func (e *PartialDeliveryError) Error() string {
	addrs := make([]string, 0, len(e.Refused))
	for addr := range e.Refused {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return fmt.Sprintf("recipients refused: %s", strings.Join(addrs, ", "))
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsProtocolError reports whether err (or any error in its chain) is a
// ProtocolError.
func IsProtocolError(err error) bool {
	var target *ProtocolError
	return errors.As(err, &target)
}

// IsParseError reports whether err (or any error in its chain) is a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsDecodeError reports whether err (or any error in its chain) is a
// DecodeError.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsPartialDelivery reports whether err (or any error in its chain) is a
// PartialDeliveryError.
func IsPartialDelivery(err error) bool {
	var target *PartialDeliveryError
	return errors.As(err, &target)
}
