package messenger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/charmap"
)

// plainTextParts walks a raw RFC 5322 message and returns the decoded text of
// every part whose media type starts with text/plain, in document order.
//
// Parts in a charset go-message cannot convert are left as raw bytes by the
// reader. Those bytes are used as-is when they are valid UTF-8 and decoded as
// ISO-8859-1 otherwise, which accepts every byte sequence. CRLF line endings
// from the wire are returned as LF, so a body sent by composeMIME reads back
// unchanged.
func plainTextParts(uid UID, raw []byte) ([]string, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !recoverable(err) {
		return nil, &ParseError{UID: uid, Err: err}
	}
	if mr == nil {
		return nil, &ParseError{UID: uid, Err: errors.New("no message reader")}
	}
	defer mr.Close()

	var bodies []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !recoverable(err) {
			return nil, &ParseError{UID: uid, Err: err}
		}
		if part == nil {
			continue
		}

		mediaType, params, ok := partContentType(part.Header)
		if !ok || !strings.HasPrefix(mediaType, "text/plain") {
			continue
		}

		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, &DecodeError{UID: uid, Charset: params["charset"], Err: err}
		}

		text, err := fallbackDecode(data)
		if err != nil {
			return nil, &DecodeError{UID: uid, Charset: params["charset"], Err: err}
		}
		bodies = append(bodies, strings.ReplaceAll(text, "\r\n", "\n"))
	}

	return bodies, nil
}

// recoverable reports whether go-message still produced a readable entity
// despite err.
func recoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

// partContentType parses a part's Content-Type, defaulting a missing one to
// text/plain as RFC 2045 does.
func partContentType(h mail.PartHeader) (string, map[string]string, bool) {
	value := h.Get("Content-Type")
	if value == "" {
		return "text/plain", map[string]string{}, true
	}
	mediaType, params, err := mime.ParseMediaType(value)
	if err != nil {
		return "", nil, false
	}
	return mediaType, params, true
}

func fallbackDecode(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("iso-8859-1 fallback: %w", err)
	}
	return string(decoded), nil
}

// composeMIME renders msg as a multipart/mixed message with a single
// text/plain part. Subject and body are written exactly as given.
func composeMIME(msg OutboundMessage, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: msg.From}})

	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating Message-Id: %w", err)
	}
	h.SetContentType("multipart/mixed", nil)

	var buf bytes.Buffer
	mw, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	var ph message.Header
	ph.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", transferEncoding(msg.Body))

	pw, err := mw.CreatePart(ph)
	if err != nil {
		return nil, fmt.Errorf("creating text part: %w", err)
	}
	if _, err := io.WriteString(pw, msg.Body); err != nil {
		return nil, fmt.Errorf("writing text part: %w", err)
	}
	if err := pw.Close(); err != nil {
		return nil, fmt.Errorf("closing text part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message: %w", err)
	}

	return buf.Bytes(), nil
}

// transferEncoding picks quoted-printable for non-ASCII bodies so the message
// stays 7-bit clean for relays and gateways without 8BITMIME.
func transferEncoding(body string) string {
	for i := 0; i < len(body); i++ {
		if body[i] >= utf8.RuneSelf {
			return "quoted-printable"
		}
	}
	return "7bit"
}
