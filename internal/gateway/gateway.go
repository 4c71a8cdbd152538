// Package gateway maps US mobile carriers to their email-to-SMS gateway
// domains and builds gateway addresses for phone numbers.
package gateway

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownCarrier is returned when a carrier name is not in the table.
	// Lookups are exact: "verizon wireless" does not match "Verizon Wireless".
	ErrUnknownCarrier = errors.New("gateway: unknown carrier")

	// ErrInvalidNumber is returned when a phone number does not reduce to
	// exactly ten digits.
	ErrInvalidNumber = errors.New("gateway: invalid phone number")
)

// Table maps a carrier name to its SMS gateway domain.
type Table map[string]string

// usGateways is built once and never handed out directly.
var usGateways = Table{
	"Alltel":            "sms.alltelwireless.com",
	"AT&T":              "txt.att.net",
	"Boost Mobile":      "sms.myboostmobile.com",
	"Cricket Wireless":  "mms.cricketwireless.net",
	"FirstNet":          "txt.att.net",
	"MetroPCS":          "mymetropcs.com",
	"Republic Wireless": "text.republicwireless.com",
	"Sprint":            "messaging.sprintpcs.com",
	"T-Mobile":          "tmomail.net",
	"U.S. Cellular":     "email.uscc.net",
	"Verizon Wireless":  "vtext.com",
	"Virgin Mobile":     "vmobl.com",
}

// Gateways returns a copy of the US carrier table. Mutating the returned
// map does not affect later calls.
func Gateways() Table {
	out := make(Table, len(usGateways))
	for carrier, domain := range usGateways {
		out[carrier] = domain
	}
	return out
}

// Carriers returns the carrier names in alphabetical order.
func Carriers() []string {
	names := make([]string, 0, len(usGateways))
	for carrier := range usGateways {
		names = append(names, carrier)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the gateway domain for carrier.
func Lookup(carrier string) (string, error) {
	domain, ok := usGateways[carrier]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCarrier, carrier)
	}
	return domain, nil
}

// Address builds the gateway address <number>@<domain> for a phone number
// on the given carrier. Spaces, dashes, dots, parentheses and a leading
// "+1"/"1" country code are stripped before the ten-digit check.
func Address(number, carrier string) (string, error) {
	digits, err := NormalizeNumber(number)
	if err != nil {
		return "", err
	}

	domain, err := Lookup(carrier)
	if err != nil {
		return "", err
	}

	return digits + "@" + domain, nil
}

// NormalizeNumber reduces a US phone number to its ten digits.
func NormalizeNumber(number string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(strings.TrimSpace(number), "+") {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
		}
	}

	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}

	return digits, nil
}

// CarrierFor reports which carriers route through the domain of a gateway
// address such as "5551234567@txt.att.net". Several carriers may share a
// domain, so the result is sorted and may hold more than one name.
func CarrierFor(address string) []string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return nil
	}
	domain := strings.ToLower(address[at+1:])

	var carriers []string
	for carrier, d := range usGateways {
		if d == domain {
			carriers = append(carriers, carrier)
		}
	}
	sort.Strings(carriers)
	return carriers
}
