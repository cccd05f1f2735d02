// Package email holds address helpers used when inviting policy actors.
package email

import (
	"net/mail"
	"strings"
	"unicode"

	dErrors "leasecover/pkg/domain-errors"
)

const maxAddressLen = 254

// Normalize trims and lowercases an address.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Validate rejects addresses that are not a bare RFC 5322 addr-spec.
func Validate(address string) error {
	if address == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(address) > maxAddressLen {
		return dErrors.New(dErrors.CodeValidation, "email is too long")
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	return nil
}

// RecipientName picks the greeting name for an invitation. A known full name
// wins; otherwise the name is derived from the mailbox.
func RecipientName(address, fullName string) string {
	if name := strings.TrimSpace(fullName); name != "" {
		return name
	}
	first, last := DeriveNameFromEmail(address)
	if last == "User" {
		return first
	}
	return first + " " + last
}

// DeriveNameFromEmail splits the local part on common separators.
// "ana.garcia@x.mx" yields ("Ana", "Garcia").
func DeriveNameFromEmail(address string) (string, string) {
	localPart := address
	if at := strings.IndexByte(address, '@'); at > 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
