package util

import (
	"errors"
	"net/mail"
	"strings"
)

// ErrBadSender is returned when a sender filter is not an email address.
var ErrBadSender = errors.New("sender must be an email address")

// SenderAddress reduces a sender filter to the bare lowercased address Gmail
// matches on. It accepts "Name <user@bank.com>" as well as "user@bank.com".
// Plus-aliases are kept since banks send from exact addresses.
func SenderAddress(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrBadSender
	}
	addr, err := mail.ParseAddress(input)
	if err != nil {
		return "", ErrBadSender
	}
	email := strings.ToLower(strings.TrimSpace(addr.Address))
	if at := strings.LastIndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return "", ErrBadSender
	}
	return email, nil
}

// SubjectPhrase trims a subject filter and collapses inner whitespace so it
// can be used as an exact-phrase search.
func SubjectPhrase(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
