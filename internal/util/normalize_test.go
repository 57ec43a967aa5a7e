package util

import (
	"errors"
	"testing"
)

func TestSenderAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`Banco <Extrato@Banco.COM.br>`, "extrato@banco.com.br"},
		{`"Banco" <avisos+extrato@banco.com>`, "avisos+extrato@banco.com"},
		{`  banco@exemplo.com `, "banco@exemplo.com"},
		{`user.name@example.com`, "user.name@example.com"},
	}
	for _, tc := range tests {
		got, err := SenderAddress(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("SenderAddress(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestSenderAddressRejects(t *testing.T) {
	for _, in := range []string{``, `bad address`, `banco@`, `"A" <not-an-email>`} {
		if _, err := SenderAddress(in); !errors.Is(err, ErrBadSender) {
			t.Errorf("SenderAddress(%q) err = %v; want ErrBadSender", in, err)
		}
	}
}

func TestSubjectPhrase(t *testing.T) {
	if got := SubjectPhrase("  Extrato \t  Mensal \n"); got != "Extrato Mensal" {
		t.Fatalf("SubjectPhrase = %q", got)
	}
	if got := SubjectPhrase(""); got != "" {
		t.Fatalf("SubjectPhrase(empty) = %q", got)
	}
}
