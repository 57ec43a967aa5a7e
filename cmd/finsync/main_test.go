package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"serve": false, "authorize": false, "review": false, "user": false, "token": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestRequiredFlags(t *testing.T) {
	tests := [][]string{
		{"review", "--user", "ana@example.com", "--sender", "banco@exemplo.com"},
		{"user", "add"},
		{"authorize"},
	}
	for _, args := range tests {
		root := newRootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&out)
		root.SetArgs(args)
		err := root.Execute()
		if err == nil || !strings.Contains(err.Error(), "required flag") {
			t.Errorf("%v: err = %v", args, err)
		}
	}
}

func TestReviewRejectsBadSender(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"review", "--user", "ana", "--sender", "not an address", "--subject", "Extrato"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "email address") {
		t.Fatalf("err = %v", err)
	}
}
