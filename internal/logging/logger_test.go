package logging

import (
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	l, err := New("debug", "console")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !l.Core().Enabled(zap.DebugLevel) {
		t.Fatal("debug level should be enabled")
	}
}

func TestFromContextAddsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")

	FromContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["request_id"]; got != "req-42" {
		t.Fatalf("request_id = %v", got)
	}
}

func TestFromContextNilBase(t *testing.T) {
	FromContext(context.Background(), nil).Info("dropped")
}
