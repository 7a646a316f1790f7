package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		log, err := New(env)
		if err != nil {
			t.Fatalf("New(%q): %v", env, err)
		}
		if log == nil {
			t.Fatalf("New(%q) returned nil logger", env)
		}
	}

	prod, _ := New("production")
	if prod.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("production logger must not emit debug logs")
	}
	dev, _ := New("development")
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Fatalf("development logger should emit debug logs")
	}
}
