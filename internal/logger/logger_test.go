package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_LevelOverride(t *testing.T) {
	log, err := New("local", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be disabled when level is error")
	}
	if !log.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("local", "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_EnvDefaults(t *testing.T) {
	prod, err := New("prod", "")
	if err != nil {
		t.Fatalf("prod: %v", err)
	}
	if prod.Core().Enabled(zapcore.DebugLevel) {
		t.Error("prod should not log debug by default")
	}

	dev, err := New("local", "")
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	if !dev.Core().Enabled(zapcore.DebugLevel) {
		t.Error("local should log debug by default")
	}
}
