package config

import (
	"log/slog"
	"testing"
)

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when MONGODB_URI unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.SendBuffer != 64 {
		t.Fatalf("expected default send buffer 64, got %d", cfg.SendBuffer)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level by default")
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
	cfg.LogLevel = "nonsense"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("unknown level should fall back to info")
	}
}
