package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENTCHAT_API_URL", "")
	t.Setenv("AGENTCHAT_PAGE_SIZE", "")
	t.Setenv("AGENTCHAT_MAX_RECORDING", "")

	cfg := Load()
	if cfg.APIURL != DefaultAPIURL {
		t.Fatalf("APIURL=%q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.MessagePageSize != 50 {
		t.Fatalf("MessagePageSize=%d, want 50", cfg.MessagePageSize)
	}
	if cfg.MaxRecording != 120*time.Second || cfg.RecordingWarning != 100*time.Second {
		t.Fatalf("unexpected recording limits: %v / %v", cfg.MaxRecording, cfg.RecordingWarning)
	}
	if cfg.MetricsAddr != "" {
		t.Fatalf("metrics should be disabled by default, got %q", cfg.MetricsAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AGENTCHAT_API_URL", "https://chat.example.com/api")
	t.Setenv("AGENTCHAT_PAGE_SIZE", "20")
	t.Setenv("AGENTCHAT_MAX_RECORDING", "30s")
	t.Setenv("AGENTCHAT_DB_PATH", "/tmp/x.db")

	cfg := Load()
	if cfg.APIURL != "https://chat.example.com/api" {
		t.Fatalf("APIURL=%q", cfg.APIURL)
	}
	if cfg.MessagePageSize != 20 {
		t.Fatalf("MessagePageSize=%d, want 20", cfg.MessagePageSize)
	}
	if cfg.MaxRecording != 30*time.Second {
		t.Fatalf("MaxRecording=%v, want 30s", cfg.MaxRecording)
	}
	if cfg.DBPath != "/tmp/x.db" {
		t.Fatalf("DBPath=%q", cfg.DBPath)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("AGENTCHAT_PAGE_SIZE", "-3")
	t.Setenv("AGENTCHAT_MAX_RECORDING", "two minutes")

	cfg := Load()
	if cfg.MessagePageSize != 50 {
		t.Fatalf("MessagePageSize=%d, want fallback 50", cfg.MessagePageSize)
	}
	if cfg.MaxRecording != 120*time.Second {
		t.Fatalf("MaxRecording=%v, want fallback", cfg.MaxRecording)
	}
}
