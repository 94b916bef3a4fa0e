package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.Platform != "onebot" {
		t.Errorf("expected default platform onebot, got %q", cfg.Platform)
	}
	if cfg.ValidFor != 172800*time.Second {
		t.Errorf("expected 48h default validity, got %v", cfg.ValidFor)
	}
	if cfg.DenyCooldown != 1314000*time.Second {
		t.Errorf("expected ~1y default cooldown, got %v", cfg.DenyCooldown)
	}
	if cfg.RemoveAfterAccepted {
		t.Error("remove-after-accepted must default to false")
	}
	if cfg.RetentionDays != 0 {
		t.Errorf("retention must default to keep-forever, got %d", cfg.RetentionDays)
	}
	if cfg.Messages.NoRecord == "" || cfg.Messages.JoinFailed == "" {
		t.Error("expected default message templates")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("GATEKEEPER_PLATFORM", "matrix")
	t.Setenv("GATEKEEPER_VALID_FOR_SECONDS", "3600")
	t.Setenv("GATEKEEPER_REMOVE_AFTER_ACCEPTED", "true")
	t.Setenv("GATEKEEPER_MSG_ACCEPTED", "here you go: {ticket}")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}

	if cfg.Platform != "matrix" {
		t.Errorf("expected platform matrix, got %q", cfg.Platform)
	}
	if cfg.ValidFor != time.Hour {
		t.Errorf("expected 1h validity, got %v", cfg.ValidFor)
	}
	if !cfg.RemoveAfterAccepted {
		t.Error("expected remove-after-accepted enabled")
	}
	if cfg.Messages.UserAccepted != "here you go: {ticket}" {
		t.Errorf("expected overridden template, got %q", cfg.Messages.UserAccepted)
	}
}

func TestFromEnv_BadLogFormat(t *testing.T) {
	t.Setenv("GATEKEEPER_LOG_FORMAT", "xml")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestMessages_Substitution(t *testing.T) {
	m := Messages{
		UserAccepted: "Approved. Ticket: {ticket}",
		JoinFailed:   "Member {user} failed to join.",
	}

	if got := m.WithTicket(m.UserAccepted, "abc12345"); got != "Approved. Ticket: abc12345" {
		t.Errorf("WithTicket = %q", got)
	}
	if got := m.WithUser(m.JoinFailed, "alice"); got != "Member alice failed to join." {
		t.Errorf("WithUser = %q", got)
	}
}
