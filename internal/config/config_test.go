package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

func TestLoadWithDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"PRIME_TOKEN":    "token",
		"PRIME_DOT_PATH": "/var/lib/prime",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Token != "token" {
		t.Fatalf("unexpected token: %q", cfg.Token)
	}
	if cfg.DotPath != "/var/lib/prime" {
		t.Fatalf("unexpected dot path: %q", cfg.DotPath)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected driver: %q", cfg.Database.Driver)
	}
	if !cfg.Moderation.AdminBypassMedia || !cfg.Moderation.WarnAppeal || cfg.Moderation.AIFailClosed {
		t.Fatalf("unexpected moderation flags: %+v", cfg.Moderation)
	}
	if cfg.Moderation.SpamWindow != 5*time.Minute || cfg.Moderation.MediaWindow != time.Hour {
		t.Fatalf("unexpected tracker windows: %v %v", cfg.Moderation.SpamWindow, cfg.Moderation.MediaWindow)
	}
	if cfg.Vibe.Burst != 8 || cfg.Vibe.Window != 15*time.Second || cfg.Vibe.Cooldown != 3*time.Minute {
		t.Fatalf("unexpected vibe settings: %+v", cfg.Vibe)
	}
	if cfg.Verification.CaptchaTTL != 10*time.Minute || cfg.Verification.CaptchaMaxAttempts != 3 {
		t.Fatalf("unexpected verification settings: %+v", cfg.Verification)
	}
	want := []string{"gemini-2.5-flash", "gemini-3-flash-preview", "gemini-2.5-flash-lite"}
	if strings.Join(cfg.LLM.VisionModels, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected vision models: %v", cfg.LLM.VisionModels)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"PRIME_TOKEN":          "token",
		"PRIME_AI_FAIL_CLOSED": "true",
		"PRIME_AI_TIMEOUT":     "45s",
		"PRIME_DB_DRIVER":      "postgres",
		"PRIME_DB_DSN":         "postgres://prime@localhost/prime",
		"PRIME_MUTED_ROLE_ID":  "42",
	}))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.Moderation.AIFailClosed || cfg.Moderation.AITimeout != 45*time.Second {
		t.Fatalf("unexpected ai settings: %+v", cfg.Moderation)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN == "" {
		t.Fatalf("unexpected database settings: %+v", cfg.Database)
	}
	if cfg.Guild.MutedRoleID != "42" {
		t.Fatalf("unexpected muted role: %q", cfg.Guild.MutedRoleID)
	}
}

func TestLoadWithRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := LoadWith(context.Background(), envconfig.MapLookuper(nil)); err == nil {
		t.Fatalf("expected error for missing token")
	}
}

func TestPrimeFormatterSortsFields(t *testing.T) {
	t.Parallel()

	f := &PrimeFormatter{DisableColors: true}
	entry := log.NewEntry(log.New()).WithFields(log.Fields{"user_id": "2", "action": "ban"})
	entry.Message = "sanction applied"
	entry.Level = log.InfoLevel

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	line := string(out)
	if !strings.HasPrefix(line, "level=INFO ") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	if strings.Index(line, "action=") > strings.Index(line, "user_id=") {
		t.Fatalf("fields not sorted: %q", line)
	}
	if !strings.HasSuffix(line, "msg=\"sanction applied\"\n") {
		t.Fatalf("unexpected suffix: %q", line)
	}
}
