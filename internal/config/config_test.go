package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("STATS_CACHE_TTL_SECONDS", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.Timezone != "Asia/Ho_Chi_Minh" {
		t.Fatalf("expected default timezone, got %q", cfg.Timezone)
	}
	if cfg.StatsCacheTTLSeconds != 60 {
		t.Fatalf("expected default stats TTL 60, got %d", cfg.StatsCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadRejectsBadNumericValues(t *testing.T) {
	t.Setenv("STATS_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.StatsCacheTTLSeconds != 60 {
		t.Fatalf("expected fallback TTL 60, got %d", cfg.StatsCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
