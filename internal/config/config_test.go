package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaultsBusinessTimezone(t *testing.T) {
	t.Setenv("BUSINESS_TIMEZONE", "")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.BusinessTimezone != "America/Sao_Paulo" {
		t.Fatalf("expected default timezone, got %q", cfg.BusinessTimezone)
	}
	if cfg.ReportCacheTTLSeconds != 60 {
		t.Fatalf("expected ttl fallback of 60, got %d", cfg.ReportCacheTTLSeconds)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BUSINESS_TIMEZONE", "America/Manaus")
	t.Setenv("SQLITE_PATH", "/tmp/cardapio.db")
	t.Setenv("SEED_ADMIN_PASSWORD", "first-run")

	cfg := Load()
	if cfg.Address() != ":9090" {
		t.Fatalf("expected :9090, got %s", cfg.Address())
	}
	if cfg.BusinessTimezone != "America/Manaus" || cfg.SQLitePath != "/tmp/cardapio.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SeedAdminPassword != "first-run" {
		t.Fatalf("expected seed admin password override, got %q", cfg.SeedAdminPassword)
	}
}
