package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/invoicer-reports-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATA_BACKEND", "")
	t.Setenv("REPORT_TIMEOUT", "")

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.DataBackend != config.BackendSupabase {
		t.Errorf("expected supabase backend, got %s", cfg.DataBackend)
	}
	if cfg.ReportTimeout != 20*time.Second {
		t.Errorf("expected 20s report timeout, got %s", cfg.ReportTimeout)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "postgres")
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("CACHE_TTL", "90s")

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.DataBackend != config.BackendPostgres {
		t.Errorf("expected postgres backend, got %s", cfg.DataBackend)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected fallback of 3 retries for invalid value, got %d", cfg.MaxRetries)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("expected 90s cache TTL, got %s", cfg.CacheTTL)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LOG_LEVEL=debug\nSUPABASE_URL=\"https://example.supabase.co\"\n# comment\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SUPABASE_URL", "")
	os.Unsetenv("SUPABASE_URL")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SUPABASE_URL") })

	if v := os.Getenv("LOG_LEVEL"); v != "warn" {
		t.Errorf("expected existing LOG_LEVEL to win, got %s", v)
	}
	if v := os.Getenv("SUPABASE_URL"); v != "https://example.supabase.co" {
		t.Errorf("expected SUPABASE_URL from file, got %s", v)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
