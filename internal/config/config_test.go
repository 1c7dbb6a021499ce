package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":8090" {
		t.Fatalf("unexpected address %q", cfg.Server.Address)
	}
	if cfg.Guide.ReplyDelay != 600*time.Millisecond {
		t.Fatalf("unexpected reply delay %v", cfg.Guide.ReplyDelay)
	}
	if cfg.Storage.DSN != ":memory:" {
		t.Fatalf("unexpected dsn %q", cfg.Storage.DSN)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  address: ":9100"
guide:
  mode: remote
  reply_delay: 250ms
providers:
  gemini:
    model: gemini-test
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FABRICGUIDE_SERVER__ADDRESS", ":9200")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9200" {
		t.Fatalf("env override not applied: %q", cfg.Server.Address)
	}
	if cfg.Guide.Mode != "remote" || cfg.Guide.ReplyDelay != 250*time.Millisecond {
		t.Fatalf("guide settings not loaded: %+v", cfg.Guide)
	}
	pc, ok := cfg.Provider("Gemini")
	if !ok || pc.Model != "gemini-test" || pc.APIKey != "from-env" {
		t.Fatalf("unexpected gemini provider: %+v", pc)
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Default()
	cfg.Guide.Mode = "hybrid"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
	cfg = Default()
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected driver error")
	}
}

func TestMySQLDoesNotInheritSQLiteDSN(t *testing.T) {
	t.Setenv("FABRICGUIDE_STORAGE__DRIVER", "mysql")
	t.Setenv("FABRICGUIDE_STORAGE__HOST", "db.internal")
	t.Setenv("FABRICGUIDE_STORAGE__DBNAME", "fabric")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.DSN != "" {
		t.Fatalf("expected empty dsn for mysql, got %q", cfg.Storage.DSN)
	}

	t.Setenv("FABRICGUIDE_STORAGE__HOST", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected mysql without host to fail validation")
	}
}
