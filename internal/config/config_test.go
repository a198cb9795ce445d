package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestReadSecret_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret")
	if err := os.WriteFile(path, []byte("  s3cr3t\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_SECRET_VALUE", "")
	t.Setenv("TEST_SECRET_VALUE_FILE", path)

	readSecret("TEST_SECRET_VALUE")

	if got := os.Getenv("TEST_SECRET_VALUE"); got != "s3cr3t" {
		t.Errorf("readSecret() set %q, want %q", got, "s3cr3t")
	}
}

func TestReadSecret_DirectValueWins(t *testing.T) {
	t.Setenv("TEST_SECRET_DIRECT", "direct")
	t.Setenv("TEST_SECRET_DIRECT_FILE", "/does/not/exist")

	readSecret("TEST_SECRET_DIRECT")

	if got := os.Getenv("TEST_SECRET_DIRECT"); got != "direct" {
		t.Errorf("got %q, want direct", got)
	}
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())
	t.Setenv("WORKER_POLL_INTERVAL", "100ms")
	t.Setenv("DISPATCH_MAX_ATTEMPTS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Worker.PollInterval != 100*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.Worker.PollInterval)
	}
	if cfg.Dispatch.MaxAttempts != 7 {
		t.Errorf("max attempts = %d", cfg.Dispatch.MaxAttempts)
	}
	if cfg.Worker.MaxPause != time.Hour || cfg.Retention.Days != 30 {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Worker, cfg.Retention)
	}
	if cfg.Supabase.Enabled() {
		t.Error("supabase must be disabled without credentials")
	}
}

func TestLoad_RejectsBadPollInterval(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())
	t.Setenv("WORKER_POLL_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero poll interval")
	}
}

func TestLoad_RejectsPauseLongerThanJobTimeout(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	chdir(t, t.TempDir())
	t.Setenv("WORKER_JOB_TIMEOUT", "2h")
	t.Setenv("WORKER_MAX_PAUSE", "24h")

	if _, err := Load(); err == nil {
		t.Error("expected error when max pause outlasts the job timeout")
	}
}
