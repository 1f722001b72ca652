package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir == "" {
		t.Fatal("data dir must default")
	}
	if cfg.GlobalTimeout.Duration != 90*time.Second {
		t.Fatalf("timeout = %v", cfg.GlobalTimeout.Duration)
	}
	if cfg.HasBridge() || cfg.HasS3() {
		t.Fatal("no participants should be configured by default")
	}
}

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
data_dir = "` + dir + `"
global_timeout = "30s"

[bridge]
url = "https://bridge.example.com:4800"
secret = "hunter2"

[s3]
endpoint = "https://acc.r2.cloudflarestorage.com"
bucket = "dumps"
access_key_id = "AK"
secret_access_key = "SK"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GlobalTimeout.Duration != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.GlobalTimeout.Duration)
	}
	if !cfg.HasBridge() {
		t.Fatal("bridge should be configured")
	}
	if cfg.Bridge.Timeout.Duration != 2*time.Minute {
		t.Fatalf("bridge timeout default = %v", cfg.Bridge.Timeout.Duration)
	}
	if !cfg.HasS3() {
		t.Fatal("s3 should be configured")
	}
	if cfg.S3.Region != "auto" || cfg.S3.Prefix != "data-files/" {
		t.Fatalf("s3 defaults not applied: %+v", cfg.S3)
	}
	if len(cfg.S3.Denylist) == 0 {
		t.Fatal("s3 denylist must default to the known poisoned sources")
	}
}

func TestS3DenylistOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[s3]
bucket = "dumps"
access_key_id = "AK"
secret_access_key = "SK"
denylist = ["custom"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.S3.Denylist) != 1 || cfg.S3.Denylist[0] != "custom" {
		t.Fatalf("denylist = %v, want the configured list", cfg.S3.Denylist)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("BRIDGE_URL", "https://env-bridge.example.com")
	t.Setenv("BRIDGE_SECRET", "env-secret")

	cfg, err := LoadConfig(filepath.Join(dir, "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != dir {
		t.Fatalf("data dir = %q", cfg.DataDir)
	}
	if !cfg.HasBridge() || cfg.Bridge.Secret != "env-secret" {
		t.Fatalf("bridge env override not applied: %+v", cfg.Bridge)
	}
}

func TestSaveTemplateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := &Config{}
	if err := cfg.SaveTemplateConfig(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("template is empty")
	}
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m30s")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 2*time.Minute+30*time.Second {
		t.Fatalf("parsed %v", d.Duration)
	}
	out, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "2m30s" {
		t.Fatalf("marshaled %q", out)
	}
}
