package cordconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if cfg.PollInterval != want.PollInterval || cfg.DefaultRuntime != want.DefaultRuntime ||
		cfg.DefaultModel != want.DefaultModel || cfg.Budget != want.Budget || len(cfg.Adapters) != 0 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cord.yaml")
	content := `
default_runtime: amp
default_model: some-model
budget: 5.5
poll_interval: 250ms
adapters:
  custom-cli:
    command: /usr/local/bin/custom-cli
    args: ["--flag"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultRuntime != "amp" {
		t.Fatalf("expected default_runtime amp, got %q", cfg.DefaultRuntime)
	}
	if cfg.Budget != 5.5 {
		t.Fatalf("expected budget 5.5, got %v", cfg.Budget)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected poll interval 250ms, got %v", cfg.PollInterval)
	}
	adapter, ok := cfg.Adapters["custom-cli"]
	if !ok {
		t.Fatalf("expected custom-cli adapter to be present")
	}
	if adapter.Command != "/usr/local/bin/custom-cli" || len(adapter.Args) != 1 || adapter.Args[0] != "--flag" {
		t.Fatalf("unexpected adapter config: %+v", adapter)
	}
}
