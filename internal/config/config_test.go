package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *c != (Config{}) {
		t.Fatalf("expected zero-value defaults, got %+v", c)
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"input":"in.fa","output":"out.fa","log_level":"debug","runs_store":"sqlite","ncbi_cache_ttl_seconds":60}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.Input != "in.fa" || c.Output != "out.fa" || c.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.RunsStore != "sqlite" || c.NcbiCacheTTLSecs != 60 {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}
