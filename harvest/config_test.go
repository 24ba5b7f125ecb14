package harvest

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.BaseURL == "" || cfg.BaseURL[len(cfg.BaseURL)-1] == '/' {
		t.Errorf("base url = %q, want non-empty without trailing slash", cfg.BaseURL)
	}
	if cfg.AcceptPolicy != AcceptMirror {
		t.Errorf("accept policy = %q, want mirror", cfg.AcceptPolicy)
	}
	if cfg.Importance != 1 {
		t.Errorf("importance = %d, want 1", cfg.Importance)
	}
	if cfg.Backoff.MaxAttempts <= 0 {
		t.Error("backoff retry ceiling must default on")
	}
	if cfg.Selectors.LoginUsername == "" || cfg.Selectors.SubjectCard == "" {
		t.Error("default selectors not merged")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing account", func(c *Config) { c.Account = "" }, false},
		{"bad accept policy", func(c *Config) { c.AcceptPolicy = "some" }, false},
		{"bad stealth", func(c *Config) { c.Browser.Stealth = "invisible" }, false},
		{"accept all", func(c *Config) { c.AcceptPolicy = AcceptAll }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Account: "alice"}
			cfg.applyDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qharvest.yaml")
	doc := `
account: alice
soft_limit: 40
backoff:
  initial: 250ms
selectors:
  subject_card: ".custom-card"
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Account != "alice" || cfg.SoftLimit != 40 {
		t.Errorf("top-level fields: %+v", cfg)
	}
	if cfg.Backoff.Initial != 250*time.Millisecond {
		t.Errorf("backoff initial = %v, want 250ms", cfg.Backoff.Initial)
	}
	if cfg.Selectors.SubjectCard != ".custom-card" {
		t.Errorf("override lost: %q", cfg.Selectors.SubjectCard)
	}
	if cfg.Selectors.LoginUsername == "" {
		t.Error("sparse selector override wiped the defaults")
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qharvest.yaml")
	if err := os.WriteFile(path, []byte("accept_policy: some\naccount: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("want validation error, got nil")
	}
}
