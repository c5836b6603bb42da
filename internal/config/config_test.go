package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	multicam "github.com/stepherg/obs-multicam"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envConfig, envHost, envPort, envPassword, envListen, envOverlayScene, envSettle} {
		t.Setenv(k, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != "localhost:4455" || cfg.Listen != ":8090" || cfg.OverlayScene != "OVERLAY" {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Settle != 500*time.Millisecond || cfg.Password != "" {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, "host: studio.local\nport: 4460\npassword: fromfile\noverlay_scene: GFX\nsettle: 750ms\n")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != "studio.local:4460" || cfg.Password != "fromfile" || cfg.OverlayScene != "GFX" || cfg.Settle != 750*time.Millisecond {
		t.Fatalf("file values: %+v", cfg)
	}

	t.Setenv(envHost, "10.0.0.9")
	t.Setenv(envPassword, "fromenv")
	cfg, err = Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Host != "10.0.0.9" || cfg.Password != "fromenv" || cfg.Port != "4460" {
		t.Fatalf("env should win over file: %+v", cfg)
	}
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv(envConfig, writeConfig(t, "listen: 127.0.0.1:9000\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Fatalf("listen: %q", cfg.Listen)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("explicit missing file must fail")
	}
	if _, err := Load(writeConfig(t, "host: [unterminated\n")); err == nil {
		t.Fatalf("bad yaml must fail")
	}
	t.Setenv(envSettle, "soon")
	if _, err := Load(""); !errors.Is(err, multicam.ErrInvalidParameter) {
		t.Fatalf("bad settle: %v", err)
	}
	t.Setenv(envSettle, "0s")
	if _, err := Load(""); !errors.Is(err, multicam.ErrInvalidParameter) {
		t.Fatalf("zero settle would silently become the default: %v", err)
	}
	t.Setenv(envSettle, "")
	t.Setenv(envPort, "99999")
	if _, err := Load(""); !errors.Is(err, multicam.ErrInvalidParameter) {
		t.Fatalf("bad port: %v", err)
	}
}

func TestOptions(t *testing.T) {
	cfg := Config{Host: "obs", Port: "4455", Password: "pw", OverlayScene: "GFX", Settle: time.Second}
	opts := cfg.Options()
	if opts.Address != "obs:4455" || opts.OverlayScene != "GFX" || opts.Sync.SettleWindow != time.Second {
		t.Fatalf("options: %+v", opts)
	}
	if pw, _ := opts.Auth.Password(); pw != "pw" {
		t.Fatalf("password: %q", pw)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := FirstNonEmpty("", ""); got != "" {
		t.Fatalf("got %q", got)
	}
}
