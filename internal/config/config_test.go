package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/weft/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Preview.Port != DefaultPort {
		t.Errorf("Preview.Port = %d, want %d", cfg.Preview.Port, DefaultPort)
	}
	if cfg.FrameInterval() != 16*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 16ms", cfg.FrameInterval())
	}
	if !cfg.Observation.Collections {
		t.Error("collection observation should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path = %q, want empty", cfg.Path())
	}
	if cfg.PreviewAddress() != "localhost:7070" {
		t.Errorf("PreviewAddress = %q", cfg.PreviewAddress())
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	data := `{
  "log": {"level": "debug", "format": "json"},
  "scheduler": {"frameInterval": "5ms"},
  "preview": {"port": 9000},
  "snapshot": {"dir": "out"}
}
`
	if err := os.WriteFile(filepath.Join(dir, "weft.json"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.FrameInterval() != 5*time.Millisecond {
		t.Errorf("FrameInterval = %v, want 5ms", cfg.FrameInterval())
	}
	if cfg.Preview.Port != 9000 || cfg.Preview.Host != DefaultHost {
		t.Errorf("Preview = %+v", cfg.Preview)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics = %+v, want defaults kept", cfg.Metrics)
	}
	if got, want := cfg.SnapshotPath(), filepath.Join(dir, "out"); got != want {
		t.Errorf("SnapshotPath = %q, want %q", got, want)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	data := `observation:
  collections: false
snapshot:
  bucket: renders
  prefix: previews/
  region: eu-west-1
  pathStyle: true
`
	if err := os.WriteFile(filepath.Join(dir, "weft.yaml"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Observation.Collections {
		t.Error("Observation.Collections should be false")
	}
	if cfg.Snapshot.Bucket != "renders" || cfg.Snapshot.Prefix != "previews/" || !cfg.Snapshot.PathStyle {
		t.Errorf("Snapshot = %+v", cfg.Snapshot)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default", cfg.Log.Level)
	}
}

func TestLoadPrefersJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "weft.json"), []byte(`{"preview":{"port":1}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "weft.yaml"), []byte("preview:\n  port: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Preview.Port != 1 {
		t.Errorf("Preview.Port = %d, want the weft.json value", cfg.Preview.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "weft.json"), []byte(`{"log": `), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(dir)
	if !errors.HasCode(err, "W201") {
		t.Fatalf("Load error = %v, want W201", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		detail string
	}{
		{"port", func(c *Config) { c.Preview.Port = 70000 }, "preview.port"},
		{"interval", func(c *Config) { c.Scheduler.FrameInterval = "soon" }, "frameInterval"},
		{"negative interval", func(c *Config) { c.Scheduler.FrameInterval = "-1s" }, "frameInterval"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bucket without region", func(c *Config) { c.Snapshot.Bucket = "b" }, "snapshot.region"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, "W202") {
				t.Fatalf("Validate = %v, want W202", err)
			}
			if !strings.Contains(err.Error(), tt.detail) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.detail)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"weft.json", "weft.yaml"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := Default()
			cfg.Preview.Port = 8123
			cfg.Snapshot.Prefix = "p/"
			if err := cfg.SaveTo(filepath.Join(dir, name)); err != nil {
				t.Fatal(err)
			}

			loaded, err := Load(dir)
			if err != nil {
				t.Fatal(err)
			}
			if loaded.Path() != filepath.Join(dir, name) {
				t.Errorf("Path = %q", loaded.Path())
			}
			if loaded.Preview.Port != 8123 || loaded.Snapshot.Prefix != "p/" {
				t.Errorf("loaded = %+v", loaded)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("unexpected output %q", out)
	}
}
